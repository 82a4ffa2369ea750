package reduce

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// SourceFile is a reducible file found under a root directory.
type SourceFile struct {
	// Path is relative to the root.
	Path     string
	Language string
}

var skipDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"testdata":     true,
	"build":        true,
	"dist":         true,
}

// DiscoverFiles finds files under root handled by a front end, honouring the root .gitignore.
// If languages is non-empty only those languages are returned. Results are sorted by path.
func DiscoverFiles(root string, languages []string) ([]SourceFile, error) {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		gi = nil // missing or unreadable ignore file, include everything
	}

	var files []SourceFile
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		} else if strings.HasPrefix(name, ".") || d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		fe, err := FrontEndForFile(name)
		if err != nil {
			return nil // not a language we reduce
		} else if len(languages) > 0 && !slices.Contains(languages, fe.Language()) {
			return nil
		}
		files = append(files, SourceFile{Path: rel, Language: fe.Language()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(files, func(a, b SourceFile) int {
		return strings.Compare(a.Path, b.Path)
	})
	return files, nil
}
