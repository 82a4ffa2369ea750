package reduce

import (
	"os"
	"path/filepath"
)

// FileExists reports whether the named file exists.
func FileExists(filename string) bool {
	if _, err := os.Stat(filename); err != nil {
		return !os.IsNotExist(err)
	}
	return true
}

// WriteFileReplace writes data to a temporary file next to path and then renames it over
// path, so readers never observe a partially written file.
func WriteFileReplace(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	} else if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	} else if err = tmp.Close(); err != nil {
		return err
	} else if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return replaceFile(tmp.Name(), path)
}

func replaceFile(source, destination string) error {
	if FileExists(destination) {
		if err := os.Remove(destination); err != nil {
			return err
		}
	}
	// requires the same filesystem
	return os.Rename(source, destination)
}
