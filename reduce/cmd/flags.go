package cmd

import (
	"errors"
	"flag"

	"github.com/PatchLens/go-reduce/reduce"
)

// ParseReplaceFlags builds Config for a single file invocation that either counts the
// candidates of a file or rewrites one of them.
func ParseReplaceFlags() (*reduce.Config, error) {
	config := &reduce.Config{}

	file := flag.String("file", "", "Source file to reduce")
	language := flag.String("lang", "", "Language of the file, detected from the extension when empty")
	count := flag.Bool("count", false, "Print the number of candidate call sites")
	index := flag.Int("index", -1, "Zero based candidate index to replace")
	outputFile := flag.String("out", "", "File to write the rewritten source, stdout when empty")
	force := flag.Bool("force", false, "Allow -out to replace an existing file, including the input")
	diff := flag.Bool("diff", false, "Output a unified diff instead of the rewritten source")
	cacheDir := flag.String("cachedir", "", "Directory for persisting analysis facts between invocations")
	cacheMB := flag.Int("cachemb", 0, "Fact cache memory budget in MB, 0 disables the cache")
	clearCache := flag.Bool("clearcache", false, "Remove cached analysis facts before running")

	flag.Parse()

	if *file == "" {
		return nil, errors.New("count usage: -file foo.c -count\nreplace usage: -file foo.c -index 0 [-out foo.reduced.c] [-diff]")
	} else if *count && *index >= 0 {
		return nil, errors.New("-count and -index are mutually exclusive")
	} else if !*count && *index < 0 {
		return nil, errors.New("one of -count or -index must be provided")
	} else if *count && (*outputFile != "" || *diff) {
		return nil, errors.New("-out and -diff only apply with -index")
	} else if *force && *outputFile == "" {
		return nil, errors.New("-force only applies with -out")
	} else if *cacheMB < 0 {
		return nil, errors.New("-cachemb must not be negative")
	} else if *clearCache && *cacheMB == 0 {
		return nil, errors.New("-clearcache requires -cachemb")
	}

	config.File = *file
	config.Language = *language
	config.Count = *count
	config.Index = *index
	config.OutputFile = *outputFile
	config.Force = *force
	config.Diff = *diff
	config.CacheDir = *cacheDir
	config.CacheMB = *cacheMB
	config.ClearCache = *clearCache

	if err := config.Prepare(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseScanFlags builds Config for a batch scan reporting the candidates under a directory.
func ParseScanFlags() (*reduce.Config, error) {
	config := &reduce.Config{Index: -1}

	dir := flag.String("dir", "", "Root directory to scan")
	languages := flag.String("langs", "", "Comma separated languages to scan, all when empty")
	reportJsonFile := flag.String("json", "candidates.json", "File to output scan details")
	reportChartsFile := flag.String("charts", "candidates.png", "File to output scan overview chart image")
	cacheDir := flag.String("cachedir", "", "Directory for persisting analysis facts between invocations")
	cacheMB := flag.Int("cachemb", 200, "Fact cache memory budget in MB, 0 disables the cache")
	clearCache := flag.Bool("clearcache", false, "Remove cached analysis facts before running")

	flag.Parse()

	if *dir == "" {
		return nil, errors.New("usage: -dir ../foo [-langs go,c] [-json candidates.json] [-charts candidates.png]")
	} else if *cacheMB < 0 {
		return nil, errors.New("-cachemb must not be negative")
	} else if *clearCache && *cacheMB == 0 {
		return nil, errors.New("-clearcache requires -cachemb")
	}
	langs, err := reduce.ParseLanguages(*languages)
	if err != nil {
		return nil, err
	}

	config.Dir = *dir
	config.Languages = langs
	config.ReportJsonFile = *reportJsonFile
	config.ReportChartsFile = *reportChartsFile
	config.CacheDir = *cacheDir
	config.CacheMB = *cacheMB
	config.ClearCache = *clearCache

	if err := config.Prepare(); err != nil {
		return nil, err
	}
	return config, nil
}
