package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatchLens/go-reduce/reduce"
)

// withArgs replaces the command line for the duration of the test.
func withArgs(t *testing.T, args ...string) {
	oldArgs := os.Args
	oldCommandLine := flag.CommandLine
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	os.Args = append([]string{os.Args[0]}, args...)
	t.Cleanup(func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	})
}

func TestParseReplaceFlags(t *testing.T) {
	t.Run("count", func(t *testing.T) {
		withArgs(t, "-file", "unit.c", "-count")

		cfg, err := ParseReplaceFlags()
		require.NoError(t, err)
		assert.Equal(t, "unit.c", cfg.File)
		assert.True(t, cfg.Count)
		assert.Equal(t, -1, cfg.Index)
		assert.False(t, cfg.ClearCache)
	})

	t.Run("index", func(t *testing.T) {
		withArgs(t, "-file", "unit.go", "-lang", "go", "-index", "2", "-out", "reduced.go", "-diff")

		cfg, err := ParseReplaceFlags()
		require.NoError(t, err)
		assert.Equal(t, "go", cfg.Language)
		assert.Equal(t, 2, cfg.Index)
		assert.Equal(t, "reduced.go", cfg.OutputFile)
		assert.True(t, cfg.Diff)
		assert.False(t, cfg.Count)
	})

	t.Run("index_zero", func(t *testing.T) {
		withArgs(t, "-file", "unit.c", "-index", "0")

		cfg, err := ParseReplaceFlags()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Index)
	})

	t.Run("cache", func(t *testing.T) {
		dir := t.TempDir()
		withArgs(t, "-file", "unit.c", "-count", "-cachedir", dir, "-cachemb", "16")

		cfg, err := ParseReplaceFlags()
		require.NoError(t, err)
		assert.Equal(t, dir, cfg.CacheDir)
		assert.Equal(t, 16, cfg.CacheMB)
		assert.False(t, cfg.ClearCache)
	})

	t.Run("clear_cache", func(t *testing.T) {
		withArgs(t, "-file", "unit.c", "-count", "-cachemb", "16", "-clearcache")

		cfg, err := ParseReplaceFlags()
		require.NoError(t, err)
		assert.True(t, cfg.ClearCache)
	})

	t.Run("force", func(t *testing.T) {
		withArgs(t, "-file", "unit.c", "-index", "0", "-out", "unit.c", "-force")

		cfg, err := ParseReplaceFlags()
		require.NoError(t, err)
		assert.True(t, cfg.Force)
		assert.Equal(t, "unit.c", cfg.OutputFile)
	})

	t.Run("errors", func(t *testing.T) {
		for name, args := range map[string][]string{
			"missing_file":     {"-count"},
			"no_mode":          {"-file", "unit.c"},
			"both_modes":       {"-file", "unit.c", "-count", "-index", "1"},
			"out_with_count":   {"-file", "unit.c", "-count", "-out", "x.c"},
			"negative_cache":   {"-file", "unit.c", "-count", "-cachemb", "-1"},
			"force_no_out":     {"-file", "unit.c", "-index", "0", "-force"},
			"clear_no_cache":   {"-file", "unit.c", "-count", "-clearcache"},
			"unknown_language": {"-file", "unit.c", "-count", "-lang", "cobol"},
		} {
			t.Run(name, func(t *testing.T) {
				withArgs(t, args...)

				_, err := ParseReplaceFlags()
				assert.Error(t, err)
			})
		}
	})
}

func TestParseScanFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		dir := t.TempDir()
		withArgs(t, "-dir", dir)

		cfg, err := ParseScanFlags()
		require.NoError(t, err)
		assert.Equal(t, dir, cfg.Dir)
		assert.Empty(t, cfg.Languages)
		assert.Equal(t, "candidates.json", cfg.ReportJsonFile)
		assert.Equal(t, "candidates.png", cfg.ReportChartsFile)
		assert.Equal(t, 200, cfg.CacheMB)
		assert.Equal(t, -1, cfg.Index)
		assert.False(t, cfg.ClearCache)
	})

	t.Run("clear_cache", func(t *testing.T) {
		withArgs(t, "-dir", t.TempDir(), "-clearcache")

		cfg, err := ParseScanFlags()
		require.NoError(t, err)
		assert.True(t, cfg.ClearCache)
	})

	t.Run("clear_disabled_cache", func(t *testing.T) {
		withArgs(t, "-dir", t.TempDir(), "-cachemb", "0", "-clearcache")

		_, err := ParseScanFlags()
		assert.Error(t, err)
	})

	t.Run("relative_dir", func(t *testing.T) {
		withArgs(t, "-dir", ".", "-langs", "c", "-charts", "out.svg")

		cfg, err := ParseScanFlags()
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(cfg.Dir))
		assert.Equal(t, []string{"c"}, cfg.Languages)
		assert.Equal(t, "out.svg", cfg.ReportChartsFile)
	})

	t.Run("missing_dir", func(t *testing.T) {
		withArgs(t)

		_, err := ParseScanFlags()
		assert.Error(t, err)
	})

	t.Run("bad_language", func(t *testing.T) {
		withArgs(t, "-dir", ".", "-langs", "go,cobol")

		_, err := ParseScanFlags()
		assert.ErrorIs(t, err, reduce.ErrUnsupportedLanguage)
	})
}
