package reduce

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReplace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "unit.c")
	require.NoError(t, os.WriteFile(file, []byte(passSource), 0644))

	t.Run("count", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunReplace(&Config{File: file, Count: true, Index: -1}, &out))
		assert.Equal(t, "3\n", out.String())
	})

	t.Run("stdout", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunReplace(&Config{File: file, Index: 1}, &out))
		assert.Equal(t, strings.Replace(passSource, "sq(x)", "x * x", 1), out.String())
	})

	t.Run("output_file", func(t *testing.T) {
		outFile := filepath.Join(t.TempDir(), "reduced.c")
		var out bytes.Buffer
		require.NoError(t, RunReplace(&Config{File: file, Index: 0, OutputFile: outFile}, &out))
		assert.Empty(t, out.String())

		data, err := os.ReadFile(outFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "return x + y + sq(x)")
	})

	t.Run("output_exists", func(t *testing.T) {
		outFile := filepath.Join(t.TempDir(), "reduced.c")
		require.NoError(t, os.WriteFile(outFile, []byte("keep"), 0644))

		var out bytes.Buffer
		err := RunReplace(&Config{File: file, Index: 0, OutputFile: outFile}, &out)
		assert.ErrorIs(t, err, ErrOutputExists)
		data, err := os.ReadFile(outFile)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(data))

		require.NoError(t, RunReplace(&Config{File: file, Index: 0, OutputFile: outFile, Force: true}, &out))
		data, err = os.ReadFile(outFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "return x + y + sq(x)")
	})

	t.Run("in_place", func(t *testing.T) {
		inPlace := filepath.Join(t.TempDir(), "unit.c")
		require.NoError(t, os.WriteFile(inPlace, []byte(passSource), 0644))

		var out bytes.Buffer
		err := RunReplace(&Config{File: inPlace, Index: 1, OutputFile: inPlace}, &out)
		assert.ErrorIs(t, err, ErrOutputExists)

		require.NoError(t, RunReplace(&Config{File: inPlace, Index: 1, OutputFile: inPlace, Force: true}, &out))
		data, err := os.ReadFile(inPlace)
		require.NoError(t, err)
		assert.Equal(t, strings.Replace(passSource, "sq(x)", "x * x", 1), string(data))
	})

	t.Run("diff", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunReplace(&Config{File: file, Index: 2, Diff: true}, &out))
		assert.Contains(t, out.String(), "+\treturn add(x, y) + sq(x) + y + 2;\n")
	})

	t.Run("out_of_range", func(t *testing.T) {
		var out bytes.Buffer
		err := RunReplace(&Config{File: file, Index: 3}, &out)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		assert.Empty(t, out.String())

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Equal(t, passSource, string(data))
	})

	t.Run("cached", func(t *testing.T) {
		cfg := &Config{File: file, Index: 0, CacheMB: 1, CacheDir: filepath.Join(t.TempDir(), "cache")}
		if testing.Short() {
			cfg.CacheDir = ""
		}
		for i := 0; i < 2; i++ {
			var out bytes.Buffer
			require.NoError(t, RunReplace(cfg, &out))
			assert.Contains(t, out.String(), "return x + y + sq(x)")
		}
	})

	t.Run("clear_cache", func(t *testing.T) {
		cfg := &Config{File: file, Count: true, Index: -1, CacheMB: 1, CacheDir: filepath.Join(t.TempDir(), "cache")}
		if testing.Short() {
			cfg.CacheDir = ""
		}
		var out bytes.Buffer
		require.NoError(t, RunReplace(cfg, &out))

		cfg.ClearCache = true
		out.Reset()
		require.NoError(t, RunReplace(cfg, &out))
		assert.Equal(t, "3\n", out.String())
	})
}

func TestRunScan(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/unit.c": passSource,
		"main.go":    "package main\n\nfunc one() int { return 1 }\n\nfunc main() { println(one()) }\n",
	})
	outDir := t.TempDir()
	cfg := &Config{
		Dir:            root,
		Index:          -1,
		CacheMB:        1,
		ReportJsonFile: filepath.Join(outDir, "candidates.json"),
	}
	if !testing.Short() {
		cfg.ReportChartsFile = filepath.Join(outDir, "candidates.svg")
	}

	metrics, err := RunScan(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.FileCount)
	assert.Equal(t, 4, metrics.CandidateCount)
	assert.Equal(t, map[string]int{"c": 1, "go": 1}, metrics.LanguageCounts)

	data, err := os.ReadFile(cfg.ReportJsonFile)
	require.NoError(t, err)
	var decoded ReportMetrics
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 4, decoded.CandidateCount)

	if cfg.ReportChartsFile != "" {
		assert.True(t, FileExists(cfg.ReportChartsFile))
	}
}
