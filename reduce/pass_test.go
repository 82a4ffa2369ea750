package reduce

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passSource = `int add(int a, int b) { return a + b; }
int sq(int v) { return v * v; }
int use(int x, int y) {
	return add(x, y) + sq(x) + add(y, 2);
}
`

func analyzePass(t *testing.T, p *Pass, language, src string) *Result {
	t.Helper()

	fe, err := FrontEndForLanguage(language)
	require.NoError(t, err)
	result, err := p.Analyze(fe, "unit."+language, []byte(src))
	require.NoError(t, err)
	return result
}

func TestPassTransform(t *testing.T) {
	t.Parallel()

	result := analyzePass(t, NewPass(nil), "c", passSource)
	require.Equal(t, 3, result.Count())

	tests := []struct {
		name     string
		index    int
		expected string
	}{
		{
			name:     "first",
			index:    0,
			expected: "x + y + sq(x) + add(y, 2)",
		},
		{
			name:     "middle",
			index:    1,
			expected: "add(x, y) + x * x + add(y, 2)",
		},
		{
			name:     "last",
			index:    2,
			expected: "add(x, y) + sq(x) + y + 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := []byte(passSource)
			out, err := result.Transform(src, tt.index)
			require.NoError(t, err)
			assert.Contains(t, string(out), "\treturn "+tt.expected+";\n")
			assert.Equal(t, passSource, string(src))

			c, err := result.Candidate(tt.index)
			require.NoError(t, err)
			assert.Equal(t, passSource[:c.Call.Start], string(out[:c.Call.Start]))
			suffix := passSource[c.Call.End:]
			assert.Equal(t, suffix, string(out[len(out)-len(suffix):]))
		})
	}

	for _, index := range []int{3, 4, -1} {
		t.Run("out_of_range", func(t *testing.T) {
			_, err := result.Transform([]byte(passSource), index)
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
		})
	}
}

func TestPassEmptyOutcomes(t *testing.T) {
	t.Parallel()

	t.Run("no_eligible_functions", func(t *testing.T) {
		result := analyzePass(t, NewPass(nil), "c", "void log_it(int a) { puts(\"x\"); }\nint use(void) { log_it(1); return 0; }\n")
		assert.Zero(t, result.Count())
		_, err := result.Transform([]byte("x"), 0)
		assert.ErrorIs(t, err, ErrNoEligibleFunctions)
	})

	t.Run("no_valid_candidates", func(t *testing.T) {
		result := analyzePass(t, NewPass(nil), "c", "int add(int a, int b) { return a + b; }\nint use(void) { return add(1); }\n")
		assert.Zero(t, result.Count())
		_, err := result.Transform([]byte("x"), 0)
		assert.ErrorIs(t, err, ErrNoValidCandidates)
	})

	t.Run("no_calls", func(t *testing.T) {
		result := analyzePass(t, NewPass(nil), "go", "package sample\n\nfunc one() int { return 1 }\n")
		assert.Zero(t, result.Count())
		_, err := result.Candidate(0)
		assert.ErrorIs(t, err, ErrNoValidCandidates)
	})
}

func TestPassCache(t *testing.T) {
	t.Parallel()

	store := NewMemStorage()
	cache, err := NewFactCache(store, 1)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	p := NewPass(cache)

	first := analyzePass(t, p, "c", passSource)
	cache.Wait()
	keys, err := store.ListKeysPrefix("")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	second := analyzePass(t, p, "c", passSource)
	require.Equal(t, first.Count(), second.Count())
	for i := 0; i < first.Count(); i++ {
		expected, err := first.Transform([]byte(passSource), i)
		require.NoError(t, err)
		actual, err := second.Transform([]byte(passSource), i)
		require.NoError(t, err)
		assert.Equal(t, string(expected), string(actual))
	}

	// a different language over identical bytes is a separate entry
	_, err = p.Analyze(cFrontEnd{}, "unit.h", []byte(passSource))
	require.NoError(t, err)
	keys, err = store.ListKeysPrefix("")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	_, err = p.Analyze(goFrontEnd{}, "unit.go", []byte("package sample\n"))
	require.NoError(t, err)
	keys, err = store.ListKeysPrefix("")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestPassCacheGoPackageScope(t *testing.T) {
	t.Parallel()

	const src = "package sample\n\nfunc add(a, b int) int { return a + b }\n\nfunc use() int { return add(1, 2) }\n"
	root := t.TempDir()
	var paths []string
	for _, mod := range []string{"one", "two"} {
		dir := filepath.Join(root, mod)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/"+mod+"\n\ngo 1.24\n"), 0644))
		path := filepath.Join(dir, "sample.go")
		require.NoError(t, os.WriteFile(path, []byte(src), 0644))
		paths = append(paths, path)
	}

	cache, err := NewFactCache(NewMemStorage(), 1)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	p := NewPass(cache)

	first, _, err := p.AnalyzeFile(paths[0], "")
	require.NoError(t, err)
	cache.Wait()
	second, _, err := p.AnalyzeFile(paths[1], "")
	require.NoError(t, err)

	require.Equal(t, 1, first.Count())
	require.Equal(t, 1, second.Count())
	assert.Equal(t, "example.com/one:add", first.Candidates[0].Callee)
	assert.Equal(t, "example.com/two:add", second.Candidates[0].Callee)
	assert.Equal(t, paths[1], second.Filename)
}

func TestPassAnalyzeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "unit.c")
	require.NoError(t, os.WriteFile(path, []byte(passSource), 0644))

	t.Run("by_extension", func(t *testing.T) {
		result, src, err := NewPass(nil).AnalyzeFile(path, "")
		require.NoError(t, err)
		assert.Equal(t, passSource, string(src))
		assert.Equal(t, "c", result.Language)
		assert.Equal(t, 3, result.Count())
	})

	t.Run("explicit_language", func(t *testing.T) {
		txt := filepath.Join(dir, "unit.txt")
		require.NoError(t, os.WriteFile(txt, []byte(passSource), 0644))
		result, _, err := NewPass(nil).AnalyzeFile(txt, "c")
		require.NoError(t, err)
		assert.Equal(t, 3, result.Count())

		_, _, err = NewPass(nil).AnalyzeFile(txt, "")
		assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, _, err := NewPass(nil).AnalyzeFile(filepath.Join(dir, "missing.c"), "")
		assert.Error(t, err)
	})
}
