package reduce

import (
	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff renders the change between two versions of a file as a unified diff.
func UnifiedDiff(name string, before, after []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: name,
		ToFile:   name + ".reduced",
		Context:  2,
	})
}
