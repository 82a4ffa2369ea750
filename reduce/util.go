package reduce

import (
	"crypto/sha1"
	"runtime"

	"github.com/mtraver/base91"
	"golang.org/x/sync/errgroup"
)

const ErrorLogPrefix = "!! "

// ErrGroupLimitCPU returns an errgroup limited to NumCPU.
func ErrGroupLimitCPU() *errgroup.Group {
	errGroup := &errgroup.Group{}
	errGroup.SetLimit(runtime.NumCPU())
	return errGroup
}

// FactKey returns the content address of a unit's analysis: the language, the front end scope
// of the file and the exact source bytes, hashed and rendered in base91.
func FactKey(language, scope string, src []byte) string {
	h := sha1.New()
	_, _ = h.Write([]byte(language))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(scope))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(src)
	return base91.StdEncoding.EncodeToString(h.Sum(nil))
}
