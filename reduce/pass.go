package reduce

import (
	"errors"
	"fmt"
	"log"
	"os"
)

var (
	// ErrNoEligibleFunctions indicates the unit has no single-return function.
	ErrNoEligibleFunctions = errors.New("no eligible functions")
	// ErrNoValidCandidates indicates no call site could be paired with an eligible function.
	ErrNoValidCandidates = errors.New("no valid candidates")
	// ErrIndexOutOfRange indicates the requested candidate index does not exist.
	ErrIndexOutOfRange = errors.New("candidate index out of range")
	// ErrOffsetResolution indicates a source range could not be resolved to text. Only the
	// affected rewrite request fails.
	ErrOffsetResolution = errors.New("offset resolution failure")
)

// Pass runs the replace-call-expression transformation against single translation units.
type Pass struct {
	cache *FactCache
}

// NewPass returns a pass. The cache is optional and may be nil.
func NewPass(cache *FactCache) *Pass {
	return &Pass{cache: cache}
}

// AnalyzeFile reads and analyzes the file, selecting the front end by extension unless a
// language is provided.
func (p *Pass) AnalyzeFile(filename, language string) (*Result, []byte, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("read failure %s: %w", filename, err)
	}
	var fe FrontEnd
	if language != "" {
		fe, err = FrontEndForLanguage(language)
	} else {
		fe, err = FrontEndForFile(filename)
	}
	if err != nil {
		return nil, nil, err
	}
	result, err := p.Analyze(fe, filename, src)
	return result, src, err
}

// Analyze collects and matches the unit, reusing a cached result for identical source in the
// same front end scope.
func (p *Pass) Analyze(fe FrontEnd, filename string, src []byte) (*Result, error) {
	var key string
	if p.cache != nil {
		var scope string
		if scoper, ok := fe.(cacheScoper); ok {
			scope = scoper.CacheScope(filename)
		}
		key = FactKey(fe.Language(), scope, src)
		if cached, ok, err := p.cache.Load(key); err != nil {
			log.Printf("%sFact cache load failed for %s: %v", ErrorLogPrefix, filename, err)
		} else if ok {
			cached.Filename = filename
			return cached, nil
		}
	}

	unit, err := fe.Parse(filename, src)
	if err != nil {
		return nil, err
	}
	result := Analyze(unit, Collect(unit))

	if p.cache != nil {
		if err := p.cache.Save(key, result); err != nil {
			log.Printf("%sFact cache save failed for %s: %v", ErrorLogPrefix, filename, err)
		}
	}
	return result, nil
}

// Count returns the number of candidates, the upper bound (exclusive) of valid indexes.
func (r *Result) Count() int {
	return len(r.Candidates)
}

// Candidate returns the candidate at the zero-based index.
func (r *Result) Candidate(index int) (Candidate, error) {
	if r.Functions == 0 {
		return Candidate{}, ErrNoEligibleFunctions
	} else if len(r.Candidates) == 0 {
		return Candidate{}, ErrNoValidCandidates
	} else if index < 0 || index >= len(r.Candidates) {
		return Candidate{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(r.Candidates))
	}
	return r.Candidates[index], nil
}

// Transform rewrites the candidate at the zero-based index, returning a new buffer in which
// only that call expression differs from src. On failure src is left untouched.
func (r *Result) Transform(src []byte, index int) ([]byte, error) {
	c, err := r.Candidate(index)
	if err != nil {
		return nil, err
	}
	return Rewrite(src, c)
}
