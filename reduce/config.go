package reduce

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
)

// Config holds the settings of a reducer invocation.
type Config struct {
	// File is the unit targeted by single file invocations.
	File, Language string
	// Index selects the candidate to rewrite, a negative value means none.
	Index      int
	Count      bool
	OutputFile string
	// Force allows OutputFile to replace an existing file.
	Force bool
	Diff  bool
	// Dir is the root scanned by batch invocations.
	Dir                              string
	Languages                        []string
	CacheDir                         string
	CacheMB                          int
	ClearCache                       bool
	ReportJsonFile, ReportChartsFile string
}

// Prepare validates the languages and normalizes paths.
func (c *Config) Prepare() error {
	if c.Language != "" {
		if _, err := FrontEndForLanguage(c.Language); err != nil {
			return err
		}
	}
	for _, lang := range c.Languages {
		if _, err := FrontEndForLanguage(lang); err != nil {
			return err
		}
	}
	if c.Dir != "" {
		absDir, err := filepath.Abs(c.Dir)
		if err != nil {
			return fmt.Errorf("resolve directory failed: %w", err)
		}
		c.Dir = absDir
	}
	return nil
}

// OpenPass builds a pass with the configured fact cache, emptied first when ClearCache is set.
// The returned closer releases the cache and must be called when the pass is no longer used.
func (c *Config) OpenPass() (*Pass, func(), error) {
	if c.CacheMB <= 0 {
		return NewPass(nil), func() {}, nil
	}
	var store Storage
	if c.CacheDir != "" {
		var err error
		if store, err = NewBadgerStorage(c.CacheDir, c.CacheMB); err != nil {
			return nil, nil, err
		}
	} else {
		store = NewMemStorage()
	}
	cache, err := NewFactCache(store, c.CacheMB)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if c.ClearCache {
		removed, err := cache.Clear()
		if err != nil {
			cache.Close()
			return nil, nil, fmt.Errorf("clear fact cache failed: %w", err)
		}
		log.Printf("Cleared %d cached results", removed)
	}
	return NewPass(cache), cache.Close, nil
}

// ParseLanguages splits a comma separated language list, ignoring empty entries.
func ParseLanguages(list string) ([]string, error) {
	var langs []string
	var errs []error
	for _, lang := range strings.Split(list, ",") {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			continue
		} else if _, err := FrontEndForLanguage(lang); err != nil {
			errs = append(errs, err)
			continue
		}
		langs = append(langs, lang)
	}
	return langs, errors.Join(errs...)
}
