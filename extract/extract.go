// Package extract finds translation keys referenced in template and source
// files. It recognises the three Laravel call forms
//
//	__('key')   @lang('key')   trans('key')
//
// with single- or double-quoted literals, and collects the quoted text as a
// raw key. Keys are deduplicated per scan root.
package extract

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// ErrRootNotFound is returned when a scan root does not exist.
var ErrRootNotFound = errors.New("path not found")

// Patterns are the recognised key-referencing call forms. Each captures the
// literal in group 1.
var Patterns = []*regexp.Regexp{
	regexp.MustCompile(`__\(['"](.+?)['"]\)`),
	regexp.MustCompile(`@lang\(['"](.+?)['"]\)`),
	regexp.MustCompile(`trans\(['"](.+?)['"]\)`),
}

// Options controls a scan.
type Options struct {
	// IgnoreFiles are glob patterns matched against file names.
	IgnoreFiles []string
	// IgnoreDirs are glob patterns matched against directory names and
	// against slash-separated paths relative to the root.
	IgnoreDirs []string
	// OnProgress is called after each file is read.
	OnProgress func(done, total int)
	Log        zerolog.Logger
}

// Result holds the outcome of scanning one root.
type Result struct {
	Root string
	// Files lists every file that was read.
	Files []string
	// Skipped lists files that could not be read.
	Skipped []string
	// Keys holds the raw keys in first-seen order, without duplicates.
	Keys []string
}

// IgnoredBy returns the first non-empty pattern contained in root.
func IgnoredBy(root string, ignore []string) (string, bool) {
	for _, skip := range ignore {
		skip = strings.TrimSpace(skip)
		if skip != "" && strings.Contains(root, skip) {
			return skip, true
		}
	}
	return "", false
}

// FindSources lists the files under root that survive the ignore rules,
// in lexical order.
func FindSources(root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			opts.Log.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matchAny(opts.IgnoreDirs, d.Name(), rel) {
				opts.Log.Debug().Str("dir", rel).Msg("directory ignored")
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matchAny(opts.IgnoreFiles, d.Name()) {
			opts.Log.Debug().Str("file", rel).Msg("file ignored")
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return files, nil
}

// Extract scans root and returns the keys found in its files. A file that
// cannot be read is logged and skipped.
func Extract(root string, opts Options) (*Result, error) {
	files, err := FindSources(root, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{Root: root}
	seen := make(map[string]bool)
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			opts.Log.Warn().Err(err).Str("file", path).Msg("cannot read file, skipping")
			res.Skipped = append(res.Skipped, path)
		} else {
			res.Files = append(res.Files, path)
			for _, key := range Keys(string(data)) {
				if !seen[key] {
					seen[key] = true
					res.Keys = append(res.Keys, key)
				}
			}
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(files))
		}
	}
	return res, nil
}

// Keys applies every pattern to content and returns the captured literals
// grouped by pattern, in match order. Duplicates are kept.
func Keys(content string) []string {
	var keys []string
	for _, re := range Patterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			keys = append(keys, m[1])
		}
	}
	return keys
}

// matchAny reports whether any pattern equals or glob-matches one of names.
func matchAny(patterns []string, names ...string) bool {
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for _, name := range names {
			if name == p {
				return true
			}
			if ok, err := doublestar.Match(p, name); err == nil && ok {
				return true
			}
		}
	}
	return false
}
