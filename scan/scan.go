// Package scan synchronizes the translation stores of a lang directory with
// the keys referenced in source roots.
//
// For every root and every locale the extracted keys are classified, checked
// against the stored values and the ones that need it are (re)generated,
// either as a readable fallback label or through the translator. Each store
// is rewritten at most once per locale, and only when one of its values
// actually changed, so a repeated run without source changes writes nothing.
package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/minios-linux/transcan/extract"
	"github.com/minios-linux/transcan/jsonfile"
	"github.com/minios-linux/transcan/keys"
	"github.com/minios-linux/transcan/merge"
	"github.com/minios-linux/transcan/metrics"
	"github.com/minios-linux/transcan/policy"
	"github.com/minios-linux/transcan/translate"
	"github.com/minios-linux/transcan/yamlfile"
)

// Store labels used in reports and metrics.
const (
	StoreNamespaced = "namespaced"
	StoreFlat       = "json"
)

// Options controls a synchronization run.
type Options struct {
	// LangDir is the storage area holding <locale>.json and <locale>/<ns>.yaml.
	LangDir string
	// Paths are the source roots to scan.
	Paths   []string
	Locales []string
	// Ignore holds substrings; a root containing one of them is skipped.
	Ignore []string
	// IgnoreFiles and IgnoreDirs are glob patterns passed to the extractor.
	IgnoreFiles []string
	IgnoreDirs  []string
	// Overwrite regenerates every referenced key.
	Overwrite  bool
	Heuristics policy.Heuristics

	// Translate enables machine translation through Translator. When false,
	// generated values are the fallback labels.
	Translate  bool
	Translator *translate.Adapter
	// Concurrency bounds the translator calls in flight for one store.
	Concurrency int

	// OnScanProgress is called after each file of a root is read.
	OnScanProgress func(root string, done, total int)
	// OnTranslateProgress is called after each translated key of a store.
	OnTranslateProgress func(file string, done, total int)

	Log zerolog.Logger
}

// RootReport describes one scanned root.
type RootReport struct {
	Root string
	// Skipped is set when the root was ignored or does not exist.
	Skipped string
	Files   int
	Keys    int
}

// StoreReport describes the outcome of one store for one locale.
type StoreReport struct {
	Root   string
	Locale string
	// Kind is StoreNamespaced or StoreFlat.
	Kind string
	// File is the store path relative to the lang directory.
	File  string
	Stats merge.Stats
	// Written reports whether the file was rewritten.
	Written bool
	// Err is set when the store could not be written; the run continues
	// with the next store.
	Err error
}

// Report is the result of Run.
type Report struct {
	Roots  []RootReport
	Stores []StoreReport
}

// Changed returns the number of keys added or updated across all stores.
func (r *Report) Changed() int {
	n := 0
	for _, s := range r.Stores {
		n += s.Stats.Changed()
	}
	return n
}

// Written returns the reports of the stores that were rewritten.
func (r *Report) Written() []StoreReport {
	var out []StoreReport
	for _, s := range r.Stores {
		if s.Written {
			out = append(out, s)
		}
	}
	return out
}

// Failed returns the reports of the stores that could not be written.
func (r *Report) Failed() []StoreReport {
	var out []StoreReport
	for _, s := range r.Stores {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Run scans every root and synchronizes the stores of every locale.
// Missing or ignored roots are reported and skipped, and a store that cannot
// be written is logged and recorded in its StoreReport. An error is returned
// only when a root cannot be read or the context is cancelled. Stores
// written before the error stay on disk.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.LangDir == "" {
		return nil, errors.New("lang directory not set")
	}
	if opts.Translate && opts.Translator == nil {
		return nil, errors.New("translation requested without a translator")
	}

	s := &syncer{
		opts: opts,
		yaml: yamlfile.NewStore(opts.LangDir, opts.Log),
		json: jsonfile.NewStore(opts.LangDir, opts.Log),
	}
	report := &Report{}

	for _, root := range opts.Paths {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if pattern, ignored := extract.IgnoredBy(root, opts.Ignore); ignored {
			opts.Log.Info().Str("root", root).Str("pattern", pattern).Msg("root ignored")
			report.Roots = append(report.Roots, RootReport{Root: root, Skipped: "ignored by " + pattern})
			continue
		}

		res, err := extract.Extract(root, extract.Options{
			IgnoreFiles: opts.IgnoreFiles,
			IgnoreDirs:  opts.IgnoreDirs,
			OnProgress:  s.scanProgress(root),
			Log:         opts.Log,
		})
		if errors.Is(err, extract.ErrRootNotFound) {
			opts.Log.Warn().Str("root", root).Msg("path not found, skipping")
			report.Roots = append(report.Roots, RootReport{Root: root, Skipped: "not found"})
			continue
		}
		if err != nil {
			return report, err
		}

		metrics.KeysExtracted.Add(float64(len(res.Keys)))
		report.Roots = append(report.Roots, RootReport{Root: root, Files: len(res.Files), Keys: len(res.Keys)})
		opts.Log.Debug().Str("root", root).Int("files", len(res.Files)).Int("keys", len(res.Keys)).Msg("keys extracted")

		grouped, flat := keys.ClassifyAll(res.Keys)
		for _, locale := range opts.Locales {
			locale = strings.TrimSpace(locale)
			if locale == "" {
				continue
			}
			for _, ns := range merge.SortedKeys(grouped) {
				sr := s.syncNamespace(ctx, locale, ns, grouped[ns])
				sr.Root = root
				report.Stores = append(report.Stores, sr)
			}
			if len(flat) > 0 {
				sr := s.syncFlat(ctx, locale, flat)
				sr.Root = root
				report.Stores = append(report.Stores, sr)
			}
		}
	}
	return report, nil
}

type syncer struct {
	opts Options
	yaml *yamlfile.Store
	json *jsonfile.Store
}

func (s *syncer) scanProgress(root string) func(done, total int) {
	if s.opts.OnScanProgress == nil {
		return nil
	}
	return func(done, total int) { s.opts.OnScanProgress(root, done, total) }
}

func (s *syncer) syncNamespace(ctx context.Context, locale, ns string, group []keys.Key) StoreReport {
	rel := filepath.ToSlash(filepath.Join(locale, ns+yamlfile.Ext))
	f := s.yaml.Load(locale, ns)

	pending := s.plan(f, locale, group, func(k keys.Key) string { return keys.Clean(k.Name) })
	staged := s.generate(ctx, locale, rel, pending)
	changed := changedOnly(f, staged)

	sr := StoreReport{Locale: locale, Kind: StoreNamespaced, File: rel, Stats: merge.Stats{Unchanged: len(group) - len(changed)}}
	if len(changed) == 0 {
		return sr
	}
	st, err := s.yaml.MergeWrite(locale, ns, changed)
	if err != nil {
		s.opts.Log.Error().Err(err).Str("locale", locale).Str("file", rel).Msg("store not written, skipping")
		sr.Err = err
		return sr
	}
	sr.Stats.Add(st)
	sr.Written = true
	s.record(locale, StoreNamespaced, rel, st)
	return sr
}

func (s *syncer) syncFlat(ctx context.Context, locale string, flat []keys.Key) StoreReport {
	rel := locale + jsonfile.Ext
	f := s.json.Load(locale)

	pending := s.plan(f, locale, flat, func(k keys.Key) string { return k.Raw })
	staged := s.generate(ctx, locale, rel, pending)
	changed := changedOnly(f, staged)

	sr := StoreReport{Locale: locale, Kind: StoreFlat, File: rel, Stats: merge.Stats{Unchanged: len(flat) - len(changed)}}
	if len(changed) == 0 {
		return sr
	}
	st, err := s.json.MergeWrite(locale, changed)
	if err != nil {
		s.opts.Log.Error().Err(err).Str("locale", locale).Str("file", rel).Msg("store not written, skipping")
		sr.Err = err
		return sr
	}
	sr.Stats.Add(st)
	sr.Written = true
	s.record(locale, StoreFlat, rel, st)
	return sr
}

// pendingKey is a key whose stored value has to be regenerated.
type pendingKey struct {
	storageKey string
	// fallback is the value written when no translation is made.
	fallback string
	// source is the text sent to the translator.
	source string
}

// plan returns the keys of group that the policy wants regenerated.
func (s *syncer) plan(f merge.Store, locale string, group []keys.Key, fallback func(keys.Key) string) []pendingKey {
	var out []pendingKey
	seen := make(map[string]bool, len(group))
	for _, k := range group {
		sk := keys.SafeKey(k.Name)
		if seen[sk] {
			continue
		}
		seen[sk] = true

		existing, _ := f.Lookup(sk)
		if !s.opts.Heuristics.NeedsGeneration(existing, locale, s.opts.Overwrite, k.Name) {
			continue
		}
		source := keys.Clean(k.Raw)
		if source == "" {
			source = k.Raw
		}
		out = append(out, pendingKey{storageKey: sk, fallback: fallback(k), source: source})
	}
	return out
}

// generate computes the new value of every pending key.
func (s *syncer) generate(ctx context.Context, locale, file string, pending []pendingKey) map[string]string {
	staged := make(map[string]string, len(pending))
	if !s.opts.Translate {
		for _, p := range pending {
			staged[p.storageKey] = p.fallback
		}
		return staged
	}

	jobs := make([]translate.Job, len(pending))
	for i, p := range pending {
		jobs[i] = translate.Job{Key: p.storageKey, Text: p.source}
	}
	var progress func(done, total int)
	if s.opts.OnTranslateProgress != nil {
		progress = func(done, total int) { s.opts.OnTranslateProgress(file, done, total) }
	}
	for k, v := range s.opts.Translator.TranslateAll(ctx, locale, jobs, s.opts.Concurrency, progress) {
		staged[k] = v
	}
	return staged
}

// changedOnly drops staged values that are already stored verbatim.
func changedOnly(f merge.Store, staged map[string]string) map[string]string {
	out := make(map[string]string, len(staged))
	for k, v := range staged {
		if merge.Compare(f, k, v) != merge.Unchanged {
			out[k] = v
		}
	}
	return out
}

func (s *syncer) record(locale, kind, file string, st merge.Stats) {
	metrics.KeysWritten.WithLabelValues(locale, kind).Add(float64(st.Changed()))
	s.opts.Log.Info().
		Str("locale", locale).
		Str("file", file).
		Int("added", st.Added).
		Int("updated", st.Updated).
		Msg("store updated")
}

// Summary formats a one-line description of a store report.
func (sr StoreReport) Summary() string {
	if sr.Err != nil {
		return fmt.Sprintf("%s: not written: %v", sr.File, sr.Err)
	}
	if !sr.Written {
		return fmt.Sprintf("%s: up to date", sr.File)
	}
	return fmt.Sprintf("%s: %d new, %d updated", sr.File, sr.Stats.Added, sr.Stats.Updated)
}
