package translate

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/minios-linux/transcan/langmeta"
	"github.com/minios-linux/transcan/lockfile"
	"github.com/minios-linux/transcan/metrics"
)

// Adapter wraps a Translator for the scanner. It never fails: text in the
// source language is returned as is, and any translator error degrades to
// the input text with a warning.
type Adapter struct {
	Translator   Translator
	SourceLocale string
	// Memory, when set, is consulted before and updated after each call.
	Memory *lockfile.LockFile
	Log    zerolog.Logger
}

// Translate returns text translated into locale, or text itself when
// locale is the source language or the translation failed.
func (a *Adapter) Translate(ctx context.Context, text, locale string) string {
	if a.Translator == nil || langmeta.SameLanguage(locale, a.source()) || strings.TrimSpace(text) == "" {
		return text
	}

	if a.Memory != nil {
		if cached, ok := a.Memory.Lookup(locale, text); ok {
			metrics.TranslatorRequests.WithLabelValues(metrics.OutcomeCached).Inc()
			return cached
		}
	}

	out, err := a.Translator.Translate(ctx, text, locale)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrMalformedResponse
	}
	if err != nil {
		metrics.TranslatorRequests.WithLabelValues(metrics.OutcomeFallback).Inc()
		a.Log.Warn().Err(err).Str("locale", locale).Str("text", text).Msg("translation failed, keeping source text")
		return text
	}

	metrics.TranslatorRequests.WithLabelValues(metrics.OutcomeTranslated).Inc()
	if a.Memory != nil {
		a.Memory.Remember(locale, text, out)
	}
	return out
}

func (a *Adapter) source() string {
	if a.SourceLocale != "" {
		return a.SourceLocale
	}
	return "en"
}

// Job is one text to translate, identified by Key.
type Job struct {
	Key  string
	Text string
}

// TranslateAll translates every job into locale with at most concurrency
// calls in flight and returns the results by job key. onProgress, if set,
// is called after each job.
func (a *Adapter) TranslateAll(ctx context.Context, locale string, jobs []Job, concurrency int, onProgress func(done, total int)) map[string]string {
	results := make(map[string]string, len(jobs))
	var mu sync.Mutex
	done := 0

	_ = runParallelGeneric(ctx, jobs, concurrency, 0, func(ctx context.Context, j Job) error {
		out := a.Translate(ctx, j.Text, locale)

		mu.Lock()
		defer mu.Unlock()
		results[j.Key] = out
		done++
		if onProgress != nil {
			onProgress(done, len(jobs))
		}
		return nil
	})

	// Jobs never started because ctx was cancelled keep their source text.
	for _, j := range jobs {
		if _, ok := results[j.Key]; !ok {
			results[j.Key] = j.Text
		}
	}
	return results
}
