// Package i18n provides internationalization support for transcan itself.
//
// It wraps the gotext library. The CLI uses the package-level T() and N()
// after Init(); the catalog server builds one Translator per UI language
// and picks it from the Accept-Language header with Negotiate().
//
// Usage:
//
//	i18n.Init("")  // auto-detect from LANGUAGE/LC_ALL/LC_MESSAGES/LANG
//	fmt.Println(i18n.T("Scanning files"))
//	fmt.Println(i18n.N("%d entry", "%d entries", count, count))
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

// locales embeds the translation files.
// Directory structure: locales/{lang}/LC_MESSAGES/transcan.po
//
//go:embed all:locales
var locales embed.FS

// domain is the gettext domain name for transcan.
const domain = "transcan"

// SourceLanguage is the language the msgids are written in.
const SourceLanguage = "en"

// Translator translates messages into one language.
type Translator struct {
	lang string
	po   *gotext.Locale
}

// New returns a Translator for lang. Languages without a catalog pass
// messages through unchanged.
func New(lang string) *Translator {
	po := gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
	return &Translator{lang: lang, po: po}
}

// Lang returns the language the translator was built for.
func (t *Translator) Lang() string {
	if t == nil {
		return SourceLanguage
	}
	return t.lang
}

// T translates msgid, formatting it with vars when given.
func (t *Translator) T(msgid string, vars ...any) string {
	if t == nil || t.po == nil {
		return sprintf(msgid, vars)
	}
	return t.po.Get(msgid, vars...)
}

// N translates a message with plural forms, formatting it with vars.
func (t *Translator) N(singular, plural string, n int, vars ...any) string {
	if t == nil || t.po == nil {
		if n == 1 {
			return sprintf(singular, vars)
		}
		return sprintf(plural, vars)
	}
	return t.po.GetN(singular, plural, n, vars...)
}

// std is the translator used by T and N.
var std *Translator

// Init initializes the package-level translator. If lang is empty, it
// auto-detects from the environment variables LANGUAGE, LC_ALL,
// LC_MESSAGES, LANG (in that order, matching GNU gettext behavior).
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	std = New(lang)
}

// T translates a string with the package-level translator. If no
// translation is available, returns the original string unchanged.
func T(msgid string, vars ...any) string {
	return std.T(msgid, vars...)
}

// N translates a string with plural forms with the package-level translator.
func N(singular, plural string, n int, vars ...any) string {
	return std.N(singular, plural, n, vars...)
}

// Languages returns the UI languages: the source language plus every
// embedded catalog, sorted.
func Languages() []string {
	langs := []string{SourceLanguage}
	entries, err := fs.ReadDir(locales, "locales")
	if err != nil {
		return langs
	}
	for _, e := range entries {
		if e.IsDir() && e.Name() != SourceLanguage {
			langs = append(langs, e.Name())
		}
	}
	sort.Strings(langs)
	return langs
}

// supported lists the UI languages with the source language first, so it
// wins when nothing matches.
func supported() []string {
	langs := []string{SourceLanguage}
	for _, l := range Languages() {
		if l != SourceLanguage {
			langs = append(langs, l)
		}
	}
	return langs
}

var matcher = func() language.Matcher {
	var tags []language.Tag
	for _, l := range supported() {
		tags = append(tags, language.Make(l))
	}
	return language.NewMatcher(tags)
}()

// Negotiate picks the best UI language for an Accept-Language header.
func Negotiate(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return SourceLanguage
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return SourceLanguage
	}
	return supported()[idx]
}

func sprintf(format string, vars []any) string {
	if len(vars) == 0 {
		return format
	}
	return fmt.Sprintf(format, vars...)
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions.
func detectLanguage() string {
	// GNU gettext priority: LANGUAGE > LC_ALL > LC_MESSAGES > LANG
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := os.Getenv(env); val != "" {
			// LANGUAGE can be a colon-separated list; take the first
			if env == "LANGUAGE" {
				val, _, _ = strings.Cut(val, ":")
			}
			// Strip encoding suffix (e.g. "ar_EG.UTF-8" -> "ar_EG")
			if idx := strings.IndexByte(val, '.'); idx >= 0 {
				val = val[:idx]
			}
			if val == "C" || val == "POSIX" || val == "" {
				continue
			}
			return val
		}
	}
	return SourceLanguage
}
