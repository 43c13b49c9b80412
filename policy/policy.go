// Package policy decides whether a stored translation value has to be
// (re)generated during a scan.
package policy

import (
	"regexp"
	"sort"
	"unicode"

	"github.com/minios-linux/transcan/keys"
	"github.com/minios-linux/transcan/langmeta"
)

// Heuristics holds the script checks used to spot values stored in the
// wrong language. Locales are matched on their base language, so "ar"
// also covers "ar-EG".
type Heuristics struct {
	// ASCIIOnly lists locales whose values are suspicious when they consist
	// only of ASCII letters, digits and whitespace.
	ASCIIOnly []string `yaml:"ascii_only"`
	// ForeignScripts maps a locale to unicode script names that must not
	// appear in its values.
	ForeignScripts map[string][]string `yaml:"foreign_scripts"`
}

// Default returns the reference pair: Arabic values must not be plain ASCII,
// English values must not contain Arabic.
func Default() Heuristics {
	return Heuristics{
		ASCIIOnly:      []string{"ar"},
		ForeignScripts: map[string][]string{"en": {"Arabic"}},
	}
}

// Derive extends h for the given locales using their primary scripts:
// locales written in a non-Latin script are checked for plain ASCII values,
// and Latin-script locales are checked against every non-Latin script in use.
func (h Heuristics) Derive(locales []string) Heuristics {
	out := Heuristics{
		ASCIIOnly:      append([]string(nil), h.ASCIIOnly...),
		ForeignScripts: make(map[string][]string, len(h.ForeignScripts)),
	}
	for l, scripts := range h.ForeignScripts {
		out.ForeignScripts[l] = append([]string(nil), scripts...)
	}

	foreign := make(map[string]bool)
	var latin []string
	for _, l := range locales {
		meta := langmeta.Resolve(l)
		switch meta.Script {
		case "":
		case "Latin":
			latin = append(latin, l)
		default:
			foreign[meta.Script] = true
			if !out.asciiOnly(l) {
				out.ASCIIOnly = append(out.ASCIIOnly, l)
			}
		}
	}

	scripts := make([]string, 0, len(foreign))
	for s := range foreign {
		scripts = append(scripts, s)
	}
	sort.Strings(scripts)
	for _, l := range latin {
		for _, s := range scripts {
			if !contains(out.ForeignScripts[l], s) {
				out.ForeignScripts[l] = append(out.ForeignScripts[l], s)
			}
		}
	}
	return out
}

var asciiWords = regexp.MustCompile(`^[a-zA-Z0-9\s]+$`)

// NeedsGeneration reports whether value, stored for key under locale, has to
// be regenerated. value is nil when the key is absent. The checks run in
// order and the first match wins.
func (h Heuristics) NeedsGeneration(value any, locale string, overwrite bool, key string) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok && s == "" {
		return true
	}
	if overwrite {
		return true
	}

	s, ok := value.(string)
	if ok && (s == key || s == keys.Clean(key)) {
		return true
	}
	if !ok {
		return true
	}

	if h.asciiOnly(locale) && asciiWords.MatchString(s) {
		return true
	}
	if h.hasForeignScript(locale, s) {
		return true
	}
	return false
}

func (h Heuristics) asciiOnly(locale string) bool {
	for _, l := range h.ASCIIOnly {
		if langmeta.SameLanguage(l, locale) {
			return true
		}
	}
	return false
}

func (h Heuristics) hasForeignScript(locale, s string) bool {
	var tables []*unicode.RangeTable
	for l, scripts := range h.ForeignScripts {
		if !langmeta.SameLanguage(l, locale) {
			continue
		}
		for _, name := range scripts {
			if t, ok := unicode.Scripts[name]; ok {
				tables = append(tables, t)
			}
		}
	}
	if len(tables) == 0 {
		return false
	}
	for _, r := range s {
		if unicode.IsOneOf(tables, r) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
