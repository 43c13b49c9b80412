// Package keys classifies raw translation keys and derives the storage and
// display forms used by the stores.
//
// A raw key such as "messages.welcome_text" is namespaced: it lives in the
// "messages" store under the subkey "welcome_text". A key without a usable
// namespace ("Please log in", "home.") is flat and lives in the per-locale
// JSON document.
package keys

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Separator splits a namespace from its subkey.
const Separator = "."

// Kind tells which store a classified key belongs to.
type Kind int

const (
	// Flat keys are stored in <locale>.json.
	Flat Kind = iota
	// Namespaced keys are stored in <locale>/<namespace>.yaml.
	Namespaced
)

func (k Kind) String() string {
	if k == Namespaced {
		return "namespaced"
	}
	return "flat"
}

// Key is a classified raw key.
type Key struct {
	// Raw is the literal extracted from source text.
	Raw string
	Kind Kind
	// Namespace is the sanitized store name (namespaced keys only).
	Namespace string
	// Name is the subkey for namespaced keys and the raw key for flat keys.
	Name string
}

var unsafeNamespaceChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

// Sanitize replaces every character outside [A-Za-z0-9_-] with '_'.
func Sanitize(namespace string) string {
	return unsafeNamespaceChars.ReplaceAllString(namespace, "_")
}

// Classify splits raw at the first separator. A key with nothing after the
// separator, or with an empty namespace, stays flat and keeps its full text.
func Classify(raw string) Key {
	prefix, rest, found := strings.Cut(raw, Separator)
	if !found || strings.TrimSpace(rest) == "" {
		return Key{Raw: raw, Kind: Flat, Name: raw}
	}
	ns := Sanitize(prefix)
	if ns == "" {
		return Key{Raw: raw, Kind: Flat, Name: raw}
	}
	return Key{Raw: raw, Kind: Namespaced, Namespace: ns, Name: rest}
}

// ClassifyAll classifies raws and groups them by store: namespaced keys by
// namespace, flat keys in input order.
func ClassifyAll(raws []string) (grouped map[string][]Key, flat []Key) {
	grouped = make(map[string][]Key)
	for _, raw := range raws {
		k := Classify(raw)
		if k.Kind == Namespaced {
			grouped[k.Namespace] = append(grouped[k.Namespace], k)
			continue
		}
		flat = append(flat, k)
	}
	return grouped, flat
}

// Clean turns a key into a human readable label: the last "." segment, then
// the last "/" segment, underscores as spaces, each word capitalised.
//
//	Clean("messages.welcome_text") == "Welcome Text"
func Clean(key string) string {
	last := key
	if i := strings.LastIndex(last, "."); i >= 0 {
		last = last[i+1:]
	}
	if i := strings.LastIndex(last, "/"); i >= 0 {
		last = last[i+1:]
	}
	last = strings.ReplaceAll(last, "_", " ")
	return strings.TrimSpace(upperWords(last))
}

// upperWords uppercases the first rune of every whitespace-separated word
// and leaves the rest untouched ("2fa code" -> "2fa Code", "e-mail" -> "E-mail").
func upperWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	start := true
	for _, r := range s {
		if start {
			r = unicode.ToUpper(r)
		}
		start = unicode.IsSpace(r)
		b.WriteRune(r)
	}
	return b.String()
}

var (
	slugStrip    = regexp.MustCompile(`[^_\pL\pN\s]+`)
	slugCollapse = regexp.MustCompile(`[_\s]+`)
)

// SafeKey returns key unchanged unless it contains whitespace, in which case
// it returns an underscore slug ("Please log in" -> "please_log_in").
func SafeKey(key string) string {
	if strings.IndexFunc(key, unicode.IsSpace) < 0 {
		return key
	}
	return Slug(key)
}

// Slug lowercases s, folds accents, drops everything that is not a letter,
// digit or separator and joins the words with '_'.
func Slug(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "@", "_at_")
	s = slugStrip.ReplaceAllString(strings.ToLower(s), "")
	s = slugCollapse.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
