// Package langmeta provides locale display metadata (native names, flags,
// writing direction and primary script) used by the catalog UI and by the
// script heuristics of the translation policy.
package langmeta

import (
	"strings"

	"golang.org/x/text/language"
)

// Meta describes language display metadata.
type Meta struct {
	Name string
	Flag string
	// Script is the name of the primary unicode.Scripts table ("Latin", "Arabic", ...).
	Script string
	RTL    bool
}

// Dir returns the HTML dir attribute value for the locale.
func (m Meta) Dir() string {
	if m.RTL {
		return "rtl"
	}
	return "ltr"
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"am":    {Name: "አማርኛ", Flag: "🇪🇹", Script: "Ethiopic"},
	"ar":    {Name: "العربية", Flag: "🇸🇦", Script: "Arabic", RTL: true},
	"ar-EG": {Name: "العربية (مصر)", Flag: "🇪🇬", Script: "Arabic", RTL: true},
	"bg":    {Name: "Български", Flag: "🇧🇬", Script: "Cyrillic"},
	"bn":    {Name: "বাংলা", Flag: "🇧🇩", Script: "Bengali"},
	"cs":    {Name: "Čeština", Flag: "🇨🇿", Script: "Latin"},
	"da":    {Name: "Dansk", Flag: "🇩🇰", Script: "Latin"},
	"de":    {Name: "Deutsch", Flag: "🇩🇪", Script: "Latin"},
	"el":    {Name: "Ελληνικά", Flag: "🇬🇷", Script: "Greek"},
	"en":    {Name: "English", Flag: "🇺🇸", Script: "Latin"},
	"en-GB": {Name: "English (UK)", Flag: "🇬🇧", Script: "Latin"},
	"es":    {Name: "Español", Flag: "🇪🇸", Script: "Latin"},
	"fa":    {Name: "فارسی", Flag: "🇮🇷", Script: "Arabic", RTL: true},
	"fi":    {Name: "Suomi", Flag: "🇫🇮", Script: "Latin"},
	"fr":    {Name: "Français", Flag: "🇫🇷", Script: "Latin"},
	"he":    {Name: "עברית", Flag: "🇮🇱", Script: "Hebrew", RTL: true},
	"hi":    {Name: "हिन्दी", Flag: "🇮🇳", Script: "Devanagari"},
	"hu":    {Name: "Magyar", Flag: "🇭🇺", Script: "Latin"},
	"hy":    {Name: "Հայերեն", Flag: "🇦🇲", Script: "Armenian"},
	"id":    {Name: "Bahasa Indonesia", Flag: "🇮🇩", Script: "Latin"},
	"it":    {Name: "Italiano", Flag: "🇮🇹", Script: "Latin"},
	"ja":    {Name: "日本語", Flag: "🇯🇵", Script: "Han"},
	"ka":    {Name: "ქართული", Flag: "🇬🇪", Script: "Georgian"},
	"ko":    {Name: "한국어", Flag: "🇰🇷", Script: "Hangul"},
	"ms":    {Name: "Bahasa Melayu", Flag: "🇲🇾", Script: "Latin"},
	"nl":    {Name: "Nederlands", Flag: "🇳🇱", Script: "Latin"},
	"no":    {Name: "Norsk", Flag: "🇳🇴", Script: "Latin"},
	"pl":    {Name: "Polski", Flag: "🇵🇱", Script: "Latin"},
	"ps":    {Name: "پښتو", Flag: "🇦🇫", Script: "Arabic", RTL: true},
	"pt":    {Name: "Português", Flag: "🇵🇹", Script: "Latin"},
	"pt-BR": {Name: "Português (Brasil)", Flag: "🇧🇷", Script: "Latin"},
	"ro":    {Name: "Română", Flag: "🇷🇴", Script: "Latin"},
	"ru":    {Name: "Русский", Flag: "🇷🇺", Script: "Cyrillic"},
	"sv":    {Name: "Svenska", Flag: "🇸🇪", Script: "Latin"},
	"sw":    {Name: "Kiswahili", Flag: "🇹🇿", Script: "Latin"},
	"ta":    {Name: "தமிழ்", Flag: "🇮🇳", Script: "Tamil"},
	"th":    {Name: "ไทย", Flag: "🇹🇭", Script: "Thai"},
	"tr":    {Name: "Türkçe", Flag: "🇹🇷", Script: "Latin"},
	"uk":    {Name: "Українська", Flag: "🇺🇦", Script: "Cyrillic"},
	"ur":    {Name: "اردو", Flag: "🇵🇰", Script: "Arabic", RTL: true},
	"vi":    {Name: "Tiếng Việt", Flag: "🇻🇳", Script: "Latin"},
	"zh":    {Name: "中文", Flag: "🇨🇳", Script: "Han"},
	"zh-TW": {Name: "繁體中文", Flag: "🇹🇼", Script: "Han"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Base returns the base language subtag of a locale ("ar_EG" -> "ar").
// Unparseable locales are returned lowercased up to the first separator.
func Base(lang string) string {
	normalized := canonicalize(lang)
	if tag, err := language.Parse(normalized); err == nil {
		if base, _ := tag.Base(); base.String() != "und" {
			return base.String()
		}
	}
	base, _, _ := strings.Cut(normalized, "-")
	return base
}

// SameLanguage reports whether two locales share a base language.
func SameLanguage(a, b string) bool {
	return a != "" && b != "" && Base(a) == Base(b)
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if m, ok := Registry[Base(normalized)]; ok {
		return m
	}
	return Meta{Name: lang, Flag: ""}
}

// Known reports whether the registry has metadata for the locale or its base.
func Known(lang string) bool {
	_, ok := Registry[canonicalize(lang)]
	if !ok {
		_, ok = Registry[Base(lang)]
	}
	return ok
}
