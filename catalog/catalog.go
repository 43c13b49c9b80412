// Package catalog aggregates the translation stores of a lang directory into
// flat, searchable listings and applies single-entry edits to them.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/minios-linux/transcan/jsonfile"
	"github.com/minios-linux/transcan/merge"
	"github.com/minios-linux/transcan/metrics"
	"github.com/minios-linux/transcan/safefile"
	"github.com/minios-linux/transcan/yamlfile"
)

var (
	// ErrFileNotFound is returned when an edit targets a store that does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrInvalidFile is returned for store names outside the lang directory
	// or with an unknown extension.
	ErrInvalidFile = errors.New("invalid store file")
	// ErrInvalidLocale is returned for locale names that are not a single
	// path element.
	ErrInvalidLocale = errors.New("invalid locale")
	// ErrEmptyKey is returned by Update for a blank key.
	ErrEmptyKey = errors.New("key must not be empty")
)

// flatPrefix scopes flat keys so they never collide with namespaced ones.
const flatPrefix = "json:"

var localeName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidLocale reports whether name can be used as a locale, that is as a
// single file name below the lang directory.
func ValidLocale(name string) bool {
	return localeName.MatchString(name)
}

// Entry is one translation as shown in listings.
type Entry struct {
	// File is the owning store, relative to the lang directory
	// ("en.json", "en/messages.yaml").
	File   string `json:"file"`
	Key    string `json:"key"`
	Value  string `json:"value"`
	Locale string `json:"locale"`
}

// Namespaced reports whether the entry lives in a namespaced store.
func (e Entry) Namespaced() bool {
	return !strings.HasSuffix(e.File, jsonfile.Ext)
}

// Catalog reads and edits the stores below Dir.
type Catalog struct {
	Dir  string
	Log  zerolog.Logger
	json *jsonfile.Store
	yaml *yamlfile.Store
}

// New returns a catalog for the lang directory dir.
func New(dir string, log zerolog.Logger) *Catalog {
	return &Catalog{
		Dir:  dir,
		Log:  log,
		json: jsonfile.NewStore(dir, log),
		yaml: yamlfile.NewStore(dir, log),
	}
}

// Locales returns every locale that has a directory or a flat store, sorted.
// A missing lang directory has no locales.
func (c *Catalog) Locales() ([]string, error) {
	dirEntries, err := os.ReadDir(c.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lang directory: %w", err)
	}

	seen := make(map[string]bool)
	var locales []string
	for _, de := range dirEntries {
		name := de.Name()
		switch {
		case de.IsDir():
		case strings.HasSuffix(name, jsonfile.Ext):
			name = strings.TrimSuffix(name, jsonfile.Ext)
		default:
			continue
		}
		if !localeName.MatchString(name) || seen[name] {
			continue
		}
		seen[name] = true
		locales = append(locales, name)
	}
	sort.Strings(locales)
	return locales, nil
}

// LoadLocale returns the entries of the flat store and of every namespaced
// store of locale. Nested mappings are flattened into dotted keys.
// Unreadable stores are logged and skipped.
func (c *Catalog) LoadLocale(locale string) []Entry {
	if !localeName.MatchString(locale) {
		return nil
	}
	byID := make(map[string]Entry)
	var order []string
	add := func(id string, e Entry) {
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = e
	}

	flatFile := locale + jsonfile.Ext
	for _, e := range c.json.Load(locale).Entries() {
		add(flatPrefix+e.Key, Entry{File: flatFile, Key: e.Key, Value: e.Value, Locale: locale})
	}

	files, err := filepath.Glob(filepath.Join(c.Dir, locale, "*"+yamlfile.Ext))
	if err != nil {
		c.Log.Warn().Err(err).Str("locale", locale).Msg("listing namespaced stores")
	}
	sort.Strings(files)
	for _, p := range files {
		ns := strings.TrimSuffix(filepath.Base(p), yamlfile.Ext)
		file := path.Join(locale, ns+yamlfile.Ext)
		for _, e := range c.yaml.Load(locale, ns).Flatten() {
			add(file+":"+e.Path, Entry{File: file, Key: e.Path, Value: e.Value, Locale: locale})
		}
	}

	out := make([]Entry, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// Stamp fingerprints the stores of locale by name, size and modification
// time. Two equal stamps mean LoadLocale would read the same files.
func (c *Catalog) Stamp(locale string) string {
	if !localeName.MatchString(locale) {
		return ""
	}
	files, _ := filepath.Glob(filepath.Join(c.Dir, locale, "*"+yamlfile.Ext))
	sort.Strings(files)
	files = append([]string{filepath.Join(c.Dir, locale+jsonfile.Ext)}, files...)

	var b strings.Builder
	for _, p := range files {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s:%d:%d;", filepath.Base(p), info.Size(), info.ModTime().UnixNano())
	}
	return b.String()
}

// Search keeps the entries whose key, value or file contains text,
// ignoring case. Empty text keeps everything.
func Search(entries []Entry, text string) []Entry {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return entries
	}
	var out []Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Key), text) ||
			strings.Contains(strings.ToLower(e.Value), text) ||
			strings.Contains(strings.ToLower(e.File), text) {
			out = append(out, e)
		}
	}
	return out
}

// Page is one page of a listing.
type Page struct {
	Items       []Entry `json:"items"`
	Total       int     `json:"total"`
	PerPage     int     `json:"per_page"`
	CurrentPage int     `json:"current_page"`
	LastPage    int     `json:"last_page"`
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.CurrentPage > 1 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.CurrentPage < p.LastPage }

// DefaultPerPage is used when Paginate gets a non-positive page size.
const DefaultPerPage = 25

// Paginate sorts entries by key (stable) and returns the 1-based page.
// Pages past the end are empty; the input slice is not modified.
func Paginate(entries []Entry, page, perPage int) Page {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	p := Page{Total: len(sorted), PerPage: perPage, CurrentPage: page}
	p.LastPage = (p.Total + perPage - 1) / perPage
	if p.LastPage < 1 {
		p.LastPage = 1
	}
	start := (page - 1) * perPage
	if start >= len(sorted) {
		p.Items = []Entry{}
		return p
	}
	p.Items = sorted[start:min(start+perPage, len(sorted))]
	return p
}

// resolve validates a store name relative to the lang directory and
// returns its cleaned slash form.
func (c *Catalog) resolve(file string) (string, error) {
	file = strings.TrimSpace(strings.ReplaceAll(file, "\\", "/"))
	clean := path.Clean(file)
	if file == "" || path.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFile, file)
	}

	switch path.Ext(clean) {
	case jsonfile.Ext:
		if strings.Contains(clean, "/") || !localeName.MatchString(strings.TrimSuffix(clean, jsonfile.Ext)) {
			return "", fmt.Errorf("%w: %q", ErrInvalidFile, file)
		}
	case yamlfile.Ext:
		dir, base := path.Split(clean)
		if strings.Count(clean, "/") != 1 || !localeName.MatchString(strings.TrimSuffix(dir, "/")) || base == yamlfile.Ext {
			return "", fmt.Errorf("%w: %q", ErrInvalidFile, file)
		}
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFile, file)
	}
	return clean, nil
}

// document is a store file that entries can be removed from.
type document interface {
	Delete(key string) bool
	WriteFile(path string) error
}

// Delete removes key from the store named file ("en.json" or
// "en/messages.yaml"). The store type is inferred from the extension.
// Removing an absent key is not an error and leaves the file untouched.
func (c *Catalog) Delete(file, key string) error {
	rel, err := c.resolve(file)
	if err != nil {
		return err
	}
	full := filepath.Join(c.Dir, filepath.FromSlash(rel))
	if !safefile.Exists(full) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, rel)
	}

	var doc document
	if strings.HasSuffix(rel, jsonfile.Ext) {
		f, err := jsonfile.ParseFile(full)
		if err != nil {
			return err
		}
		doc = f
	} else {
		f, err := yamlfile.ParseFile(full)
		if err != nil {
			return err
		}
		f.Sort()
		doc = f
	}

	removed := doc.Delete(key)
	if removed {
		if err := doc.WriteFile(full); err != nil {
			return err
		}
	}
	c.Log.Info().Str("file", rel).Str("key", key).Bool("removed", removed).Msg("entry deleted")
	return nil
}

// Update stores value under key. Without file the entry goes to the flat
// store of locale, which is created if needed. With file naming a
// namespaced store of locale, key is a dotted path into that store.
func (c *Catalog) Update(locale, key, value, file string) error {
	if !localeName.MatchString(locale) {
		return fmt.Errorf("%w: %q", ErrInvalidLocale, locale)
	}
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	rel := locale + jsonfile.Ext
	if strings.TrimSpace(file) != "" {
		var err error
		if rel, err = c.resolve(file); err != nil {
			return err
		}
	}

	if strings.HasSuffix(rel, jsonfile.Ext) {
		if rel != locale+jsonfile.Ext {
			return fmt.Errorf("%w: %s does not belong to %s", ErrInvalidFile, rel, locale)
		}
		st, err := c.json.MergeWrite(locale, map[string]string{key: value})
		if err != nil {
			return err
		}
		c.recordUpdate(locale, "json", rel, key, st)
		return nil
	}

	dir, base := path.Split(rel)
	if strings.TrimSuffix(dir, "/") != locale {
		return fmt.Errorf("%w: %s does not belong to %s", ErrInvalidFile, rel, locale)
	}
	ns := strings.TrimSuffix(base, yamlfile.Ext)
	full := c.yaml.Path(locale, ns)
	f := c.yaml.Load(locale, ns)
	old, had := f.Get(key)
	f.SetPath(key, value)
	f.Sort()
	if err := f.WriteFile(full); err != nil {
		return fmt.Errorf("writing namespaced store: %w", err)
	}

	var st merge.Stats
	switch {
	case !had:
		st.Added = 1
	case old != value:
		st.Updated = 1
	default:
		st.Unchanged = 1
	}
	c.recordUpdate(locale, "namespaced", rel, key, st)
	return nil
}

func (c *Catalog) recordUpdate(locale, kind, file, key string, st merge.Stats) {
	metrics.KeysWritten.WithLabelValues(locale, kind).Add(float64(st.Changed()))
	c.Log.Info().Str("file", file).Str("key", key).Msg("entry updated")
}

// Counts summarizes a listing.
type Counts struct {
	Entries int
	// Files maps each store to its number of entries.
	Files map[string]int
}

// Count tallies entries per store.
func Count(entries []Entry) Counts {
	c := Counts{Entries: len(entries), Files: make(map[string]int)}
	for _, e := range entries {
		c.Files[e.File]++
	}
	return c
}
