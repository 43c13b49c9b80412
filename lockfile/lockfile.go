// Package lockfile implements transcan.lock, a translation memory that
// remembers successful machine translations per locale, keyed by the MD5
// checksum of the source text. Later scans reuse a remembered translation
// instead of calling the translation service again.
//
// The lock file is stored alongside .transcan.yaml as transcan.lock.
package lockfile

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/transcan/safefile"
)

// LockFileName is the default lock file name.
const LockFileName = "transcan.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Record is one remembered translation.
type Record struct {
	Source string `yaml:"source"`
	Text   string `yaml:"text"`
}

// LockFile represents the transcan.lock file structure.
type LockFile struct {
	Version      int                          `yaml:"version"`
	Translations map[string]map[string]Record `yaml:"translations"` // locale -> md5(source) -> record

	mu    sync.Mutex
	path  string
	dirty bool
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// New returns an empty lock file that will be saved to dir.
func New(dir string) *LockFile {
	return &LockFile{
		Version:      Version,
		Translations: make(map[string]map[string]Record),
		path:         filepath.Join(dir, LockFileName),
	}
}

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	lf := New(dir)

	data, err := os.ReadFile(lf.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", lf.path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lf.path, err)
	}
	if lf.Translations == nil {
		lf.Translations = make(map[string]map[string]Record)
	}
	return lf, nil
}

// Save writes the lock file to disk if anything was recorded since it was
// loaded.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if !lf.dirty {
		return nil
	}
	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := safefile.WriteFile(lf.path, data, 0o644); err != nil {
		return err
	}
	lf.dirty = false
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Memory operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Lookup returns the remembered translation of source into locale.
func (lf *LockFile) Lookup(locale, source string) (string, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	rec, ok := lf.Translations[locale][Hash(source)]
	if !ok || rec.Source != source {
		return "", false
	}
	return rec.Text, true
}

// Remember records a successful translation of source into locale.
func (lf *LockFile) Remember(locale, source, text string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Translations[locale] == nil {
		lf.Translations[locale] = make(map[string]Record)
	}
	h := Hash(source)
	if rec, ok := lf.Translations[locale][h]; ok && rec.Source == source && rec.Text == text {
		return
	}
	lf.Translations[locale][h] = Record{Source: source, Text: text}
	lf.dirty = true
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of locales and total remembered translations.
func (lf *LockFile) Stats() (locales, entries int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	locales = len(lf.Translations)
	for _, m := range lf.Translations {
		entries += len(m)
	}
	return
}

// Locales returns the sorted list of locales with remembered translations.
func (lf *LockFile) Locales() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	locales := make([]string, 0, len(lf.Translations))
	for l := range lf.Translations {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	locales, entries := lf.Stats()
	if locales == 0 {
		return "empty"
	}

	var parts []string
	for _, l := range lf.Locales() {
		lf.mu.Lock()
		n := len(lf.Translations[l])
		lf.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d", l, n))
	}
	return fmt.Sprintf("%d locales, %d translations (%s)", locales, entries, strings.Join(parts, ", "))
}
