package jsonfile

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/minios-linux/transcan/merge"
	"github.com/minios-linux/transcan/safefile"
)

// Store reads and writes the per-locale flat stores of a lang directory.
type Store struct {
	Dir string
	Log zerolog.Logger
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{Dir: dir, Log: log}
}

// Path returns the file backing locale.
func (s *Store) Path(locale string) string {
	return filepath.Join(s.Dir, locale+Ext)
}

// Ensure creates <locale>.json as an empty object if it does not exist yet.
func (s *Store) Ensure(locale string) error {
	path := s.Path(locale)
	if safefile.Exists(path) {
		return nil
	}
	if err := New().WriteFile(path); err != nil {
		return fmt.Errorf("initializing flat store: %w", err)
	}
	return nil
}

// Load returns the flat store of locale. A missing file is an empty store;
// a file that cannot be parsed is logged and treated as empty.
func (s *Store) Load(locale string) *File {
	path := s.Path(locale)
	f, err := ParseFile(path)
	switch {
	case err == nil:
		return f
	case errors.Is(err, fs.ErrNotExist):
		s.Log.Debug().Str("file", path).Msg("flat store not found, starting empty")
	default:
		s.Log.Warn().Err(err).Str("file", path).Msg("unreadable flat store treated as empty")
	}
	return New()
}

// MergeWrite overlays updates onto the current store and atomically
// rewrites the file with sorted keys.
func (s *Store) MergeWrite(locale string, updates map[string]string) (merge.Stats, error) {
	if err := s.Ensure(locale); err != nil {
		return merge.Stats{}, err
	}
	f := s.Load(locale)
	st := merge.Apply(f, updates)

	path := s.Path(locale)
	if err := f.WriteFile(path); err != nil {
		return st, fmt.Errorf("writing flat store: %w", err)
	}
	s.Log.Debug().Str("file", path).Int("added", st.Added).Int("updated", st.Updated).Msg("flat store written")
	return st, nil
}
