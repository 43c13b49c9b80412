package yamlfile

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/minios-linux/transcan/merge"
)

// Store reads and writes the namespaced stores below a lang directory.
type Store struct {
	Dir string
	Log zerolog.Logger
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{Dir: dir, Log: log}
}

// Path returns the file backing (locale, namespace).
func (s *Store) Path(locale, namespace string) string {
	return filepath.Join(s.Dir, locale, namespace+Ext)
}

// Load returns the store for (locale, namespace). A missing file is an empty
// store; a file that cannot be parsed is logged and treated as empty.
func (s *Store) Load(locale, namespace string) *File {
	path := s.Path(locale, namespace)
	f, err := ParseFile(path)
	switch {
	case err == nil:
		return f
	case errors.Is(err, fs.ErrNotExist):
		s.Log.Debug().Str("file", path).Msg("namespaced store not found, starting empty")
	default:
		s.Log.Warn().Err(err).Str("file", path).Msg("unreadable namespaced store treated as empty")
	}
	return New()
}

// MergeWrite overlays updates onto the current store, sorts its keys and
// atomically rewrites the file.
func (s *Store) MergeWrite(locale, namespace string, updates map[string]string) (merge.Stats, error) {
	f := s.Load(locale, namespace)
	st := merge.Apply(f, updates)
	f.Sort()

	path := s.Path(locale, namespace)
	if err := f.WriteFile(path); err != nil {
		return st, fmt.Errorf("writing namespaced store: %w", err)
	}
	s.Log.Debug().Str("file", path).Int("added", st.Added).Int("updated", st.Updated).Msg("namespaced store written")
	return st, nil
}
