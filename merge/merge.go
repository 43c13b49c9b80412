// Package merge implements the merge-update contract shared by the
// translation stores: staged values are overlaid onto the existing document,
// untouched keys are preserved.
package merge

import "sort"

// Store is a key/value document that staged values can be merged into.
type Store interface {
	// Lookup returns the decoded value stored under key.
	Lookup(key string) (any, bool)
	// Set stores value under key, adding the key if needed.
	Set(key, value string)
}

// Stats counts the outcome of one merge.
type Stats struct {
	Added     int
	Updated   int
	Unchanged int
}

// Changed returns the number of keys whose stored value was created or replaced.
func (s Stats) Changed() int {
	return s.Added + s.Updated
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Added += o.Added
	s.Updated += o.Updated
	s.Unchanged += o.Unchanged
}

// Apply overlays staged onto dst in key order.
// - Keys missing from dst are added.
// - Keys whose stored value differs (or is not a string) are replaced.
// - Keys already holding the staged string are left alone.
func Apply(dst Store, staged map[string]string) Stats {
	var st Stats
	for _, key := range SortedKeys(staged) {
		value := staged[key]
		switch Compare(dst, key, value) {
		case Added:
			st.Added++
		case Updated:
			st.Updated++
		default:
			st.Unchanged++
			continue
		}
		dst.Set(key, value)
	}
	return st
}

// Outcome classifies a staged value against a store.
type Outcome int

const (
	Unchanged Outcome = iota
	Added
	Updated
)

// Compare tells what writing value under key would do to dst.
func Compare(dst Store, key, value string) Outcome {
	existing, ok := dst.Lookup(key)
	if !ok {
		return Added
	}
	if s, isStr := existing.(string); isStr && s == value {
		return Unchanged
	}
	return Updated
}

// Stale returns the keys of stored that are not referenced, sorted.
func Stale(stored []string, referenced map[string]bool) []string {
	var out []string
	for _, k := range stored {
		if !referenced[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// SortedKeys returns the keys of m in lexicographic order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
