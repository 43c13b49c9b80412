package merge

import (
	"reflect"
	"testing"
)

type mapStore map[string]any

func (m mapStore) Lookup(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapStore) Set(key, value string) {
	m[key] = value
}

func TestApplyPreservesUntouchedKeys(t *testing.T) {
	dst := mapStore{"b": "Y"}

	st := Apply(dst, map[string]string{"a": "X"})

	want := mapStore{"a": "X", "b": "Y"}
	if !reflect.DeepEqual(dst, want) {
		t.Fatalf("store = %v, want %v", dst, want)
	}
	if st != (Stats{Added: 1}) {
		t.Fatalf("stats = %+v, want 1 added", st)
	}
}

func TestApplyCountsOutcomes(t *testing.T) {
	dst := mapStore{
		"same":    "Save",
		"changed": "Old",
		"nested":  map[string]any{"x": "y"},
		"null":    nil,
	}

	st := Apply(dst, map[string]string{
		"same":    "Save",
		"changed": "New",
		"nested":  "Flat",
		"null":    "Value",
		"fresh":   "Fresh",
	})

	if st.Added != 1 || st.Updated != 3 || st.Unchanged != 1 {
		t.Fatalf("stats = %+v, want added=1 updated=3 unchanged=1", st)
	}
	if st.Changed() != 4 {
		t.Fatalf("Changed() = %d, want 4", st.Changed())
	}
	if dst["nested"] != "Flat" || dst["null"] != "Value" || dst["changed"] != "New" {
		t.Fatalf("store not updated: %v", dst)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	dst := mapStore{}
	staged := map[string]string{"a": "A", "b": "B"}

	Apply(dst, staged)
	st := Apply(dst, staged)

	if st.Changed() != 0 || st.Unchanged != 2 {
		t.Fatalf("second apply stats = %+v", st)
	}
}

func TestStatsAdd(t *testing.T) {
	total := Stats{Added: 1}
	total.Add(Stats{Added: 2, Updated: 1, Unchanged: 4})
	if total != (Stats{Added: 3, Updated: 1, Unchanged: 4}) {
		t.Fatalf("total = %+v", total)
	}
}

func TestStale(t *testing.T) {
	got := Stale([]string{"z", "a", "kept"}, map[string]bool{"kept": true})
	if !reflect.DeepEqual(got, []string{"a", "z"}) {
		t.Fatalf("Stale() = %v", got)
	}
}
