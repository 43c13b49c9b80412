package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// langDir builds a small lang directory:
//
//	en.json, en/messages.yaml, en/auth.yaml, ar.json, ar/messages.yaml, fr/
func langDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "en.json"), `{"Cancel": "Cancel", "title": "Flat title"}`)
	writeFile(t, filepath.Join(dir, "en", "messages.yaml"), "home_title: Home\nsave: Save\nerrors:\n  required: This field is required\n")
	writeFile(t, filepath.Join(dir, "en", "auth.yaml"), "title: Sign in\n")
	writeFile(t, filepath.Join(dir, "ar.json"), `{"Cancel": "إلغاء"}`)
	writeFile(t, filepath.Join(dir, "ar", "messages.yaml"), "save: حفظ\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a store")
	if err := os.MkdirAll(filepath.Join(dir, "fr"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLocales(t *testing.T) {
	c := New(langDir(t), zerolog.Nop())
	got, err := c.Locales()
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"ar", "en", "fr"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Locales() = %v, want %v", got, want)
	}

	missing := New(filepath.Join(t.TempDir(), "nope"), zerolog.Nop())
	if got, err := missing.Locales(); err != nil || len(got) != 0 {
		t.Fatalf("missing dir: %v, %v", got, err)
	}
}

func TestLoadLocale(t *testing.T) {
	c := New(langDir(t), zerolog.Nop())
	entries := c.LoadLocale("en")

	want := []Entry{
		{File: "en.json", Key: "Cancel", Value: "Cancel", Locale: "en"},
		{File: "en.json", Key: "title", Value: "Flat title", Locale: "en"},
		{File: "en/auth.yaml", Key: "title", Value: "Sign in", Locale: "en"},
		{File: "en/messages.yaml", Key: "home_title", Value: "Home", Locale: "en"},
		{File: "en/messages.yaml", Key: "save", Value: "Save", Locale: "en"},
		{File: "en/messages.yaml", Key: "errors.required", Value: "This field is required", Locale: "en"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("LoadLocale(en) =\n%+v\nwant\n%+v", entries, want)
	}
	if !entries[2].Namespaced() || entries[0].Namespaced() {
		t.Fatal("Namespaced() mismatch")
	}

	if got := c.LoadLocale("fr"); len(got) != 0 {
		t.Fatalf("empty locale has entries: %v", got)
	}
	if got := c.LoadLocale("../en"); got != nil {
		t.Fatalf("traversal locale loaded: %v", got)
	}
}

func TestLoadLocaleSkipsCorruptStores(t *testing.T) {
	dir := langDir(t)
	writeFile(t, filepath.Join(dir, "en", "broken.yaml"), "- just\n- a list\n")
	writeFile(t, filepath.Join(dir, "en.json"), "{not json")

	entries := New(dir, zerolog.Nop()).LoadLocale("en")
	counts := Count(entries)
	if counts.Files["en.json"] != 0 || counts.Files["en/broken.yaml"] != 0 || counts.Files["en/messages.yaml"] != 3 {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestSearch(t *testing.T) {
	entries := New(langDir(t), zerolog.Nop()).LoadLocale("en")

	tests := []struct {
		text string
		want int
	}{
		{text: "", want: 6},
		{text: "TITLE", want: 3},
		{text: "sign", want: 1},
		{text: "auth.yaml", want: 1},
		{text: "required", want: 1},
		{text: "nothing-matches", want: 0},
	}
	for _, tc := range tests {
		if got := Search(entries, tc.text); len(got) != tc.want {
			t.Errorf("Search(%q) = %d entries, want %d", tc.text, len(got), tc.want)
		}
	}
}

func TestPaginate(t *testing.T) {
	var entries []Entry
	for i := 30; i > 0; i-- {
		entries = append(entries, Entry{Key: fmt.Sprintf("key_%02d", i)})
	}

	p := Paginate(entries, 1, 25)
	if p.Total != 30 || p.LastPage != 2 || len(p.Items) != 25 || p.Items[0].Key != "key_01" {
		t.Fatalf("page 1 = %+v", p)
	}
	if p.HasPrev() || !p.HasNext() {
		t.Fatal("page 1 navigation")
	}

	p = Paginate(entries, 2, 25)
	if len(p.Items) != 5 || p.Items[4].Key != "key_30" || p.HasNext() {
		t.Fatalf("page 2 = %+v", p)
	}

	p = Paginate(entries, 0, 0)
	if p.CurrentPage != 1 || p.PerPage != DefaultPerPage {
		t.Fatalf("defaults = %+v", p)
	}

	p = Paginate(entries, 9, 25)
	if len(p.Items) != 0 || p.Items == nil {
		t.Fatalf("page past the end = %+v", p)
	}

	if entries[0].Key != "key_30" {
		t.Fatal("Paginate reordered its input")
	}

	p = Paginate(nil, 1, 25)
	if p.LastPage != 1 || p.Total != 0 {
		t.Fatalf("empty = %+v", p)
	}
}

func TestPaginateIsStable(t *testing.T) {
	entries := []Entry{
		{File: "en.json", Key: "title"},
		{File: "en/auth.yaml", Key: "title"},
		{File: "en/a.yaml", Key: "a"},
	}
	p := Paginate(entries, 1, 10)
	if p.Items[1].File != "en.json" || p.Items[2].File != "en/auth.yaml" {
		t.Fatalf("equal keys reordered: %+v", p.Items)
	}
}

func TestDeleteNamespaced(t *testing.T) {
	dir := langDir(t)
	c := New(dir, zerolog.Nop())

	if err := c.Delete("en/messages.yaml", "home_title"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got := readFile(t, filepath.Join(dir, "en", "messages.yaml"))
	want := "errors:\n  required: This field is required\nsave: Save\n"
	if got != want {
		t.Fatalf("messages.yaml = %q, want %q", got, want)
	}

	if err := c.Delete("en/messages.yaml", "errors.required"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "en", "messages.yaml")); got != "errors: {}\nsave: Save\n" {
		t.Fatalf("nested delete = %q", got)
	}
}

func TestDeleteFlat(t *testing.T) {
	dir := langDir(t)
	c := New(dir, zerolog.Nop())

	if err := c.Delete("en.json", "Cancel"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "en.json")); got != "{\n    \"title\": \"Flat title\"\n}\n" {
		t.Fatalf("en.json = %q", got)
	}

	before := readFile(t, filepath.Join(dir, "ar.json"))
	if err := c.Delete("ar.json", "missing"); err != nil {
		t.Fatal(err)
	}
	if readFile(t, filepath.Join(dir, "ar.json")) != before {
		t.Fatal("deleting an absent key rewrote the file")
	}
}

func TestDeleteErrors(t *testing.T) {
	c := New(langDir(t), zerolog.Nop())

	tests := []struct {
		file string
		want error
	}{
		{file: "de.json", want: ErrFileNotFound},
		{file: "en/missing.yaml", want: ErrFileNotFound},
		{file: "../secrets.json", want: ErrInvalidFile},
		{file: "en/../../x.yaml", want: ErrInvalidFile},
		{file: "/etc/passwd.json", want: ErrInvalidFile},
		{file: "en/messages.php", want: ErrInvalidFile},
		{file: "en/sub/deep.yaml", want: ErrInvalidFile},
		{file: "", want: ErrInvalidFile},
	}
	for _, tc := range tests {
		if err := c.Delete(tc.file, "key"); !errors.Is(err, tc.want) {
			t.Errorf("Delete(%q) = %v, want %v", tc.file, err, tc.want)
		}
	}
}

func TestUpdateFlat(t *testing.T) {
	dir := langDir(t)
	c := New(dir, zerolog.Nop())

	if err := c.Update("ar", "Save", "حفظ", ""); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "ar.json")); got != "{\n    \"Cancel\": \"إلغاء\",\n    \"Save\": \"حفظ\"\n}\n" {
		t.Fatalf("ar.json = %q", got)
	}

	// A locale without a flat store gets one.
	if err := c.Update("de", "Cancel", "Abbrechen", ""); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "de.json")); got != "{\n    \"Cancel\": \"Abbrechen\"\n}\n" {
		t.Fatalf("de.json = %q", got)
	}
}

func TestUpdateNamespaced(t *testing.T) {
	dir := langDir(t)
	c := New(dir, zerolog.Nop())

	if err := c.Update("en", "errors.required", "Required", "en/messages.yaml"); err != nil {
		t.Fatal(err)
	}
	if err := c.Update("en", "back", "Back", "en/messages.yaml"); err != nil {
		t.Fatal(err)
	}
	got := readFile(t, filepath.Join(dir, "en", "messages.yaml"))
	want := "back: Back\nerrors:\n  required: Required\nhome_title: Home\nsave: Save\n"
	if got != want {
		t.Fatalf("messages.yaml = %q, want %q", got, want)
	}

	// New namespaced stores are created on first update.
	if err := c.Update("fr", "save", "Enregistrer", "fr/messages.yaml"); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, filepath.Join(dir, "fr", "messages.yaml")); got != "save: Enregistrer\n" {
		t.Fatalf("fr/messages.yaml = %q", got)
	}
}

func TestUpdateErrors(t *testing.T) {
	c := New(langDir(t), zerolog.Nop())

	if err := c.Update("../en", "k", "v", ""); !errors.Is(err, ErrInvalidLocale) {
		t.Errorf("traversal locale: %v", err)
	}
	if err := c.Update("en", "k", "v", "../../etc/x.yaml"); !errors.Is(err, ErrInvalidFile) {
		t.Errorf("traversal file: %v", err)
	}
	if err := c.Update("en", "k", "v", "ar/messages.yaml"); !errors.Is(err, ErrInvalidFile) {
		t.Errorf("foreign locale file: %v", err)
	}
	if err := c.Update("en", "k", "v", "ar.json"); !errors.Is(err, ErrInvalidFile) {
		t.Errorf("foreign flat store: %v", err)
	}
	if err := c.Update("en", " ", "v", ""); err == nil {
		t.Error("empty key accepted")
	}
}

func TestStamp(t *testing.T) {
	dir := langDir(t)
	c := New(dir, zerolog.Nop())

	before := c.Stamp("en")
	if before == "" || before != c.Stamp("en") {
		t.Fatalf("Stamp is not stable: %q", before)
	}

	writeFile(t, filepath.Join(dir, "en", "extra.yaml"), "x: y\n")
	added := c.Stamp("en")
	if added == before {
		t.Fatal("new namespaced store did not change the stamp")
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "en.json"), later, later); err != nil {
		t.Fatal(err)
	}
	if c.Stamp("en") == added {
		t.Fatal("touching the flat store did not change the stamp")
	}

	if c.Stamp("de") != "" || c.Stamp("../en") != "" {
		t.Error("missing or invalid locales should have an empty stamp")
	}
}
