package safefile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lang", "en", "messages.yaml")

	if err := WriteFile(path, []byte("save: Save\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(data) != "save: Save\n" {
		t.Fatalf("content = %q", data)
	}
	if !Exists(path) {
		t.Fatal("Exists() = false after write")
	}
}

func TestWriteFileReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "en.json")

	for _, content := range []string{"{}", "{\n    \"Cancel\": \"Cancel\"\n}"} {
		if err := WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "en.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("directory entries = %v, want [en.json]", names)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{\n    \"Cancel\": \"Cancel\"\n}" {
		t.Fatalf("content = %q", data)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(filepath.Join(dir, "missing.json")) {
		t.Fatal("missing file reported as existing")
	}
	if Exists(dir) {
		t.Fatal("directory reported as regular file")
	}
}
