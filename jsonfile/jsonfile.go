// Package jsonfile implements the flat translation store: one JSON object
// per locale mapping keys directly to text, stored as <dir>/<locale>.json.
//
// The file format is:
//
//	{
//	    "Cancel": "Cancel",
//	    "please_log_in": "Please log in"
//	}
//
// Files are written pretty-printed with 4-space indentation, sorted keys and
// Unicode left unescaped. Non-string values are passed through unchanged.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/minios-linux/transcan/safefile"
)

// Ext is the extension of flat store files.
const Ext = ".json"

// Entry is a single key of the flat store rendered as text.
type Entry struct {
	Key   string
	Value string
}

// File represents a parsed flat store.
type File struct {
	values map[string]any
}

// New returns an empty flat store document.
func New() *File {
	return &File{values: make(map[string]any)}
}

// ParseFile reads and parses a flat JSON store.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse parses a JSON object. Numbers are kept in their source form.
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parsing JSON: trailing data after object")
	}
	if values == nil {
		values = make(map[string]any)
	}
	return &File{values: values}, nil
}

// Len returns the number of keys.
func (f *File) Len() int {
	return len(f.values)
}

// Keys returns the keys in sorted order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the decoded value stored under key.
func (f *File) Lookup(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Set stores value under key.
func (f *File) Set(key, value string) {
	f.values[key] = value
}

// Delete removes key and reports whether it was present.
func (f *File) Delete(key string) bool {
	if _, ok := f.values[key]; !ok {
		return false
	}
	delete(f.values, key)
	return true
}

// Entries returns every key with its value as text, sorted by key.
func (f *File) Entries() []Entry {
	out := make([]Entry, 0, len(f.values))
	for _, k := range f.Keys() {
		out = append(out, Entry{Key: k, Value: Text(f.values[k])})
	}
	return out
}

// Text renders a stored value for display: strings verbatim, null as empty
// text, anything else as compact JSON.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Marshal produces the pretty-printed JSON document with sorted keys.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(f.values); err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile serialises the file and atomically replaces path with it.
func (f *File) WriteFile(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	return safefile.WriteFile(path, data, 0o644)
}
