// Package yamlfile implements the namespaced translation store: one YAML
// mapping per locale and namespace, stored as <dir>/<locale>/<namespace>.yaml.
//
// The expected file format is a YAML map with string values:
//
//	save: Save
//	welcome_text: Welcome Text
//	errors:
//	  required: This field is required
//
// Nested maps are legal and are flattened into dotted keys when listed.
// Writes keep the source node tree (comments, nested content, non-string
// leaves) and only touch the top-level pairs that changed.
package yamlfile

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/transcan/safefile"
)

// Ext is the extension of namespaced store files.
const Ext = ".yaml"

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// Entry represents a single leaf value.
type Entry struct {
	// Path is the dot-joined key path (e.g. "errors.required").
	Path string
	// Value is the scalar text of the leaf.
	Value string
}

// File represents a parsed namespaced store.
type File struct {
	// doc is the document node, used for round-trip writing.
	doc *yaml.Node
	// root is the top-level mapping node.
	root *yaml.Node
}

// New returns an empty store document.
func New() *File {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	return &File{
		doc:  &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}},
		root: root,
	}
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a YAML store file.
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

// Parse parses YAML data into a File.
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	// Comment-only documents decode to an empty DocumentNode.
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return New(), nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return New(), nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("YAML root must be a mapping, got kind %d", root.Kind)
	}
	return &File{doc: &doc, root: root}, nil
}

// ---------------------------------------------------------------------------
// Querying
// ---------------------------------------------------------------------------

// Len returns the number of top-level keys.
func (f *File) Len() int {
	return len(f.root.Content) / 2
}

// Keys returns the top-level keys in document order.
func (f *File) Keys() []string {
	keys := make([]string, 0, f.Len())
	for i := 0; i+1 < len(f.root.Content); i += 2 {
		keys = append(keys, f.root.Content[i].Value)
	}
	return keys
}

// Lookup returns the decoded top-level value for key. A YAML null decodes
// to nil; nested content decodes to maps and slices.
func (f *File) Lookup(key string) (any, bool) {
	_, val := findPair(f.root, key)
	if val == nil {
		return nil, false
	}
	var v any
	if err := val.Decode(&v); err != nil {
		return val.Value, true
	}
	return v, true
}

// Get returns the leaf at a dotted path as text.
func (f *File) Get(path string) (string, bool) {
	for _, e := range f.Flatten() {
		if e.Path == path {
			return e.Value, true
		}
	}
	return "", false
}

// Flatten walks the document and returns every leaf with its dotted path,
// in document order. Sequence items are addressed by index and empty
// collections are reported as empty leaves.
func (f *File) Flatten() []Entry {
	var out []Entry
	collectEntries(f.root, "", &out)
	return out
}

func collectEntries(node *yaml.Node, prefix string, out *[]Entry) {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	join := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + "." + key
	}

	switch node.Kind {
	case yaml.MappingNode:
		if len(node.Content) == 0 && prefix != "" {
			*out = append(*out, Entry{Path: prefix})
			return
		}
		for i := 0; i+1 < len(node.Content); i += 2 {
			collectEntries(node.Content[i+1], join(node.Content[i].Value), out)
		}
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			*out = append(*out, Entry{Path: prefix})
			return
		}
		for i, item := range node.Content {
			collectEntries(item, join(strconv.Itoa(i)), out)
		}
	case yaml.ScalarNode:
		value := node.Value
		if node.Tag == "!!null" {
			value = ""
		}
		*out = append(*out, Entry{Path: prefix, Value: value})
	}
}

// ---------------------------------------------------------------------------
// Editing
// ---------------------------------------------------------------------------

// Set stores value under the top-level key, replacing any previous value
// (including nested content) and keeping the comments attached to it.
func (f *File) Set(key, value string) {
	valNode := &yaml.Node{}
	if err := valNode.Encode(value); err != nil {
		valNode = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value, Style: yaml.DoubleQuotedStyle}
	}

	i, old := findPair(f.root, key)
	if old != nil {
		valNode.HeadComment = old.HeadComment
		valNode.LineComment = old.LineComment
		valNode.FootComment = old.FootComment
		f.root.Content[i+1] = valNode
		return
	}

	keyNode := &yaml.Node{}
	if err := keyNode.Encode(key); err != nil {
		keyNode = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	}
	f.root.Content = append(f.root.Content, keyNode, valNode)
}

// Delete removes key. An exact top-level key wins; otherwise key is read as
// a dotted path into nested mappings. It reports whether anything was removed.
func (f *File) Delete(key string) bool {
	if removePair(f.root, key) {
		return true
	}

	parts := strings.Split(key, ".")
	node := f.root
	for _, part := range parts[:len(parts)-1] {
		_, next := findPair(node, part)
		if next != nil && next.Kind == yaml.AliasNode {
			next = next.Alias
		}
		if next == nil || next.Kind != yaml.MappingNode {
			return false
		}
		node = next
	}
	return removePair(node, parts[len(parts)-1])
}

// Sort orders the top-level pairs by key.
func (f *File) Sort() {
	n := f.Len()
	pairs := make([][2]*yaml.Node, n)
	for i := 0; i < n; i++ {
		pairs[i] = [2]*yaml.Node{f.root.Content[2*i], f.root.Content[2*i+1]}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a][0].Value < pairs[b][0].Value
	})
	for i, p := range pairs {
		f.root.Content[2*i] = p[0]
		f.root.Content[2*i+1] = p[1]
	}
}

func findPair(node *yaml.Node, key string) (int, *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return i, node.Content[i+1]
		}
	}
	return -1, nil
}

func removePair(node *yaml.Node, key string) bool {
	i, val := findPair(node, key)
	if val == nil {
		return false
	}
	node.Content = append(node.Content[:i], node.Content[i+2:]...)
	return true
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Marshal serialises the document with two-space indentation.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f.doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile serialises the file and atomically replaces path with it.
func (f *File) WriteFile(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return safefile.WriteFile(path, data, 0o644)
}

// SetPath stores value at a dotted path. An exact top-level key wins, then
// an existing chain of nested mappings; otherwise value becomes a new
// top-level key named path.
func (f *File) SetPath(path, value string) {
	if _, val := findPair(f.root, path); val != nil || !strings.Contains(path, ".") {
		f.Set(path, value)
		return
	}

	parts := strings.Split(path, ".")
	node := f.root
	for _, part := range parts[:len(parts)-1] {
		_, next := findPair(node, part)
		if next != nil && next.Kind == yaml.AliasNode {
			next = next.Alias
		}
		if next == nil || next.Kind != yaml.MappingNode {
			f.Set(path, value)
			return
		}
		node = next
	}
	(&File{root: node}).Set(parts[len(parts)-1], value)
}
