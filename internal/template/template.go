// Package template normalizes a drafted CloudFormation template into a
// deployable one.
//
// The document is kept as a YAML node tree so key order, comments and
// intrinsic function tags such as !Ref survive a round trip.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/infrapilot/infrapilot/internal/ir"
	"gopkg.in/yaml.v3"
)

// DefaultFile is where the deployable artifact is written by default.
const DefaultFile = "template.yaml"

var (
	// ErrNotMapping is returned when the top-level document is not a mapping.
	ErrNotMapping = errors.New("template is not a mapping")
	// ErrNoResources is returned when the document has no Resources mapping.
	ErrNoResources = errors.New("template has no Resources mapping")
)

// Document is a decoded template.
type Document struct {
	root *yaml.Node
}

// Decode parses a drafted template. Markdown code fences are removed and both
// YAML and JSON input are accepted.
func Decode(raw []byte) (*Document, error) {
	src := ir.StripFences(string(raw))
	if src == "" {
		return nil, fmt.Errorf("empty template: %w", ErrNotMapping)
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(src), &root); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	doc := &Document{root: &root}
	if doc.body() == nil {
		return nil, ErrNotMapping
	}
	return doc, nil
}

// ReadFile decodes the template stored at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Decode(data)
}

func (d *Document) body() *yaml.Node {
	if d == nil || d.root == nil {
		return nil
	}
	n := d.root
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil
		}
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	return n
}

// Resources returns the Resources mapping node.
func (d *Document) Resources() (*yaml.Node, error) {
	body := d.body()
	if body == nil {
		return nil, ErrNotMapping
	}
	res := lookup(body, "Resources")
	if res == nil || res.Kind != yaml.MappingNode {
		return nil, ErrNoResources
	}
	return res, nil
}

// Encode renders the document as YAML.
func (d *Document) Encode() ([]byte, error) {
	if d.body() == nil {
		return nil, ErrNotMapping
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the encoded document to path.
func (d *Document) WriteFile(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	return nil
}

// lookup returns the value node for key in a mapping node.
func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// remove deletes key from a mapping node and reports whether it was present.
func remove(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// set replaces or appends key in a mapping node.
func set(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, scalar(key), value)
}
