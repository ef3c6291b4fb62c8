package adapters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/regdiff/internal/model"
	"gopkg.in/yaml.v3"
)

// StructuredAdapter reads pre-segmented sections from YAML or JSON.
//
// Accepted shapes, optionally wrapped in a top-level "sections" key:
//
//	6.1: {heading: Flight duty period, body: "..."}
//	6.2: "body only"
//	- {section: "6.1", heading: ..., body: ...}
//
// Key order becomes section position. Keys are read as written, so 6.10
// stays distinct from 6.1.
type StructuredAdapter struct {
	BaseAdapter
}

// NewStructuredAdapter creates a new YAML/JSON adapter
func NewStructuredAdapter() *StructuredAdapter {
	return &StructuredAdapter{}
}

// Name returns the adapter name
func (a *StructuredAdapter) Name() string {
	return "structured"
}

// CanHandle checks for a YAML/JSON extension or content type
func (a *StructuredAdapter) CanHandle(path string, contentType string) bool {
	mt := a.MediaType(contentType)
	if mt == "application/json" || strings.HasSuffix(mt, "+json") ||
		mt == "application/yaml" || mt == "application/x-yaml" || mt == "text/yaml" {
		return true
	}
	return a.HasExtension(path, ".json", ".yaml", ".yml")
}

// Sections decodes the document
func (a *StructuredAdapter) Sections(raw []byte) (model.Sections, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(raw)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Sections{}, nil
		}
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	return DecodeSections(&doc)
}

// DecodeSections converts a decoded YAML/JSON node into sections
func DecodeSections(node *yaml.Node) (model.Sections, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return model.Sections{}, nil
		}
		node = node.Content[0]
	}

	if wrapped := lookup(node, "sections"); wrapped != nil && wrapped.Kind != yaml.ScalarNode {
		node = wrapped
	}

	out := make(model.Sections)
	add := func(id string, value *yaml.Node) error {
		id = strings.TrimSpace(id)
		if id == "" {
			return fmt.Errorf("line %d: empty section id", value.Line)
		}

		sec, err := decodeSection(value)
		if err != nil {
			return fmt.Errorf("section %s: %w", id, err)
		}
		sec.ID = id
		sec.Position = len(out)
		if prev, ok := out[id]; ok {
			sec.Position = prev.Position
		}
		out[id] = sec
		return nil
	}

	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if err := add(node.Content[i].Value, node.Content[i+1]); err != nil {
				return nil, err
			}
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			idNode := lookup(item, "section")
			if idNode == nil {
				idNode = lookup(item, "id")
			}
			if idNode == nil {
				return nil, fmt.Errorf("line %d: list entry without section id", item.Line)
			}
			if err := add(idNode.Value, item); err != nil {
				return nil, err
			}
		}
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return out, nil
		}
		return nil, fmt.Errorf("line %d: expected a mapping of sections", node.Line)
	default:
		return nil, fmt.Errorf("line %d: expected a mapping of sections", node.Line)
	}

	return out, nil
}

type sectionFields struct {
	Heading string `yaml:"heading"`
	Body    string `yaml:"body"`
	Meaning string `yaml:"meaning"`
}

func decodeSection(value *yaml.Node) (model.Section, error) {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			return model.Section{}, nil
		}
		return model.Section{Body: strings.TrimSpace(value.Value)}, nil
	case yaml.MappingNode:
		var f sectionFields
		if err := value.Decode(&f); err != nil {
			return model.Section{}, err
		}
		return model.Section{
			Heading: strings.TrimSpace(f.Heading),
			Body:    strings.TrimSpace(f.Body),
			Meaning: strings.TrimSpace(f.Meaning),
		}, nil
	}
	return model.Section{}, fmt.Errorf("line %d: expected text or {heading, body}", value.Line)
}

// lookup returns the value of key in a mapping node, or nil
func lookup(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
