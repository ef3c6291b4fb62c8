package adapters

import (
	"path/filepath"
	"strings"

	"github.com/ppiankov/regdiff/internal/model"
	"golang.org/x/net/html"
)

// Adapter turns one document format into sections
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter can handle the given path/content type
	CanHandle(path string, contentType string) bool

	// Sections segments the raw document
	Sections(raw []byte) (model.Sections, error)
}

// Registry manages format adapters
type Registry struct {
	adapters []Adapter
	fallback Adapter
}

// NewRegistry creates a new adapter registry
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	// Register built-in adapters
	registry.Register(NewStructuredAdapter())
	registry.Register(NewHTMLAdapter())
	registry.Register(NewBinaryAdapter())

	// Plain text is the fallback
	registry.fallback = NewTextAdapter()

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the first adapter for the given path and content type
func (r *Registry) FindAdapter(path string, contentType string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(path, contentType) {
			return adapter
		}
	}
	return r.fallback
}

// BaseAdapter provides common functionality for adapters
type BaseAdapter struct{}

// HasExtension checks the path extension against a set, case-insensitively.
// URL query strings and fragments are ignored.
func (b *BaseAdapter) HasExtension(path string, exts ...string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// MediaType returns the lowercased media type without parameters
func (b *BaseAdapter) MediaType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// GetAttribute gets an attribute value from a node
func (b *BaseAdapter) GetAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// FindFirst finds the first node matching a predicate
func (b *BaseAdapter) FindFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node

	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}
