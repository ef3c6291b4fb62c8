package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ppiankov/regdiff/internal/extract/adapters"
	"github.com/ppiankov/regdiff/internal/model"
)

// Document is one loaded and segmented document version
type Document struct {
	Ref      string
	Format   string // Adapter name
	Raw      []byte
	Sections model.Sections
	Fetch    *model.FetchMeta // Set for remote documents only
}

// Meta describes the document for the report; digest is filled in by the caller
func (d *Document) Meta() model.DocumentMeta {
	return model.DocumentMeta{
		Ref:      d.Ref,
		Format:   d.Format,
		Sections: len(d.Sections),
		Fetch:    d.Fetch,
	}
}

// Loader reads document versions from disk or over HTTP
type Loader struct {
	fetcher  *Fetcher
	registry *adapters.Registry
}

// NewLoader creates a loader. A nil fetcher rejects remote references.
func NewLoader(fetcher *Fetcher, registry *adapters.Registry) *Loader {
	if registry == nil {
		registry = adapters.NewRegistry()
	}
	return &Loader{fetcher: fetcher, registry: registry}
}

// IsRemote reports whether ref is an http(s) URL
func IsRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Load reads ref and segments it with the matching adapter
func (l *Loader) Load(ctx context.Context, ref string) (*Document, error) {
	doc := &Document{Ref: ref}

	path := ref
	var contentType string

	if IsRemote(ref) {
		if l.fetcher == nil {
			return nil, fmt.Errorf("load %s: remote documents are not enabled", ref)
		}
		result, err := l.fetcher.FetchWithRetry(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		doc.Raw = []byte(result.HTML)
		meta := result.Meta
		doc.Fetch = &meta
		contentType = meta.ContentType
		if u, err := url.Parse(result.FinalURL); err == nil {
			path = u.Path
		}
	} else {
		raw, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		doc.Raw = raw
	}

	adapter := l.registry.FindAdapter(path, contentType)
	sections, err := adapter.Sections(doc.Raw)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", ref, err)
	}

	doc.Format = adapter.Name()
	doc.Sections = sections
	return doc, nil
}
