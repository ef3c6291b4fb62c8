package adapters

import (
	"bytes"
	"fmt"

	"github.com/ppiankov/regdiff/internal/extract"
	"github.com/ppiankov/regdiff/internal/model"
	"golang.org/x/net/html"
)

// HTMLAdapter segments published circulars served as HTML pages
type HTMLAdapter struct {
	BaseAdapter
}

// NewHTMLAdapter creates a new HTML adapter
func NewHTMLAdapter() *HTMLAdapter {
	return &HTMLAdapter{}
}

// Name returns the adapter name
func (a *HTMLAdapter) Name() string {
	return "html"
}

// CanHandle checks for an HTML extension or content type
func (a *HTMLAdapter) CanHandle(path string, contentType string) bool {
	switch a.MediaType(contentType) {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return a.HasExtension(path, ".html", ".htm", ".xhtml")
}

// Sections extracts the visible text of the main content and segments it
func (a *HTMLAdapter) Sections(raw []byte) (model.Sections, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return extract.ParseSections(extract.VisibleText(a.contentRoot(doc))), nil
}

// contentRoot prefers <main>, then <article> or role=main, then the whole page
func (a *HTMLAdapter) contentRoot(doc *html.Node) *html.Node {
	root := a.FindFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "main"
	})
	if root != nil {
		return root
	}

	root = a.FindFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode &&
			(n.Data == "article" || a.GetAttribute(n, "role") == "main")
	})
	if root != nil {
		return root
	}

	return doc
}
