package adapters

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/ppiankov/regdiff/internal/extract"
	"github.com/ppiankov/regdiff/internal/model"
)

// TextAdapter segments plain text, the output of an external PDF/OCR step
type TextAdapter struct {
	BaseAdapter
}

// NewTextAdapter creates a new plain-text adapter
func NewTextAdapter() *TextAdapter {
	return &TextAdapter{}
}

// Name returns the adapter name
func (a *TextAdapter) Name() string {
	return "text"
}

// CanHandle accepts anything
func (a *TextAdapter) CanHandle(path string, contentType string) bool {
	return true
}

// Sections runs heading segmentation over the text
func (a *TextAdapter) Sections(raw []byte) (model.Sections, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("text input is not valid UTF-8: %w", extract.ErrUnsupportedFormat)
	}
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	return extract.ParseSections(string(raw)), nil
}

// BinaryAdapter rejects formats that need text extraction first
type BinaryAdapter struct {
	BaseAdapter
}

// NewBinaryAdapter creates a new binary-format adapter
func NewBinaryAdapter() *BinaryAdapter {
	return &BinaryAdapter{}
}

// Name returns the adapter name
func (a *BinaryAdapter) Name() string {
	return "binary"
}

// CanHandle matches PDF and office documents
func (a *BinaryAdapter) CanHandle(path string, contentType string) bool {
	switch a.MediaType(contentType) {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	}
	return a.HasExtension(path, ".pdf", ".doc", ".docx")
}

// Sections always fails; convert the document to text first
func (a *BinaryAdapter) Sections(raw []byte) (model.Sections, error) {
	return nil, fmt.Errorf("%s input: convert to text first: %w", a.Name(), extract.ErrUnsupportedFormat)
}
