package adapters

import (
	"errors"
	"testing"

	"github.com/ppiankov/regdiff/internal/extract"
)

func TestRegistry_FindAdapter(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		path        string
		contentType string
		want        string
	}{
		{"old.yaml", "", "structured"},
		{"old.JSON", "", "structured"},
		{"https://example.org/api/sections", "application/json; charset=utf-8", "structured"},
		{"circular.html", "", "html"},
		{"https://example.org/car?id=7", "text/html; charset=utf-8", "html"},
		{"https://example.org/car.htm?x=1#top", "", "html"},
		{"circular.pdf", "", "binary"},
		{"download", "application/pdf", "binary"},
		{"circular.txt", "text/plain", "text"},
		{"circular", "", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := registry.FindAdapter(tt.path, tt.contentType).Name(); got != tt.want {
				t.Errorf("Expected %s adapter, got %s", tt.want, got)
			}
		})
	}
}

func TestStructuredAdapter_Mapping(t *testing.T) {
	raw := []byte(`
6.10:
  heading: Flight duty period
  body: The flight duty period shall not exceed 13 hours.
6.1: Standby duty is limited to 16 hours.
"1":
  heading: Applicability
  body: Applies to scheduled operators.
  meaning: Applicability. Applies to scheduled operators.
`)

	sections, err := NewStructuredAdapter().Sections(raw)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	ids := sections.OrderedIDs()
	want := []string{"6.10", "6.1", "1"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Expected id %s at %d, got %s", want[i], i, ids[i])
		}
	}

	if sections["6.10"].Heading != "Flight duty period" {
		t.Errorf("Unexpected heading: %q", sections["6.10"].Heading)
	}
	if sections["6.1"].Body != "Standby duty is limited to 16 hours." || sections["6.1"].Heading != "" {
		t.Errorf("Expected scalar value as body, got %+v", sections["6.1"])
	}
	if sections["1"].Meaning == "" {
		t.Error("Expected meaning to be kept")
	}
}

func TestStructuredAdapter_JSONWrappedAndList(t *testing.T) {
	wrapped := []byte(`{"sections": {"7": {"heading": "Rest", "body": "Ten hours."}, "8": {"heading": "Records"}}}`)
	sections, err := NewStructuredAdapter().Sections(wrapped)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(sections) != 2 || sections["7"].Body != "Ten hours." || sections["8"].Position != 1 {
		t.Errorf("Unexpected sections: %+v", sections)
	}

	list := []byte(`[{"section": "2", "heading": "Scope"}, {"id": "3", "body": "Text."}]`)
	sections, err = NewStructuredAdapter().Sections(list)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if sections["2"].Heading != "Scope" || sections["3"].Body != "Text." || sections["3"].Position != 1 {
		t.Errorf("Unexpected sections: %+v", sections)
	}
}

func TestStructuredAdapter_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"scalar document", `just a string`},
		{"list entry without id", `[{"heading": "x"}]`},
		{"invalid yaml", "a: [unterminated"},
		{"section as list", "1: [a, b]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStructuredAdapter().Sections([]byte(tt.raw)); err == nil {
				t.Error("Expected error")
			}
		})
	}

	sections, err := NewStructuredAdapter().Sections(nil)
	if err != nil || len(sections) != 0 {
		t.Errorf("Expected empty sections for empty input, got %v, %v", sections, err)
	}
}

func TestHTMLAdapter_PrefersMain(t *testing.T) {
	raw := []byte(`<html><body>
<div><h1>1 Site banner</h1><p>Not part of the circular.</p></div>
<main>
<h2>3.1 Flight time</h2><p>Flight time shall not exceed 8 hours.</p>
<h2>3.2 Landings</h2><p>No more than 6 landings.</p>
</main></body></html>`)

	sections, err := NewHTMLAdapter().Sections(raw)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := sections["1"]; ok {
		t.Error("Expected content outside <main> to be ignored")
	}
	if sections["3.1"].Body != "Flight time shall not exceed 8 hours." {
		t.Errorf("Unexpected body: %q", sections["3.1"].Body)
	}
	if sections["3.2"].Position != 1 {
		t.Errorf("Expected position 1, got %d", sections["3.2"].Position)
	}
}

func TestHTMLAdapter_ArticleFallback(t *testing.T) {
	raw := []byte(`<html><body><div role="main"><p>4 Standby</p><p>Standby is 12 hours.</p></div></body></html>`)

	sections, err := NewHTMLAdapter().Sections(raw)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if sections["4"].Heading != "Standby" {
		t.Errorf("Unexpected sections: %+v", sections)
	}
}

func TestTextAdapter(t *testing.T) {
	sections, err := NewTextAdapter().Sections([]byte("1 Scope\r\nApplies to all.\r\n"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if sections["1"].Body != "Applies to all." {
		t.Errorf("Unexpected body: %q", sections["1"].Body)
	}

	_, err = NewTextAdapter().Sections([]byte{0xff, 0xfe, 0x00})
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestBinaryAdapter(t *testing.T) {
	_, err := NewBinaryAdapter().Sections([]byte("%PDF-1.7"))
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}
