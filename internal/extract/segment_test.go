package extract

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const circular = `DGCA CAR SECTION 7 SERIES J PART III ISSUE 3
Table of Contents
1 Applicability ........ 2
Preamble that precedes the first heading.
1. Applicability
These requirements apply to all operators.
Page 2
6.1 Flight duty period.
The flight duty period shall    not exceed 13 hours.
GENERAL PROVISIONS
Operators keep records.
`

func TestParseSections_Headings(t *testing.T) {
	sections := ParseSections(circular)

	if len(sections) != 3 {
		t.Fatalf("Expected 3 sections, got %d: %v", len(sections), sections.OrderedIDs())
	}

	tests := []struct {
		id       string
		heading  string
		body     string
		position int
	}{
		{"1", "Applicability", "These requirements apply to all operators.", 0},
		{"6.1", "Flight duty period", "The flight duty period shall not exceed 13 hours.", 1},
		{"H1", "GENERAL PROVISIONS", "Operators keep records.", 2},
	}

	for _, tt := range tests {
		sec, ok := sections[tt.id]
		if !ok {
			t.Errorf("Expected section %s", tt.id)
			continue
		}
		if sec.ID != tt.id {
			t.Errorf("%s: expected ID stamped, got %q", tt.id, sec.ID)
		}
		if sec.Heading != tt.heading {
			t.Errorf("%s: expected heading %q, got %q", tt.id, tt.heading, sec.Heading)
		}
		if sec.Body != tt.body {
			t.Errorf("%s: expected body %q, got %q", tt.id, tt.body, sec.Body)
		}
		if sec.Position != tt.position {
			t.Errorf("%s: expected position %d, got %d", tt.id, tt.position, sec.Position)
		}
	}

	if got := sections["6.1"].Meaning; got != "The flight duty period shall not exceed 13 hours." {
		t.Errorf("Unexpected meaning for 6.1: %q", got)
	}
}

func TestParseSections_DuplicateKeepsFirstPosition(t *testing.T) {
	sections := ParseSections("2 Rest\nfirst\n3 Standby\nstandby text\n2 Rest\nsecond")

	if sections["2"].Body != "second" {
		t.Errorf("Expected later duplicate to overwrite body, got %q", sections["2"].Body)
	}
	if sections["2"].Position != 0 {
		t.Errorf("Expected duplicate to keep position 0, got %d", sections["2"].Position)
	}
	if sections["3"].Position != 1 {
		t.Errorf("Expected position 1 for 3, got %d", sections["3"].Position)
	}
}

func TestParseSections_RejectsNonHeadings(t *testing.T) {
	long := "5 " + strings.Repeat("word ", 50)
	sections := ParseSections("4 Limits\n12 300 450\n" + long)

	if len(sections) != 1 {
		t.Fatalf("Expected only section 4, got %v", sections.OrderedIDs())
	}
	body := sections["4"].Body
	if !strings.HasPrefix(body, "12 300 450 5 word") {
		t.Errorf("Expected numeric row and long line in body, got %q", body)
	}
}

func TestParseSections_Empty(t *testing.T) {
	if got := ParseSections(""); len(got) != 0 {
		t.Errorf("Expected no sections, got %d", len(got))
	}
	if got := ParseSections("just prose\nwith no headings"); len(got) != 0 {
		t.Errorf("Expected no sections, got %d", len(got))
	}
}

func TestVisibleText(t *testing.T) {
	page := `<html><head><style>p{color:red}</style><script>var a = 1;</script></head>
<body><nav>Home | About</nav><main><h2>1 Scope</h2><p>The limit is <b>13</b> hours.</p></main>
<footer>Copyright</footer></body></html>`

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	text := VisibleText(doc)
	for _, hidden := range []string{"color:red", "var a", "Home", "Copyright"} {
		if strings.Contains(text, hidden) {
			t.Errorf("Expected %q to be skipped, got %q", hidden, text)
		}
	}

	sections := ParseSections(text)
	sec, ok := sections["1"]
	if !ok {
		t.Fatalf("Expected section 1, got %v", sections.OrderedIDs())
	}
	if sec.Heading != "Scope" || sec.Body != "The limit is 13 hours." {
		t.Errorf("Unexpected section: %+v", sec)
	}
}
