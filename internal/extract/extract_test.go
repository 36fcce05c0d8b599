package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(tb testing.TB, name, content string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tb.Fatal(err)
	}
	return path
}

// writeOOXML builds a minimal zip container with the given parts, which is
// what docx/pptx/xlsx are under the hood.
func writeOOXML(tb testing.TB, name string, parts map[string]string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		tb.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for partName, content := range parts {
		w, err := zw.Create(partName)
		if err != nil {
			tb.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			tb.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatal(err)
	}
	if err := f.Close(); err != nil {
		tb.Fatal(err)
	}
	return path
}

func TestText_PlainFormats(t *testing.T) {
	for _, name := range []string{"a.txt", "b.md", "c.csv", "d.log"} {
		path := writeFile(t, name, "grant proposal draft")
		if got := Text(path); got != "grant proposal draft" {
			t.Errorf("Text(%s) = %q", name, got)
		}
	}
}

func TestText_HTMLStripsMarkup(t *testing.T) {
	path := writeFile(t, "page.html",
		`<html><head><style>body{color:red}</style></head>`+
			`<body><script>var x=1;</script><p>Committee minutes attached.</p></body></html>`)
	got := Text(path)
	if !strings.Contains(got, "Committee minutes attached.") {
		t.Errorf("Text = %q, want visible text", got)
	}
	if strings.Contains(got, "var x") || strings.Contains(got, "color:red") {
		t.Errorf("Text leaked script/style content: %q", got)
	}
}

func TestText_UnknownExtension(t *testing.T) {
	path := writeFile(t, "blob.xyz", "grant")
	if got := Text(path); got != "" {
		t.Errorf("Text = %q, want empty for unknown extension", got)
	}
}

func TestText_MissingFile(t *testing.T) {
	if got := Text(filepath.Join(t.TempDir(), "absent.txt")); got != "" {
		t.Errorf("Text = %q, want empty for a missing file", got)
	}
}

// TestText_DocxMagicMismatch: a renamed text file never reaches the zip
// reader; the magic check rejects it first.
func TestText_DocxMagicMismatch(t *testing.T) {
	path := writeFile(t, "fake.docx", "this is not a zip container")
	if got := Text(path); got != "" {
		t.Errorf("Text = %q, want empty for wrong magic bytes", got)
	}
}

func TestText_Docx(t *testing.T) {
	path := writeOOXML(t, "doc.docx", map[string]string{
		"word/document.xml": `<?xml version="1.0"?><w:document><w:body>` +
			`<w:p><w:r><w:t>Annual</w:t></w:r><w:r><w:t>grant report</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
		"word/header1.xml": `<?xml version="1.0"?><w:hdr><w:t>Department of Music</w:t></w:hdr>`,
		"word/styles.xml":  `<?xml version="1.0"?><w:styles><w:t>ignored</w:t></w:styles>`,
	})
	got := Text(path)
	if !strings.Contains(got, "Annual grant report") {
		t.Errorf("Text = %q, want body text with runs separated", got)
	}
	if !strings.Contains(got, "Department of Music") {
		t.Errorf("Text = %q, want header text included", got)
	}
	if strings.Contains(got, "ignored") {
		t.Errorf("Text = %q, styles part should not contribute", got)
	}
}

func TestText_Pptx(t *testing.T) {
	path := writeOOXML(t, "deck.pptx", map[string]string{
		"ppt/slides/slide1.xml": `<?xml version="1.0"?><p:sld><a:t>Course overview</a:t></p:sld>`,
		"ppt/slides/slide2.xml": `<?xml version="1.0"?><p:sld><a:t>Grading rubric</a:t></p:sld>`,
		"ppt/notesSlides/notesSlide1.xml": `<?xml version="1.0"?><p:notes><a:t>speaker notes</a:t></p:notes>`,
	})
	got := Text(path)
	if !strings.Contains(got, "Course overview") || !strings.Contains(got, "Grading rubric") {
		t.Errorf("Text = %q, want text from every slide", got)
	}
	if strings.Contains(got, "speaker notes") {
		t.Errorf("Text = %q, notes slides should not contribute", got)
	}
}

func TestText_Xlsx(t *testing.T) {
	path := writeOOXML(t, "book.xlsx", map[string]string{
		"xl/sharedStrings.xml": `<?xml version="1.0"?><sst><si><t>Committee roster</t></si>` +
			`<si><t>Budget 2023</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><v>42</v></worksheet>`,
	})
	got := Text(path)
	if !strings.Contains(got, "Committee roster") || !strings.Contains(got, "Budget 2023") {
		t.Errorf("Text = %q, want the shared-strings table", got)
	}
}

func TestText_MalformedPDF(t *testing.T) {
	// Valid magic bytes, garbage body: the reader must fail closed.
	path := writeFile(t, "broken.pdf", "%PDF-1.4\nnot actually a pdf")
	if got := Text(path); got != "" {
		t.Errorf("Text = %q, want empty for a malformed PDF", got)
	}
}

func TestHTMLText(t *testing.T) {
	got := HTMLText(strings.NewReader(`<div><p>one</p><script>x</script><p>two</p></div>`))
	if !strings.Contains(got, "one") || !strings.Contains(got, "two") {
		t.Errorf("HTMLText = %q", got)
	}
	if strings.Contains(got, "x") {
		t.Errorf("HTMLText leaked script body: %q", got)
	}
}
