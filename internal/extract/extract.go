// Package extract turns documents into scoreable plain text. Every failure
// mode (unreadable file, malformed document, unsupported format) yields an
// empty string rather than an error, so the scan engine never stops on a bad
// document.
package extract

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/h2non/filetype/types"
)

// Func is the text-extraction capability consumed by the scan engine.
type Func func(path string) string

// maxPlainBytes bounds plain-text reads; evidence keywords live well within
// the first few megabytes of any real document.
const maxPlainBytes = 8 << 20

// Text extracts plain text from path based on its extension, verifying
// container formats against their magic bytes first. Unknown extensions
// return "".
func Text(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".csv", ".log":
		return readPlain(path)
	case ".html", ".htm":
		return readHTML(path)
	case ".pdf":
		if !magicIs(path, matchers.TypePdf) {
			return ""
		}
		return readPDF(path)
	case ".docx":
		if !magicIs(path, matchers.TypeZip) {
			return ""
		}
		return readDocx(path)
	case ".pptx":
		if !magicIs(path, matchers.TypeZip) {
			return ""
		}
		return readPptx(path)
	case ".xlsx":
		if !magicIs(path, matchers.TypeZip) {
			return ""
		}
		return readXlsx(path)
	}
	return ""
}

// magicIs sniffs the file header and reports whether it matches want.
// OOXML containers (docx/pptx/xlsx) all present as zip.
func magicIs(path string, want types.Type) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, 262)
	n, _ := io.ReadFull(f, head)
	kind, err := filetype.Match(head[:n])
	if err != nil {
		return false
	}
	return kind.Extension == want.Extension
}

func readPlain(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	data, _ := io.ReadAll(io.LimitReader(f, maxPlainBytes))
	return string(data)
}

func readHTML(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	return HTMLText(io.LimitReader(f, maxPlainBytes))
}

// HTMLText reduces an HTML document to its visible text.
func HTMLText(r io.Reader) string {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}
