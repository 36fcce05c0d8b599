package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"
)

// maxXMLPartBytes caps how much of a single XML part is decoded. OOXML parts
// carrying actual prose stay far below this.
const maxXMLPartBytes = 4 << 20

// readDocx pulls the visible text out of word/document.xml and any headers.
func readDocx(path string) string {
	return readZipXML(path, func(name string) bool {
		return name == "word/document.xml" || strings.HasPrefix(name, "word/header")
	})
}

// readPptx concatenates the text of every slide.
func readPptx(path string) string {
	return readZipXML(path, func(name string) bool {
		return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
	})
}

// readXlsx reads the shared-strings table, which holds all cell text.
func readXlsx(path string) string {
	return readZipXML(path, func(name string) bool {
		return name == "xl/sharedStrings.xml"
	})
}

// readZipXML opens path as a zip container and extracts the character data
// of every XML part selected by wanted.
func readZipXML(path string, wanted func(name string) bool) string {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer zr.Close()

	var parts []string
	for _, f := range zr.File {
		if !wanted(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		if text := xmlCharData(io.LimitReader(rc, maxXMLPartBytes)); text != "" {
			parts = append(parts, text)
		}
		rc.Close()
	}
	return strings.Join(parts, "\n")
}

// xmlCharData streams an XML document and collects its character data,
// inserting a space between adjacent runs so words from separate elements
// don't fuse together.
func xmlCharData(r io.Reader) string {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			chunk := strings.TrimSpace(string(cd))
			if chunk == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(chunk)
		}
	}
	return b.String()
}
