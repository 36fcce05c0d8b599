package extract

import (
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxPDFPages bounds how many pages are read per document. Evidence keywords
// that only appear past this point are not worth the parse cost.
const maxPDFPages = 50

// readPDF extracts plain text from the first maxPDFPages pages. The pdf
// library panics on some malformed documents, so the whole read is guarded;
// any failure returns "".
func readPDF(path string) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	pages := r.NumPage()
	if pages > maxPDFPages {
		pages = maxPDFPages
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(content)
		b.WriteByte('\n')
	}
	return b.String()
}
