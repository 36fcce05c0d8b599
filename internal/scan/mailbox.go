package scan

import (
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"

	"github.com/emersion/go-mbox"

	"github.com/mkessler/evfind/internal/extract"
)

// maxMessageBody bounds how much of a single message body is read. Mail
// bodies past this point add no evidence worth the memory.
const maxMessageBody = 1 << 20 // 1 MB

// EnumerateMailboxes parses each mbox file and yields one item per message.
// Text combines subject, from, to and the best-effort decoded body: the
// first text/plain part wins; otherwise the first text/html part is reduced
// to plain text. Malformed messages are reported and skipped without
// aborting the mailbox. When prov is non-nil, messages sent from a target
// address earn provenance points and carry a note in Meta.
func EnumerateMailboxes(paths []string, prov *ProvenanceScorer, report ErrorReporter) []Item {
	var items []Item
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			report(path, "mailbox", err.Error())
			continue
		}
		mr := mbox.NewReader(f)
		for {
			msgReader, err := mr.NextMessage()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				report(path, "mailbox", err.Error())
				break
			}
			item, ok := messageItem(path, msgReader, prov)
			if !ok {
				report(path, "mailbox", "unparseable message")
				continue
			}
			items = append(items, item)
		}
		f.Close()
	}
	return items
}

func messageItem(path string, r io.Reader, prov *ProvenanceScorer) (Item, bool) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return Item{}, false
	}

	dec := new(mime.WordDecoder)
	subject := decodeHeader(dec, msg.Header.Get("Subject"))
	from := decodeHeader(dec, msg.Header.Get("From"))
	to := decodeHeader(dec, msg.Header.Get("To"))

	var when, dateMeta string
	if d, err := msg.Header.Date(); err == nil {
		when = d.UTC().Format("2006-01-02")
		dateMeta = d.UTC().Format("2006-01-02 15:04")
	}

	body := extractBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)

	display := subject
	if display == "" {
		display = "(no subject)"
	}

	var metaParts []string
	if dateMeta != "" {
		metaParts = append(metaParts, "date "+dateMeta)
	}
	if from != "" {
		metaParts = append(metaParts, "from "+from)
	}
	if to != "" {
		metaParts = append(metaParts, "to "+to)
	}

	provPoints, provNote := prov.Score(msg.Header)
	if provNote != "" {
		metaParts = append(metaParts, provNote)
	}

	text := strings.TrimSpace(strings.Join(nonEmpty(subject, from, to, body), "\n"))
	return Item{
		Source:     SourceEmail,
		Path:       path,
		Display:    display,
		Text:       text,
		Meta:       strings.Join(metaParts, ", "),
		When:       when,
		Provenance: provPoints,
	}, true
}

func decodeHeader(dec *mime.WordDecoder, s string) string {
	if decoded, err := dec.DecodeHeader(s); err == nil {
		return decoded
	}
	return s
}

// extractBody walks the MIME structure looking for the first text/plain
// part; if none exists the first text/html part is reduced to plain text.
// Any decode failure yields an empty body, never an error.
func extractBody(contentType, transferEncoding string, body io.Reader) string {
	plain, html := findTextParts(contentType, transferEncoding, body, 0)
	if plain != "" {
		return plain
	}
	if html != "" {
		return extract.HTMLText(strings.NewReader(html))
	}
	return ""
}

// findTextParts returns the first plain and first HTML bodies found in the
// (possibly nested) MIME tree. depth guards against pathological nesting.
func findTextParts(contentType, transferEncoding string, body io.Reader, depth int) (plain, html string) {
	if depth > 8 {
		return "", ""
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return "", ""
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err != nil {
				return plain, html
			}
			p, h := findTextParts(
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part, depth+1)
			if plain == "" {
				plain = p
			}
			if html == "" {
				html = h
			}
			if plain != "" {
				return plain, html
			}
		}
	}

	content := readDecoded(body, transferEncoding)
	switch {
	case strings.HasPrefix(mediaType, "text/plain"):
		return content, ""
	case strings.HasPrefix(mediaType, "text/html"):
		return "", content
	}
	return "", ""
}

// readDecoded reads up to maxMessageBody bytes, applying the transfer
// encoding when one is declared.
func readDecoded(r io.Reader, transferEncoding string) string {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}
	data, _ := io.ReadAll(io.LimitReader(r, maxMessageBody))
	return string(data)
}
