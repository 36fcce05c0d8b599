package scan

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/mkessler/evfind/internal/rules"
)

// provenanceHeaders is the precedence order for identifying a message's
// origin. The first header naming a target address wins; later headers are
// never consulted once one matches.
var provenanceHeaders = []string{"From", "Sender", "Reply-To"}

// ProvenanceScorer awards extra points to mail sent from one of the
// configured target addresses, so a person's own correspondence outranks
// mail that merely mentions the same terms.
type ProvenanceScorer struct {
	targets map[string]struct{}
	points  float64
}

// NewProvenanceScorer builds a scorer from the rules config. Returns nil
// when no target addresses are configured; a nil scorer awards nothing.
func NewProvenanceScorer(cfg rules.Provenance) *ProvenanceScorer {
	if len(cfg.TargetEmails) == 0 {
		return nil
	}
	return &ProvenanceScorer{targets: cfg.TargetEmails, points: cfg.EmailScore}
}

// Score walks the origin headers in precedence order and returns the
// awarded points plus a note naming the matched header and address.
// Returns (0, "") when nothing matches.
func (p *ProvenanceScorer) Score(header mail.Header) (float64, string) {
	if p == nil {
		return 0, ""
	}
	for _, name := range provenanceHeaders {
		for _, value := range originValues(header, name) {
			addrs, err := mail.ParseAddressList(value)
			if err != nil {
				continue
			}
			for _, a := range addrs {
				addr := strings.ToLower(strings.TrimSpace(a.Address))
				if addr == "" {
					continue
				}
				if _, ok := p.targets[addr]; ok {
					note := fmt.Sprintf("matched %s header (%s) checking precedence From > Sender > Reply-To",
						name, addr)
					return p.points, note
				}
			}
		}
	}
	return 0, ""
}

// originValues reads one origin header, accepting the underscore and
// squashed spellings some exporters use for Reply-To.
func originValues(h mail.Header, name string) []string {
	var out []string
	if v := h.Get(name); v != "" {
		out = append(out, v)
	}
	if name == "Reply-To" {
		for _, alias := range []string{"Reply_to", "Replyto"} {
			if v := h.Get(alias); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
