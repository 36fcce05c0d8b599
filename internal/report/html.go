package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"github.com/mkessler/evfind/internal/scan"
)

// groupLimit caps how many items render per group; groups are already score
// sorted so the cut keeps the strongest evidence.
const groupLimit = 100

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"base":  filepath.Base,
	"score": FormatScore,
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Evidence Report</title>
<style>
 body{font-family:system-ui,Segoe UI,Arial;margin:24px;}
 h1{margin-bottom:8px}
 h2{margin-top:24px;border-bottom:1px solid #ddd;padding-bottom:4px}
 code{background:#f6f8fa;padding:2px 4px;border-radius:4px}
 li{margin:6px 0}
 .note{color:#555}
 .meta{color:#666;font-size:0.9em}
</style></head><body>
<h1>Evidence Report</h1>
<p class="note">Generated locally. Grouped by Source &#9656; Category &#9656; Subcategory (top {{.Limit}} shown per group).</p>
{{range .Sections}}<h2>{{.Source}} &#9656; {{.Category}} &#9656; {{.Subcategory}} ({{.Count}})</h2>
<ul>
{{range .Items}}<li><strong>{{base .Display}}</strong> &mdash; score {{score .Score}}
<br><code title="{{.Display}}">{{.Path}}</code>{{if .Meta}}
<br><span class="meta">{{.Meta}}</span>{{end}}</li>
{{end}}</ul>
{{end}}</body></html>
`))

type htmlSection struct {
	Source      scan.Source
	Category    string
	Subcategory string
	Count       int
	Items       []scan.EvidenceRow
}

type htmlData struct {
	Limit    int
	Sections []htmlSection
}

// WriteHTML renders the grouped human-readable report.
func WriteHTML(rows []scan.EvidenceRow, outDir string) (string, error) {
	grouped, keys := groupRows(rows)

	data := htmlData{Limit: groupLimit}
	for _, k := range keys {
		items := append([]scan.EvidenceRow(nil), grouped[k]...)
		sort.Slice(items, func(i, j int) bool {
			if items[i].Score != items[j].Score {
				return items[i].Score > items[j].Score
			}
			return items[i].Display < items[j].Display
		})
		count := len(items)
		if len(items) > groupLimit {
			items = items[:groupLimit]
		}
		data.Sections = append(data.Sections, htmlSection{
			Source:      k.Source,
			Category:    k.Category,
			Subcategory: k.Subcategory,
			Count:       count,
			Items:       items,
		})
	}

	path := filepath.Join(outDir, "report.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report.html: %w", err)
	}
	defer f.Close()

	if err := htmlTmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("render report.html: %w", err)
	}
	return path, nil
}
