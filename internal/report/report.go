// Package report renders the merged, enriched item sequence of a work
// unit into a static document. The item schema is owned upstream; the
// renderer only reads the presentation fields.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// Renderer emits one report per category from its final item sequence.
type Renderer interface {
	Render(category string, items []Entry, path string) error
}

// Entry is the minimal presentation view of an enriched item.
type Entry struct {
	Title      string         `json:"title"`
	Summary    string         `json:"summary"`
	Keywords   []string       `json:"keywords,omitempty"`
	Link       string         `json:"link,omitempty"`
	Enrichment map[string]any `json:"enrichment,omitempty"`
}

// EntryFromItem projects a pipeline item map into an Entry.
func EntryFromItem(item map[string]any) Entry {
	e := Entry{}
	e.Title, _ = item["title"].(string)
	e.Summary, _ = item["summary"].(string)
	e.Link, _ = item["link"].(string)
	if raw, ok := item["keywords"].([]any); ok {
		for _, k := range raw {
			if s, ok := k.(string); ok {
				e.Keywords = append(e.Keywords, s)
			}
		}
	}
	if enr, ok := item["enrichment"].(map[string]any); ok {
		e.Enrichment = enr
	}
	return e
}

const markdownTemplate = `# {{.Category}} digest

Generated {{.Date}} for {{.Owner}}. {{len .Entries}} items.

{{range .Entries}}## {{if .Title}}{{.Title}}{{else}}(untitled){{end}}

{{.Summary}}
{{if .Keywords}}
Keywords: {{join .Keywords ", "}}
{{end}}{{if .Link}}
[source]({{.Link}})
{{end}}
{{end}}`

// MarkdownRenderer writes one markdown file per category.
type MarkdownRenderer struct {
	Owner string
	tmpl  *template.Template
}

// NewMarkdownRenderer creates a renderer stamping owner into headers.
func NewMarkdownRenderer(owner string) (*MarkdownRenderer, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"join": strings.Join,
	}).Parse(markdownTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &MarkdownRenderer{Owner: owner, tmpl: tmpl}, nil
}

// Render writes the category report to path.
func (r *MarkdownRenderer) Render(category string, entries []Entry, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	data := struct {
		Category string
		Date     string
		Owner    string
		Entries  []Entry
	}{
		Category: category,
		Date:     time.Now().Format("2006-01-02"),
		Owner:    r.Owner,
		Entries:  entries,
	}
	if err := r.tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

var _ Renderer = (*MarkdownRenderer)(nil)
