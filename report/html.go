package report

import (
	"bytes"
	"context"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/teranos/threatbrief/errors"
)

// Styler produces a complete HTML page for a document
type Styler interface {
	HTML(ctx context.Context, doc *Document) (string, error)
}

// MarkdownStyler renders the report with goldmark (GitHub flavoured
// markdown) inside a fixed dark and red page template
type MarkdownStyler struct {
	md   goldmark.Markdown
	page *template.Template
}

// NewMarkdownStyler creates the default styler
func NewMarkdownStyler() *MarkdownStyler {
	return &MarkdownStyler{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		page: template.Must(template.New("report").Parse(pageTemplate)),
	}
}

// HTML implements Styler. Raw HTML in the report text is omitted.
func (s *MarkdownStyler) HTML(ctx context.Context, doc *Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var body bytes.Buffer
	if err := s.md.Convert([]byte(doc.Markdown), &body); err != nil {
		return "", errors.MarkRender(errors.Wrap(err, "markdown conversion failed"))
	}

	var out bytes.Buffer
	err := s.page.Execute(&out, struct {
		Title     string
		Generated string
		RunID     string
		Body      template.HTML
	}{
		Title:     doc.Title,
		Generated: doc.GeneratedLine(),
		RunID:     doc.RunID,
		Body:      template.HTML(body.String()),
	})
	if err != nil {
		return "", errors.MarkRender(errors.Wrap(err, "page template failed"))
	}
	return out.String(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  @page { size: A3; margin: 0; }
  * { box-sizing: border-box; }
  body {
    margin: 0;
    padding: 48px 64px;
    background: #0d0d0f;
    color: #e6e6e6;
    font-family: "Segoe UI", "Helvetica Neue", Arial, sans-serif;
    line-height: 1.6;
    -webkit-print-color-adjust: exact;
  }
  header { border-bottom: 3px solid #c0141c; margin-bottom: 32px; padding-bottom: 16px; }
  header h1 { color: #ff2e3a; font-size: 2.4em; margin: 0 0 8px; letter-spacing: 0.02em; }
  header .generated { color: #9a9a9a; font-size: 0.95em; }
  header .run { color: #5c5c5c; font-size: 0.75em; font-family: monospace; }
  h1, h2, h3, h4 { color: #ff4d57; }
  h2 { border-left: 5px solid #c0141c; padding-left: 12px; margin-top: 40px; }
  a { color: #ff6b73; }
  strong { color: #ffffff; }
  code, pre { background: #1a1a1e; color: #ffb3b8; border-radius: 4px; }
  code { padding: 2px 5px; }
  pre { padding: 16px; overflow-x: auto; border: 1px solid #2c2c31; }
  blockquote { border-left: 4px solid #7a0d12; margin: 0; padding: 4px 16px; color: #bdbdbd; background: #141417; }
  table { border-collapse: collapse; width: 100%; margin: 16px 0; }
  th { background: #7a0d12; color: #fff; text-align: left; }
  th, td { border: 1px solid #2c2c31; padding: 8px 12px; }
  tr:nth-child(even) td { background: #141417; }
</style>
</head>
<body>
<header>
  <h1>{{.Title}}</h1>
  <div class="generated">{{.Generated}}</div>
  <div class="run">{{.RunID}}</div>
</header>
<main>
{{.Body}}
</main>
</body>
</html>
`
