// Package report turns the final stage output into a rendered document.
//
// Project maps the report text to a Document. A Styler produces HTML from the
// Document, either through goldmark or through an extra generation call, and
// a Renderer writes the artifact (HTML or PDF) into the output directory under
// a name unique to the run.
package report

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/teranos/threatbrief/errors"
)

// Title heads every generated document
const Title = "Cybersecurity Threat Analysis Report"

const (
	filenamePrefix  = "cybersecurity_report"
	timestampLayout = "2006-01-02 15:04:05"
)

// Document is the renderable form of one run's report
type Document struct {
	Title       string
	GeneratedAt time.Time
	RunID       string
	Markdown    string
}

// Project builds a Document from the report text. An empty runID gets a fresh
// UUID. Empty or whitespace-only text is an EmptyResult error.
func Project(reportText, runID string, now time.Time) (*Document, error) {
	body := strings.TrimSpace(reportText)
	if body == "" {
		return nil, errors.Mark(errors.New("report stage produced no text"), errors.ErrEmptyResult)
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Document{
		Title:       Title,
		GeneratedAt: now,
		RunID:       runID,
		Markdown:    body,
	}, nil
}

// GeneratedLine is the header line under the title
func (d *Document) GeneratedLine() string {
	return "Generated on: " + d.GeneratedAt.Format(timestampLayout)
}

// Filename returns the artifact name for the given extension, e.g. ".pdf"
func (d *Document) Filename(ext string) string {
	return filenamePrefix + d.RunID + ext
}

// Header is the document header in markdown
func (d *Document) Header() string {
	return "# " + d.Title + "\n\n" + d.GeneratedLine() + "\n"
}

// FullMarkdown is the header followed by the report body
func (d *Document) FullMarkdown() string {
	return d.Header() + "\n" + d.Markdown + "\n"
}

// Outline lists the report's headings in order, as plain text
func (d *Document) Outline() []string {
	source := []byte(d.Markdown)
	root := goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser().Parse(text.NewReader(source))

	var headings []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			headings = append(headings, strings.TrimSpace(nodeText(h, source)))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return headings
}

func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			continue
		}
		b.WriteString(nodeText(c, source))
	}
	return b.String()
}
