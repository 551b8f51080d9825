package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/errors"
)

const sampleReport = `## 1. Executive Summary
A **ransomware** intrusion was contained.

## 2. Threat Analysis
| Indicator | Value |
|---|---|
| src_ip | 10.0.0.7 |

<script>alert(1)</script>
`

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func sampleDoc(t *testing.T) *Document {
	t.Helper()
	doc, err := Project(sampleReport, "run-1", fixedTime)
	require.NoError(t, err)
	return doc
}

func TestProject(t *testing.T) {
	doc := sampleDoc(t)
	assert.Equal(t, Title, doc.Title)
	assert.Equal(t, "Generated on: 2026-03-14 09:26:53", doc.GeneratedLine())
	assert.Equal(t, "cybersecurity_reportrun-1.pdf", doc.Filename(".pdf"))
	assert.True(t, strings.HasPrefix(doc.FullMarkdown(), "# Cybersecurity Threat Analysis Report\n\nGenerated on:"))
	assert.Equal(t, []string{"1. Executive Summary", "2. Threat Analysis"}, doc.Outline())
}

func TestProject_FreshRunID(t *testing.T) {
	a, err := Project("R", "", fixedTime)
	require.NoError(t, err)
	b, err := Project("R", "", fixedTime)
	require.NoError(t, err)
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.Filename(".pdf"), b.Filename(".pdf"))
}

func TestProject_Empty(t *testing.T) {
	for _, text := range []string{"", " \n\t"} {
		_, err := Project(text, "", fixedTime)
		require.Error(t, err)
		assert.True(t, errors.IsEmptyResultError(err))
	}
}

func TestMarkdownStyler(t *testing.T) {
	page, err := NewMarkdownStyler().HTML(context.Background(), sampleDoc(t))
	require.NoError(t, err)

	assert.Contains(t, page, "<title>Cybersecurity Threat Analysis Report</title>")
	assert.Contains(t, page, "Generated on: 2026-03-14 09:26:53")
	assert.Contains(t, page, "<strong>ransomware</strong>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<td>10.0.0.7</td>")
	assert.Contains(t, page, "#c0141c")
	assert.NotContains(t, page, "<script>")
}

type fakeGen struct {
	out    string
	err    error
	prompt string
}

func (f *fakeGen) Generate(_ context.Context, _ string, prompt string) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func TestLLMStyler(t *testing.T) {
	gen := &fakeGen{out: "```html\n<html><body><h1>styled</h1></body></html>\n```"}
	page, err := NewLLMStyler(gen).HTML(context.Background(), sampleDoc(t))
	require.NoError(t, err)
	assert.Equal(t, "<html><body><h1>styled</h1></body></html>", page)
	assert.Contains(t, gen.prompt, "dark and red")
	assert.Contains(t, gen.prompt, "Return only the HTML content")
	assert.Contains(t, gen.prompt, "A **ransomware** intrusion")
	assert.Contains(t, gen.prompt, "Generated on: 2026-03-14 09:26:53")
}

func TestLLMStyler_Errors(t *testing.T) {
	_, err := NewLLMStyler(&fakeGen{err: errors.New("quota")}).HTML(context.Background(), sampleDoc(t))
	assert.True(t, errors.IsRenderError(err))

	_, err = NewLLMStyler(&fakeGen{out: "Sorry, I can't help."}).HTML(context.Background(), sampleDoc(t))
	assert.True(t, errors.IsRenderError(err))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "<p>x</p>", stripFences("<p>x</p>"))
	assert.Equal(t, "<p>x</p>", stripFences("```\n<p>x</p>\n```"))
	assert.Equal(t, "<p>x</p>", stripFences("  ```HTML\n<p>x</p>```  "))
}

func TestHTMLRenderer(t *testing.T) {
	dir := t.TempDir()
	art, err := NewHTMLRenderer(NewMarkdownStyler(), dir).Render(context.Background(), sampleDoc(t))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "cybersecurity_reportrun-1.html"), art.Path)
	assert.Equal(t, ContentTypeHTML, art.ContentType)
	data, err := art.Read()
	require.NoError(t, err)
	assert.Equal(t, art.Size, int64(len(data)))
}

func TestPDFRenderer(t *testing.T) {
	var printed string
	printer := func(_ context.Context, html string) ([]byte, error) {
		printed = html
		return []byte("%PDF-1.4 fake"), nil
	}
	dir := filepath.Join(t.TempDir(), "nested")
	r := NewPDFRenderer(NewMarkdownStyler(), dir, WithPrinter(printer), WithTimeout(time.Second))

	art, err := r.Render(context.Background(), sampleDoc(t))
	require.NoError(t, err)
	assert.Equal(t, "cybersecurity_reportrun-1.pdf", art.Name())
	assert.Equal(t, ContentTypePDF, art.ContentType)
	assert.Contains(t, printed, "Threat Analysis")

	data, err := art.Read()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))

	require.NoError(t, art.Remove())
	require.NoError(t, art.Remove())
	_, err = art.Read()
	assert.True(t, errors.IsNotFoundError(err))
}

func TestPDFRenderer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		printer PrintFunc
	}{
		{"print failure", func(context.Context, string) ([]byte, error) { return nil, errors.New("chrome crashed") }},
		{"empty pdf", func(context.Context, string) ([]byte, error) { return nil, nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := NewPDFRenderer(NewMarkdownStyler(), dir, WithPrinter(tt.printer)).Render(context.Background(), sampleDoc(t))
			require.Error(t, err)
			assert.True(t, errors.IsRenderError(err))

			entries, _ := os.ReadDir(dir)
			assert.Empty(t, entries)
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	r, err := NewFromConfig(am.RenderConfig{Format: "html", OutputDir: t.TempDir()}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTMLRenderer{}, r)

	r, err = NewFromConfig(am.RenderConfig{Format: "pdf", LLMStyling: true}, &fakeGen{}, nil)
	require.NoError(t, err)
	pdf, ok := r.(*PDFRenderer)
	require.True(t, ok)
	assert.IsType(t, &LLMStyler{}, pdf.styler)

	_, err = NewFromConfig(am.RenderConfig{Format: "pdf", LLMStyling: true}, nil, nil)
	assert.Error(t, err)
	_, err = NewFromConfig(am.RenderConfig{Format: "docx"}, nil, nil)
	assert.Error(t, err)
}
