package report

import (
	"context"
	"strings"

	"github.com/teranos/threatbrief/errors"
)

// Generator is the text-generation capability the LLM styler calls
type Generator interface {
	Generate(ctx context.Context, roleDescription, prompt string) (string, error)
}

const stylerRole = `You are a front-end designer who formats cybersecurity reports as standalone HTML pages.
Keep the exact content of the report. Do not add, remove or reword any findings.`

const stylerPrompt = `Convert this report into a professional, visually appealing HTML page.
Use a dark and red cybersecurity theme with inline CSS, clear section headings and readable tables.
The page is printed to A3 with no margins, so include the backgrounds in the page itself.
Return only the HTML content, without explanations or code fences.

`

// LLMStyler asks the generation backend to produce the styled page
type LLMStyler struct {
	gen Generator
}

// NewLLMStyler creates a styler that calls gen once per document
func NewLLMStyler(gen Generator) *LLMStyler {
	return &LLMStyler{gen: gen}
}

// HTML implements Styler
func (s *LLMStyler) HTML(ctx context.Context, doc *Document) (string, error) {
	out, err := s.gen.Generate(ctx, stylerRole, stylerPrompt+doc.FullMarkdown())
	if err != nil {
		return "", errors.MarkRender(errors.Wrap(err, "HTML styling call failed"))
	}
	page := stripFences(out)
	if !strings.Contains(strings.ToLower(page), "<html") && !strings.Contains(strings.ToLower(page), "<body") {
		return "", errors.NewRenderErrorf("HTML styling returned no HTML document")
	}
	return page, nil
}

// stripFences removes a surrounding ``` or ```html block
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
