package report

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/logger"
)

// Content types of the produced artifacts
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// Artifact is a rendered file on disk
type Artifact struct {
	Path        string
	ContentType string
	Size        int64
}

// Name is the artifact's file name
func (a *Artifact) Name() string {
	return filepath.Base(a.Path)
}

// Read loads the artifact. A missing file is a NotFound error.
func (a *Artifact) Read() ([]byte, error) {
	data, err := os.ReadFile(a.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewNotFoundError("report %s not found", a.Name())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", a.Name())
	}
	return data, nil
}

// Remove deletes the artifact; a missing file is not an error
func (a *Artifact) Remove() error {
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "failed to remove %s", a.Name())
	}
	return nil
}

// Renderer writes a document to an artifact
type Renderer interface {
	Render(ctx context.Context, doc *Document) (*Artifact, error)
}

// writeArtifact stores data under dir with a name unique to the run
func writeArtifact(dir, name, contentType string, data []byte) (*Artifact, error) {
	if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
		return nil, errors.MarkRender(errors.Wrapf(err, "failed to create output directory %s", dir))
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, am.DefaultFilePermissions); err != nil {
		return nil, errors.MarkRender(errors.Wrapf(err, "failed to write %s", path))
	}
	return &Artifact{Path: path, ContentType: contentType, Size: int64(len(data))}, nil
}

// HTMLRenderer writes the styled page as a .html file
type HTMLRenderer struct {
	styler    Styler
	outputDir string
}

// NewHTMLRenderer creates an HTML renderer writing into outputDir
func NewHTMLRenderer(styler Styler, outputDir string) *HTMLRenderer {
	return &HTMLRenderer{styler: styler, outputDir: outputDir}
}

// Render implements Renderer
func (r *HTMLRenderer) Render(ctx context.Context, doc *Document) (*Artifact, error) {
	page, err := r.styler.HTML(ctx, doc)
	if err != nil {
		return nil, errors.MarkRender(err)
	}
	return writeArtifact(r.outputDir, doc.Filename(".html"), ContentTypeHTML, []byte(page))
}

// NewFromConfig builds the renderer named by render.format.
// gen is used only when render.llm_styling is on.
func NewFromConfig(cfg am.RenderConfig, gen Generator, log *zap.SugaredLogger) (Renderer, error) {
	if log == nil {
		log = logger.ComponentLogger("report")
	}

	var styler Styler = NewMarkdownStyler()
	if cfg.LLMStyling {
		if gen == nil {
			return nil, errors.New("render.llm_styling needs a generator")
		}
		styler = NewLLMStyler(gen)
	}

	dir := cfg.OutputDir
	if dir == "" {
		dir = os.TempDir()
	}

	switch cfg.Format {
	case "html":
		return NewHTMLRenderer(styler, dir), nil
	case "pdf", "":
		return NewPDFRenderer(styler, dir,
			WithChromePath(cfg.ChromePath),
			WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
			WithRenderLogger(log),
		), nil
	default:
		return nil, errors.Newf("unknown render format %q (expected pdf or html)", cfg.Format)
	}
}
