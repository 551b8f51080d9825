package report

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/logger"
)

// A3 in inches
const (
	paperWidthIn  = 11.69
	paperHeightIn = 16.54
)

// PrintFunc turns an HTML page into PDF bytes
type PrintFunc func(ctx context.Context, html string) ([]byte, error)

// PDFRenderer prints the styled page with headless Chrome
type PDFRenderer struct {
	styler     Styler
	outputDir  string
	chromePath string
	timeout    time.Duration
	print      PrintFunc
	logger     *zap.SugaredLogger
}

// PDFOption configures a PDFRenderer
type PDFOption func(*PDFRenderer)

// WithChromePath uses a specific Chrome or Chromium binary
func WithChromePath(path string) PDFOption {
	return func(r *PDFRenderer) { r.chromePath = path }
}

// WithTimeout bounds one print job. Zero means no limit beyond the caller's context.
func WithTimeout(d time.Duration) PDFOption {
	return func(r *PDFRenderer) { r.timeout = d }
}

// WithPrinter replaces headless Chrome
func WithPrinter(p PrintFunc) PDFOption {
	return func(r *PDFRenderer) { r.print = p }
}

// WithRenderLogger sets the renderer's logger
func WithRenderLogger(l *zap.SugaredLogger) PDFOption {
	return func(r *PDFRenderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewPDFRenderer creates a PDF renderer writing into outputDir
func NewPDFRenderer(styler Styler, outputDir string, opts ...PDFOption) *PDFRenderer {
	r := &PDFRenderer{
		styler:    styler,
		outputDir: outputDir,
		logger:    logger.ComponentLogger("report"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.print == nil {
		r.print = r.chromePrint
	}
	return r
}

// Render implements Renderer
func (r *PDFRenderer) Render(ctx context.Context, doc *Document) (*Artifact, error) {
	html, err := r.styler.HTML(ctx, doc)
	if err != nil {
		return nil, errors.MarkRender(err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	pdf, err := r.print(ctx, html)
	if err != nil {
		return nil, errors.MarkRender(errors.Wrap(err, "PDF printing failed"))
	}
	if len(pdf) == 0 {
		return nil, errors.NewRenderErrorf("PDF printing produced no output")
	}

	art, err := writeArtifact(r.outputDir, doc.Filename(".pdf"), ContentTypePDF, pdf)
	if err != nil {
		return nil, err
	}
	logger.LoggerFromContext(ctx, r.logger).Debugw("PDF rendered",
		logger.FieldFile, art.Path,
		logger.FieldSize, art.Size,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return art, nil
}

// chromePrint loads html into a blank tab and prints it to A3 with no margins
func (r *PDFRenderer) chromePrint(ctx context.Context, html string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidthIn).
				WithPaperHeight(paperHeightIn).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}
