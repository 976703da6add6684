package export

import (
	"bytes"
	"context"
	"errors"
	"time"
)

// Render defaults.
const (
	DefaultViewportWidth     int64 = 1200
	DefaultViewportHeight    int64 = 800
	DefaultImageScaleFactor        = 2.0
	DefaultIdleWindow              = 500 * time.Millisecond
	DefaultQuiescenceTimeout       = 30 * time.Second
)

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	pdfMagic     = []byte("%PDF-")
)

// DefaultPDFLayout is A4 landscape with 20px margins on every edge.
func DefaultPDFLayout() PDFLayout {
	return PDFLayout{
		PageSize:        "A4",
		Landscape:       true,
		MarginTop:       "20px",
		MarginBottom:    "20px",
		MarginLeft:      "20px",
		MarginRight:     "20px",
		PrintBackground: true,
	}
}

// Dispatcher opens one page on a handle, loads the shell and captures the
// artifact for the requested mode.
type Dispatcher struct {
	ViewportWidth     int64
	ViewportHeight    int64
	ImageScaleFactor  float64
	IdleWindow        time.Duration
	QuiescenceTimeout time.Duration
	PDF               PDFLayout
}

// NewDispatcher returns a dispatcher with the default calendar settings.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		ViewportWidth:     DefaultViewportWidth,
		ViewportHeight:    DefaultViewportHeight,
		ImageScaleFactor:  DefaultImageScaleFactor,
		IdleWindow:        DefaultIdleWindow,
		QuiescenceTimeout: DefaultQuiescenceTimeout,
		PDF:               DefaultPDFLayout(),
	}
}

// ViewportFor returns the viewport applied for mode.
func (d *Dispatcher) ViewportFor(mode Mode) Viewport {
	width := d.ViewportWidth
	if width <= 0 {
		width = DefaultViewportWidth
	}
	height := d.ViewportHeight
	if height <= 0 {
		height = DefaultViewportHeight
	}
	vp := Viewport{Width: width, Height: height, DeviceScaleFactor: 1}
	if mode == ModeImage {
		vp.DeviceScaleFactor = d.ImageScaleFactor
		if vp.DeviceScaleFactor <= 0 {
			vp.DeviceScaleFactor = DefaultImageScaleFactor
		}
	}
	return vp
}

func (d *Dispatcher) quiescence() Quiescence {
	q := Quiescence{IdleWindow: d.IdleWindow, Timeout: d.QuiescenceTimeout}
	if q.IdleWindow <= 0 {
		q.IdleWindow = DefaultIdleWindow
	}
	if q.Timeout <= 0 {
		q.Timeout = DefaultQuiescenceTimeout
	}
	return q
}

func (d *Dispatcher) pdfLayout() PDFLayout {
	if d.PDF.PageSize == "" {
		return DefaultPDFLayout()
	}
	return d.PDF
}

// Render produces the artifact for mode. Filename is left to the caller.
func (d *Dispatcher) Render(ctx context.Context, handle EngineHandle, shell DocumentShell, mode Mode) (Artifact, error) {
	if d == nil {
		d = NewDispatcher()
	}
	if handle == nil {
		return Artifact{}, NewError(KindInternal, "engine handle is nil", nil)
	}
	if !mode.Valid() {
		return Artifact{}, NewError(KindValidation, "unsupported render mode: "+string(mode), nil)
	}

	page, err := handle.OpenPage(ctx)
	if err != nil {
		return Artifact{}, NewError(KindRender, "open page failed", err)
	}
	defer page.Close()

	if err := page.SetViewport(ctx, d.ViewportFor(mode)); err != nil {
		return Artifact{}, NewError(KindRender, "set viewport failed", err)
	}

	idle := d.quiescence()
	loadCtx, cancel := context.WithTimeout(ctx, idle.Timeout)
	err = page.Load(loadCtx, shell, idle)
	loadErr := loadCtx.Err()
	cancel()
	if err != nil {
		if errors.Is(loadErr, context.DeadlineExceeded) && ctx.Err() == nil {
			return Artifact{}, NewError(KindRender, "page did not reach network idle", context.DeadlineExceeded)
		}
		return Artifact{}, NewError(KindRender, "page load failed", err)
	}

	var payload []byte
	switch mode {
	case ModeImage:
		payload, err = page.Screenshot(ctx)
		if err != nil {
			return Artifact{}, NewError(KindRender, "screenshot capture failed", err)
		}
		if !bytes.HasPrefix(payload, pngSignature) {
			return Artifact{}, NewError(KindRender, "engine returned invalid png output", nil)
		}
	case ModePDF:
		payload, err = page.PrintPDF(ctx, d.pdfLayout())
		if err != nil {
			return Artifact{}, NewError(KindRender, "pdf pagination failed", err)
		}
		if !bytes.HasPrefix(payload, pdfMagic) {
			return Artifact{}, NewError(KindRender, "engine returned invalid pdf output", nil)
		}
	}

	return Artifact{
		Bytes:     payload,
		MediaType: mode.MediaType(),
	}, nil
}
