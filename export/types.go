package export

import (
	"context"
	"strings"
	"time"
)

// Mode selects the artifact produced by a render.
type Mode string

const (
	ModeImage Mode = "image"
	ModePDF   Mode = "pdf"
)

// Media types produced by the pipeline.
const (
	MediaTypePNG = "image/png"
	MediaTypePDF = "application/pdf"
)

// MediaType returns the artifact media type for the mode.
func (m Mode) MediaType() string {
	switch m {
	case ModeImage:
		return MediaTypePNG
	case ModePDF:
		return MediaTypePDF
	default:
		return ""
	}
}

// Extension returns the file extension (without dot) for the mode.
func (m Mode) Extension() string {
	switch m {
	case ModeImage:
		return "png"
	case ModePDF:
		return "pdf"
	default:
		return ""
	}
}

// Valid reports whether the mode is supported.
func (m Mode) Valid() bool {
	return m == ModeImage || m == ModePDF
}

// RenderRequest is one export call. Build it with NewRenderRequest.
type RenderRequest struct {
	Markup string
	Mode   Mode
}

// NewRenderRequest validates markup and mode.
func NewRenderRequest(markup string, mode Mode) (RenderRequest, error) {
	req := RenderRequest{Markup: markup, Mode: mode}
	if err := req.Validate(); err != nil {
		return RenderRequest{}, err
	}
	return req, nil
}

// Validate rejects blank markup and unknown modes.
func (r RenderRequest) Validate() error {
	if strings.TrimSpace(r.Markup) == "" {
		return NewError(KindValidation, "HTML content is required", nil)
	}
	if !r.Mode.Valid() {
		return NewError(KindValidation, "unsupported render mode: "+string(r.Mode), nil)
	}
	return nil
}

// DocumentShell is the standalone HTML document handed to the engine.
type DocumentShell string

// Artifact is the rendered output. Ownership passes to the caller.
type Artifact struct {
	Bytes     []byte
	MediaType string
	Filename  string
}

// Viewport describes the page metrics applied before loading content.
type Viewport struct {
	Width             int64
	Height            int64
	DeviceScaleFactor float64
}

// PDFLayout describes PDF pagination. Margins accept CSS-like lengths
// ("20px", "10mm", "0.5in").
type PDFLayout struct {
	PageSize        string
	Landscape       bool
	MarginTop       string
	MarginBottom    string
	MarginLeft      string
	MarginRight     string
	PrintBackground bool
}

// Quiescence bounds the wait for network idle during page load.
type Quiescence struct {
	IdleWindow time.Duration
	Timeout    time.Duration
}

// EngineHandle is one running rendering engine plus its control connection.
// A handle is owned by exactly one request and must be closed exactly once.
type EngineHandle interface {
	OpenPage(ctx context.Context) (PageContext, error)
	Close() error
}

// PageContext is the single page opened on a handle.
type PageContext interface {
	SetViewport(ctx context.Context, vp Viewport) error
	// Load sets the document content and blocks until the page has had no
	// in-flight network requests for idle.IdleWindow. It returns when ctx is
	// done.
	Load(ctx context.Context, shell DocumentShell, idle Quiescence) error
	Screenshot(ctx context.Context) ([]byte, error)
	PrintPDF(ctx context.Context, layout PDFLayout) ([]byte, error)
	Close() error
}

// Acquirer starts an engine for the given profile.
type Acquirer interface {
	Acquire(ctx context.Context, profile EnvironmentProfile) (EngineHandle, error)
}

// AcquirerFunc adapts a function to an Acquirer.
type AcquirerFunc func(ctx context.Context, profile EnvironmentProfile) (EngineHandle, error)

func (f AcquirerFunc) Acquire(ctx context.Context, profile EnvironmentProfile) (EngineHandle, error) {
	if f == nil {
		return nil, NewError(KindAcquisition, "acquirer func is nil", nil)
	}
	return f(ctx, profile)
}

// Exporter runs a render request to completion.
type Exporter interface {
	Export(ctx context.Context, req RenderRequest) (Artifact, error)
}

// Sanitizer cleans caller markup before assembly.
type Sanitizer interface {
	Sanitize(markup string) string
}

// StateObserver receives pipeline state transitions.
type StateObserver interface {
	OnTransition(ctx context.Context, runID string, from, to PipelineState)
}

// Logger is the logging contract used across the module.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// RunState is the terminal outcome stored in history.
type RunState string

const (
	RunDone   RunState = "done"
	RunFailed RunState = "failed"
)

// RenderRecord captures one pipeline run.
type RenderRecord struct {
	ID          string        `json:"id"`
	Mode        Mode          `json:"mode"`
	Profile     ProfileClass  `json:"profile"`
	State       RunState      `json:"state"`
	ErrorKind   ErrorKind     `json:"error_kind,omitempty"`
	Bytes       int64         `json:"bytes"`
	Filename    string        `json:"filename,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// HistoryFilter narrows history listings.
type HistoryFilter struct {
	Mode  Mode
	State RunState
	Since time.Time
	Limit int
}

// HistoryStore persists render records.
type HistoryStore interface {
	Record(ctx context.Context, record RenderRecord) error
	List(ctx context.Context, filter HistoryFilter) ([]RenderRecord, error)
}
