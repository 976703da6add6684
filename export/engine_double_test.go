package export

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	testPNG = append([]byte("\x89PNG\r\n\x1a\n"), []byte("fake-image-data")...)
	testPDF = []byte("%PDF-1.7\nfake-pdf-data\n%%EOF")
)

type fakeAcquirer struct {
	acquireErr error
	page       *fakePage
	openErr    error
	closeErr   error

	acquired atomic.Int32
	closed   atomic.Int32

	mu       sync.Mutex
	profiles []EnvironmentProfile
}

func (a *fakeAcquirer) Acquire(ctx context.Context, profile EnvironmentProfile) (EngineHandle, error) {
	_ = ctx
	a.mu.Lock()
	a.profiles = append(a.profiles, profile)
	a.mu.Unlock()
	if a.acquireErr != nil {
		return nil, a.acquireErr
	}
	a.acquired.Add(1)
	page := a.page
	if page == nil {
		page = &fakePage{}
	}
	return &fakeHandle{owner: a, page: page}, nil
}

type fakeHandle struct {
	owner  *fakeAcquirer
	page   *fakePage
	opened atomic.Int32
}

func (h *fakeHandle) OpenPage(ctx context.Context) (PageContext, error) {
	_ = ctx
	h.opened.Add(1)
	if h.owner.openErr != nil {
		return nil, h.owner.openErr
	}
	return h.page, nil
}

func (h *fakeHandle) Close() error {
	h.owner.closed.Add(1)
	return h.owner.closeErr
}

type fakePage struct {
	viewportErr   error
	loadErr       error
	hang          bool
	screenshot    []byte
	screenshotErr error
	panicValue    any
	pdf           []byte
	pdfErr        error

	mu        sync.Mutex
	viewports []Viewport
	shells    []DocumentShell
	layouts   []PDFLayout
	idle      []Quiescence
	closes    int
}

func (p *fakePage) SetViewport(ctx context.Context, vp Viewport) error {
	_ = ctx
	p.mu.Lock()
	p.viewports = append(p.viewports, vp)
	p.mu.Unlock()
	return p.viewportErr
}

func (p *fakePage) Load(ctx context.Context, shell DocumentShell, idle Quiescence) error {
	p.mu.Lock()
	p.shells = append(p.shells, shell)
	p.idle = append(p.idle, idle)
	p.mu.Unlock()
	if p.hang {
		// Perpetual network activity: quiescence is never reached.
		<-ctx.Done()
		return ctx.Err()
	}
	return p.loadErr
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	_ = ctx
	if p.panicValue != nil {
		panic(p.panicValue)
	}
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	if p.screenshot != nil {
		return p.screenshot, nil
	}
	return append([]byte(nil), testPNG...), nil
}

func (p *fakePage) PrintPDF(ctx context.Context, layout PDFLayout) ([]byte, error) {
	_ = ctx
	p.mu.Lock()
	p.layouts = append(p.layouts, layout)
	p.mu.Unlock()
	if p.pdfErr != nil {
		return nil, p.pdfErr
	}
	if p.pdf != nil {
		return p.pdf, nil
	}
	return append([]byte(nil), testPDF...), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	p.closes++
	p.mu.Unlock()
	return nil
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions [][2]PipelineState
}

func (o *recordingObserver) OnTransition(ctx context.Context, runID string, from, to PipelineState) {
	_ = ctx
	_ = runID
	o.mu.Lock()
	o.transitions = append(o.transitions, [2]PipelineState{from, to})
	o.mu.Unlock()
}

func (o *recordingObserver) states() []PipelineState {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []PipelineState{StateIdle}
	for _, tr := range o.transitions {
		out = append(out, tr[1])
	}
	return out
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

func (l *recordingLogger) Debugf(string, ...any) {}

func (l *recordingLogger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, format)
}

func (l *recordingLogger) Errorf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			l.errors = append(l.errors, err.Error())
			return
		}
	}
	l.errors = append(l.errors, format)
}

var errEngineCrashed = errors.New("target crashed")
