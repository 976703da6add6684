package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func renderWith(t *testing.T, d *Dispatcher, page *fakePage, mode Mode) (Artifact, *fakeHandle, error) {
	t.Helper()
	acq := &fakeAcquirer{page: page}
	handle, err := acq.Acquire(context.Background(), EnvironmentProfile{Class: ProfileLocal})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	shell, err := Assemble("<div>Event</div>")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	artifact, err := d.Render(context.Background(), handle, shell, mode)
	return artifact, handle.(*fakeHandle), err
}

func TestDispatcherViewportPerMode(t *testing.T) {
	d := NewDispatcher()

	if diff := cmp.Diff(Viewport{Width: 1200, Height: 800, DeviceScaleFactor: 2}, d.ViewportFor(ModeImage)); diff != "" {
		t.Fatalf("image viewport mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Viewport{Width: 1200, Height: 800, DeviceScaleFactor: 1}, d.ViewportFor(ModePDF)); diff != "" {
		t.Fatalf("pdf viewport mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatcherImageMode(t *testing.T) {
	page := &fakePage{}
	artifact, handle, err := renderWith(t, NewDispatcher(), page, ModeImage)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if artifact.MediaType != MediaTypePNG {
		t.Fatalf("expected png media type, got %q", artifact.MediaType)
	}
	if artifact.Filename != "" {
		t.Fatalf("expected dispatcher to leave filename empty, got %q", artifact.Filename)
	}
	if handle.opened.Load() != 1 {
		t.Fatalf("expected exactly one page, got %d", handle.opened.Load())
	}
	if page.closes != 1 {
		t.Fatalf("expected page closed once, got %d", page.closes)
	}
	if len(page.layouts) != 0 {
		t.Fatalf("expected no pdf pagination in image mode")
	}
	if len(page.idle) != 1 || page.idle[0].IdleWindow != DefaultIdleWindow {
		t.Fatalf("expected default quiescence, got %+v", page.idle)
	}
}

func TestDispatcherPDFMode(t *testing.T) {
	page := &fakePage{}
	artifact, _, err := renderWith(t, NewDispatcher(), page, ModePDF)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if artifact.MediaType != MediaTypePDF {
		t.Fatalf("expected pdf media type, got %q", artifact.MediaType)
	}
	if len(page.layouts) != 1 {
		t.Fatalf("expected one pdf print, got %d", len(page.layouts))
	}
	if diff := cmp.Diff(DefaultPDFLayout(), page.layouts[0]); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	layout := page.layouts[0]
	if layout.PageSize != "A4" || !layout.Landscape || layout.MarginTop != "20px" {
		t.Fatalf("expected A4 landscape with 20px margins, got %+v", layout)
	}
}

func TestDispatcherImageIsDeterministic(t *testing.T) {
	first, _, err := renderWith(t, NewDispatcher(), &fakePage{}, ModeImage)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, _, err := renderWith(t, NewDispatcher(), &fakePage{}, ModeImage)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("expected identical artifacts (-first +second):\n%s", diff)
	}
}

func TestDispatcherQuiescenceTimeout(t *testing.T) {
	d := NewDispatcher()
	d.QuiescenceTimeout = 20 * time.Millisecond
	page := &fakePage{hang: true}

	start := time.Now()
	_, _, err := renderWith(t, d, page, ModePDF)
	if !IsKind(err, KindRender) {
		t.Fatalf("expected render error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected bounded wait, took %s", elapsed)
	}
	if page.closes != 1 {
		t.Fatalf("expected page closed after timeout")
	}
}

func TestDispatcherFailures(t *testing.T) {
	cases := []struct {
		name string
		page *fakePage
		mode Mode
	}{
		{"viewport", &fakePage{viewportErr: errEngineCrashed}, ModeImage},
		{"load", &fakePage{loadErr: errEngineCrashed}, ModeImage},
		{"screenshot", &fakePage{screenshotErr: errEngineCrashed}, ModeImage},
		{"pdf", &fakePage{pdfErr: errEngineCrashed}, ModePDF},
		{"invalid png", &fakePage{screenshot: []byte("GIF89a")}, ModeImage},
		{"invalid pdf", &fakePage{pdf: []byte("<html>")}, ModePDF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := renderWith(t, NewDispatcher(), tc.page, tc.mode)
			if !IsKind(err, KindRender) {
				t.Fatalf("expected render error, got %v", err)
			}
			if tc.page.closes != 1 {
				t.Fatalf("expected page closed once, got %d", tc.page.closes)
			}
		})
	}
}

func TestDispatcherOpenPageFailure(t *testing.T) {
	acq := &fakeAcquirer{openErr: errEngineCrashed}
	handle, _ := acq.Acquire(context.Background(), EnvironmentProfile{})
	_, err := NewDispatcher().Render(context.Background(), handle, "<html></html>", ModeImage)
	if !IsKind(err, KindRender) {
		t.Fatalf("expected render error, got %v", err)
	}
}
