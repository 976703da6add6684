package exportchromium

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/goliatone/go-calexport/export"
)

func chromeBinaryPath(t *testing.T) string {
	t.Helper()

	chromePath := os.Getenv("CHROME_BIN")
	if chromePath == "" {
		paths := []string{"google-chrome", "chromium", "chromium-browser"}
		for _, candidate := range paths {
			if path, err := exec.LookPath(candidate); err == nil {
				chromePath = path
				break
			}
		}
	}
	if chromePath == "" {
		t.Skip("chromium binary not found; set CHROME_BIN to run this test")
	}

	return chromePath
}

func TestParseLengthInches(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{input: "1in", want: 1},
		{input: "25.4mm", want: 1},
		{input: "2.54cm", want: 1},
		{input: "72pt", want: 1},
		{input: "96px", want: 1},
		{input: "20px", want: 20.0 / 96.0},
		{input: "48", want: 0.5},
	}

	for _, tc := range tests {
		got, err := parseLengthInches(tc.input)
		if err != nil {
			t.Fatalf("parseLengthInches(%q): %v", tc.input, err)
		}
		if diff := got - tc.want; diff > 0.0001 || diff < -0.0001 {
			t.Fatalf("parseLengthInches(%q): expected %f, got %f", tc.input, tc.want, got)
		}
	}

	if _, err := parseLengthInches("10em"); err == nil {
		t.Fatalf("expected unsupported unit error")
	}
}

func TestBuildPrintToPDFParams_DefaultLayout(t *testing.T) {
	params, err := buildPrintToPDFParams(export.DefaultPDFLayout())
	if err != nil {
		t.Fatalf("buildPrintToPDFParams: %v", err)
	}
	if params.PaperWidth != 8.27 || params.PaperHeight != 11.69 {
		t.Fatalf("expected A4 paper, got width=%f height=%f", params.PaperWidth, params.PaperHeight)
	}
	if !params.Landscape {
		t.Fatalf("expected landscape")
	}
	if !params.PrintBackground {
		t.Fatalf("expected print background true")
	}
	want := 20.0 / 96.0
	for name, got := range map[string]float64{
		"top":    params.MarginTop,
		"bottom": params.MarginBottom,
		"left":   params.MarginLeft,
		"right":  params.MarginRight,
	} {
		if diff := got - want; diff > 0.0001 || diff < -0.0001 {
			t.Fatalf("expected %s margin %f, got %f", name, want, got)
		}
	}
}

func TestBuildPrintToPDFParams_UnknownPageSize(t *testing.T) {
	layout := export.DefaultPDFLayout()
	layout.PageSize = "B9"
	if _, err := buildPrintToPDFParams(layout); err == nil {
		t.Fatalf("expected page size error")
	}
}

func TestResolveBundledExecutable(t *testing.T) {
	dir := t.TempDir()

	if _, err := ResolveBundledExecutable(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := ResolveBundledExecutable(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ResolveBundledExecutable(plain); err == nil {
		t.Fatalf("expected error for non-executable file")
	}

	bin := filepath.Join(dir, "chromium")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ResolveBundledExecutable(bin)
	if err != nil || got != bin {
		t.Fatalf("expected %s, got %q (%v)", bin, got, err)
	}

	got, err = ResolveBundledExecutable(dir)
	if err != nil || got != bin {
		t.Fatalf("expected bundle dir to resolve to %s, got %q (%v)", bin, got, err)
	}

	empty := t.TempDir()
	if _, err := ResolveBundledExecutable(empty); err == nil {
		t.Fatalf("expected error for bundle without binary")
	}
}

func TestAcquireRejectsUnusableProfiles(t *testing.T) {
	acq := NewAcquirer()
	acq.BundlePath = filepath.Join(t.TempDir(), "missing")

	cases := []export.EnvironmentProfile{
		{Class: export.ProfileConstrained, Markers: []string{"AWS_REGION"}},
		{Class: export.ProfileRemote},
		{Class: export.ProfileClass("lambda")},
	}
	for _, profile := range cases {
		handle, err := acq.Acquire(context.Background(), profile)
		if handle != nil {
			t.Fatalf("expected no handle for %s", profile.Class)
		}
		if !export.IsKind(err, export.KindAcquisition) {
			t.Fatalf("expected acquisition error for %s, got %v", profile.Class, err)
		}
	}
}

func TestAcquireMissingLocalBrowser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping launch failure test in short mode")
	}
	acq := NewAcquirer()
	acq.BrowserPath = filepath.Join(t.TempDir(), "no-such-chrome")
	acq.LaunchTimeout = 5 * time.Second

	handle, err := acq.Acquire(context.Background(), export.EnvironmentProfile{Class: export.ProfileLocal})
	if handle != nil {
		t.Fatalf("expected no handle")
	}
	if !export.IsKind(err, export.KindAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
}

func TestNetworkIdleTracksRequests(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	idle := newNetworkIdle()
	idle.now = func() time.Time { return now }
	idle.reset()

	idle.observe(&network.EventRequestWillBeSent{RequestID: "1", Request: &network.Request{URL: "https://cdn.example/font.woff"}})
	idle.observe(&network.EventRequestWillBeSent{RequestID: "2", Request: &network.Request{URL: "data:image/png;base64,AAAA"}})
	now = now.Add(time.Second)
	if idle.quiet(500 * time.Millisecond) {
		t.Fatalf("expected busy while a request is in flight")
	}

	idle.observe(&network.EventLoadingFinished{RequestID: "1"})
	if idle.quiet(500 * time.Millisecond) {
		t.Fatalf("expected idle window to restart after the last request")
	}
	now = now.Add(500 * time.Millisecond)
	if !idle.quiet(500 * time.Millisecond) {
		t.Fatalf("expected quiet after idle window")
	}

	idle.observe(&network.EventRequestWillBeSent{RequestID: "3", Request: &network.Request{URL: "https://cdn.example/x.png"}})
	idle.observe(&network.EventLoadingFailed{RequestID: "3"})
	now = now.Add(time.Second)
	if !idle.quiet(500 * time.Millisecond) {
		t.Fatalf("expected failed request to count as finished")
	}
}

func TestNetworkIdleWaitHonorsContext(t *testing.T) {
	idle := newNetworkIdle()
	idle.started("perpetual")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := idle.wait(ctx, 10*time.Millisecond); err == nil {
		t.Fatalf("expected context error for perpetual request")
	}
}

func newLocalAcquirer(t *testing.T) *Acquirer {
	t.Helper()
	acq := NewAcquirer()
	acq.BrowserPath = chromeBinaryPath(t)
	acq.Args = []string{"--no-sandbox", "--disable-dev-shm-usage"}
	acq.LaunchTimeout = 20 * time.Second
	return acq
}

func TestPipeline_ChromiumSmoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium smoke test in short mode")
	}
	acq := newLocalAcquirer(t)

	pipeline := export.NewPipeline(acq)
	pipeline.Profiles = export.StaticProfile{Class: export.ProfileLocal}
	pipeline.Dispatcher.QuiescenceTimeout = 15 * time.Second

	markup := `<div class="card"><table><tr><th>Mon</th><th>Tue</th></tr><tr><td><div class="event" style="background-color: #dbeafe">Standup</div></td><td></td></tr></table></div>`

	png, err := pipeline.Export(context.Background(), export.RenderRequest{Markup: markup, Mode: export.ModeImage})
	if err != nil {
		t.Fatalf("image export: %v", err)
	}
	if !bytes.HasPrefix(png.Bytes, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("expected png output")
	}

	pdf, err := pipeline.Export(context.Background(), export.RenderRequest{Markup: markup, Mode: export.ModePDF})
	if err != nil {
		t.Fatalf("pdf export: %v", err)
	}
	if len(pdf.Bytes) < 5 || string(pdf.Bytes[:5]) != "%PDF-" {
		t.Fatalf("expected pdf output")
	}
}

func TestHandle_WaitsForNetworkIdle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium network idle test in short mode")
	}
	acq := newLocalAcquirer(t)

	var served atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		served.Add(1)
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte("body { color: black; }"))
	}))
	defer server.Close()

	handle, err := acq.Acquire(context.Background(), export.EnvironmentProfile{Class: export.ProfileLocal})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer func() {
		if err := handle.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if err := handle.Close(); err != nil {
			t.Fatalf("second close: %v", err)
		}
	}()

	page, err := handle.OpenPage(context.Background())
	if err != nil {
		t.Fatalf("open page: %v", err)
	}
	defer page.Close()

	shell, err := export.Assemble(`<link rel="stylesheet" href="` + server.URL + `/slow.css"><div>x</div>`)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := page.Load(ctx, shell, export.Quiescence{IdleWindow: 200 * time.Millisecond, Timeout: 10 * time.Second}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if served.Load() == 0 {
		t.Fatalf("expected load to wait for the slow stylesheet")
	}
}
