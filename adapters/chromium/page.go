package exportchromium

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-calexport/export"
)

const (
	defaultPDFScale = 1.0
	idlePollEvery   = 50 * time.Millisecond
	fullPageQuality = 100
)

var pdfLengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

var pdfPageSizesInches = map[string]struct {
	width  float64
	height float64
}{
	"A3":     {width: 11.69, height: 16.54},
	"A4":     {width: 8.27, height: 11.69},
	"A5":     {width: 5.83, height: 8.27},
	"LETTER": {width: 8.5, height: 11},
	"LEGAL":  {width: 8.5, height: 14},
}

// page is one browser tab.
type page struct {
	tabCtx    context.Context
	tabCancel context.CancelFunc
	idle      *networkIdle
	logger    export.Logger

	closeOnce sync.Once
}

var _ export.PageContext = (*page)(nil)

// run executes actions on the tab, cancelling them when ctx ends.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	if ctx == nil {
		ctx = context.Background()
	}
	execCtx, cancelReq := context.WithCancel(p.tabCtx)
	defer cancelReq()
	go func() {
		select {
		case <-ctx.Done():
			cancelReq()
		case <-execCtx.Done():
		}
	}()

	err := chromedp.Run(execCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *page) SetViewport(ctx context.Context, vp export.Viewport) error {
	return p.run(ctx, emulation.SetDeviceMetricsOverride(vp.Width, vp.Height, vp.DeviceScaleFactor, false))
}

// Load replaces the tab document with shell and waits for network idle.
func (p *page) Load(ctx context.Context, shell export.DocumentShell, quiet export.Quiescence) error {
	p.idle.reset()
	err := p.run(ctx,
		network.Enable(),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := cdppage.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return cdppage.SetDocumentContent(tree.Frame.ID, string(shell)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return err
	}
	return p.idle.wait(ctx, quiet.IdleWindow)
}

func (p *page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, fullPageQuality)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *page) PrintPDF(ctx context.Context, layout export.PDFLayout) ([]byte, error) {
	params, err := buildPrintToPDFParams(layout)
	if err != nil {
		return nil, err
	}
	var pdf []byte
	err = p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := params.Do(ctx)
		if err != nil {
			return err
		}
		pdf = data
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// Close closes the tab.
func (p *page) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if cerr := chromedp.Cancel(p.tabCtx); cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = cerr
		}
		p.tabCancel()
	})
	return err
}

// networkIdle counts in-flight requests on a tab.
type networkIdle struct {
	mu         sync.Mutex
	inflight   map[network.RequestID]struct{}
	lastChange time.Time
	now        func() time.Time
}

func newNetworkIdle() *networkIdle {
	return &networkIdle{
		inflight:   map[network.RequestID]struct{}{},
		lastChange: time.Now(),
		now:        time.Now,
	}
}

func (n *networkIdle) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inflight = map[network.RequestID]struct{}{}
	n.lastChange = n.now()
}

func (n *networkIdle) observe(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Request != nil && strings.HasPrefix(e.Request.URL, "data:") {
			return
		}
		n.started(e.RequestID)
	case *network.EventLoadingFinished:
		n.finished(e.RequestID)
	case *network.EventLoadingFailed:
		n.finished(e.RequestID)
	}
}

func (n *networkIdle) started(id network.RequestID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inflight[id] = struct{}{}
	n.lastChange = n.now()
}

func (n *networkIdle) finished(id network.RequestID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.inflight[id]; !ok {
		return
	}
	delete(n.inflight, id)
	n.lastChange = n.now()
}

// quiet reports whether nothing has been in flight for window.
func (n *networkIdle) quiet(window time.Duration) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.inflight) == 0 && n.now().Sub(n.lastChange) >= window
}

func (n *networkIdle) wait(ctx context.Context, window time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(idlePollEvery)
	defer ticker.Stop()
	for {
		if n.quiet(window) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func buildPrintToPDFParams(layout export.PDFLayout) (*cdppage.PrintToPDFParams, error) {
	params := cdppage.PrintToPDF().
		WithScale(defaultPDFScale).
		WithLandscape(layout.Landscape).
		WithPrintBackground(layout.PrintBackground)

	if layout.PageSize == "" {
		params = params.WithPreferCSSPageSize(true)
	} else {
		size, ok := pdfPageSizesInches[strings.ToUpper(layout.PageSize)]
		if !ok {
			return nil, export.NewError(export.KindRender, fmt.Sprintf("unsupported pdf page size: %s", layout.PageSize), nil)
		}
		params = params.WithPaperWidth(size.width).WithPaperHeight(size.height)
	}

	margins := []struct {
		value string
		apply func(float64) *cdppage.PrintToPDFParams
	}{
		{layout.MarginTop, func(v float64) *cdppage.PrintToPDFParams { return params.WithMarginTop(v) }},
		{layout.MarginBottom, func(v float64) *cdppage.PrintToPDFParams { return params.WithMarginBottom(v) }},
		{layout.MarginLeft, func(v float64) *cdppage.PrintToPDFParams { return params.WithMarginLeft(v) }},
		{layout.MarginRight, func(v float64) *cdppage.PrintToPDFParams { return params.WithMarginRight(v) }},
	}
	for _, margin := range margins {
		if margin.value == "" {
			continue
		}
		inches, err := parseLengthInches(margin.value)
		if err != nil {
			return nil, err
		}
		params = margin.apply(inches)
	}
	return params, nil
}

func parseLengthInches(value string) (float64, error) {
	matches := pdfLengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, export.NewError(export.KindRender, fmt.Sprintf("invalid pdf length: %s", value), nil)
	}

	raw := matches[1]
	unit := strings.ToLower(matches[2])
	if unit == "" {
		unit = "px"
	}

	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, export.NewError(export.KindRender, fmt.Sprintf("invalid pdf length: %s", value), err)
	}

	switch unit {
	case "in":
		return amount, nil
	case "cm":
		return amount / 2.54, nil
	case "mm":
		return amount / 25.4, nil
	case "pt":
		return amount / 72.0, nil
	case "px":
		return amount / 96.0, nil
	default:
		return 0, export.NewError(export.KindRender, fmt.Sprintf("unsupported pdf length unit: %s", unit), nil)
	}
}
