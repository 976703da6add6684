package exportchromium

import (
	"context"
	"errors"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-calexport/export"
)

// handle owns one browser and its allocator.
type handle struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        export.Logger

	closeOnce sync.Once
	closeErr  error
}

var _ export.EngineHandle = (*handle)(nil)

// OpenPage creates a new tab on the browser.
func (h *handle) OpenPage(ctx context.Context) (export.PageContext, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.browserCtx.Err(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(h.browserCtx)
	p := &page{
		tabCtx:    tabCtx,
		tabCancel: tabCancel,
		idle:      newNetworkIdle(),
		logger:    h.logger,
	}
	chromedp.ListenTarget(tabCtx, p.idle.observe)

	// The first Run on the tab context creates the target. It must not run on
	// a derived context or the target would close with it.
	opened := make(chan error, 1)
	go func() {
		opened <- chromedp.Run(tabCtx)
	}()
	select {
	case err := <-opened:
		if err != nil {
			_ = p.Close()
			return nil, err
		}
	case <-ctx.Done():
		_ = p.Close()
		return nil, ctx.Err()
	}
	return p, nil
}

// Close stops the browser. Only the first call has any effect.
func (h *handle) Close() error {
	h.closeOnce.Do(func() {
		if h.browserCtx != nil {
			if err := chromedp.Cancel(h.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
				h.closeErr = err
			}
		}
		if h.browserCancel != nil {
			h.browserCancel()
		}
		if h.allocCancel != nil {
			h.allocCancel()
		}
	})
	return h.closeErr
}
