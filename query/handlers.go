package query

import (
	"context"

	"github.com/goliatone/go-calexport/export"
	"github.com/goliatone/go-errors"
)

// RenderHistoryHandler lists render records from a history store.
type RenderHistoryHandler struct {
	History export.HistoryStore
}

func NewRenderHistoryHandler(history export.HistoryStore) *RenderHistoryHandler {
	return &RenderHistoryHandler{History: history}
}

func (h *RenderHistoryHandler) Query(ctx context.Context, msg RenderHistory) ([]export.RenderRecord, error) {
	if h == nil || h.History == nil {
		return nil, errors.New("history store is required", errors.CategoryInternal).
			WithTextCode("HISTORY_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return h.History.List(ctx, msg.Filter)
}
