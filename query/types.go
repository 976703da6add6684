package query

import (
	"github.com/goliatone/go-calexport/export"
	"github.com/goliatone/go-errors"
)

// RenderHistory requests past render records.
type RenderHistory struct {
	Filter export.HistoryFilter
}

func (RenderHistory) Type() string { return "calendar:history" }

func (msg RenderHistory) Validate() error {
	if msg.Filter.Mode != "" && !msg.Filter.Mode.Valid() {
		return errors.New("invalid mode filter", errors.CategoryValidation).
			WithTextCode("MODE_INVALID")
	}
	switch msg.Filter.State {
	case "", export.RunDone, export.RunFailed:
	default:
		return errors.New("invalid state filter", errors.CategoryValidation).
			WithTextCode("STATE_INVALID")
	}
	if msg.Filter.Limit < 0 {
		return errors.New("limit must not be negative", errors.CategoryValidation).
			WithTextCode("LIMIT_INVALID")
	}
	return nil
}
