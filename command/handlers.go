package command

import (
	"context"

	"github.com/goliatone/go-calexport/export"
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
)

// ExportCalendarHandler runs ExportCalendar through an exporter.
type ExportCalendarHandler struct {
	Exporter export.Exporter
}

func NewExportCalendarHandler(exporter export.Exporter) *ExportCalendarHandler {
	return &ExportCalendarHandler{Exporter: exporter}
}

func (h *ExportCalendarHandler) Execute(ctx context.Context, msg ExportCalendar) error {
	if h == nil || h.Exporter == nil {
		return errors.New("exporter is required", errors.CategoryInternal).
			WithTextCode("EXPORTER_REQUIRED")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	artifact, err := h.Exporter.Export(ctx, export.RenderRequest{Markup: msg.Markup, Mode: msg.Mode})
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = artifact
	}
	if res := gcmd.ResultFromContext[export.Artifact](ctx); res != nil {
		res.Store(artifact)
	}
	return nil
}
