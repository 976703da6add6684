package command

import (
	"strings"

	"github.com/goliatone/go-calexport/export"
	"github.com/goliatone/go-errors"
)

// ExportCalendar renders a calendar fragment to PNG or PDF.
type ExportCalendar struct {
	Markup string
	Mode   export.Mode
	Result *export.Artifact
}

func (ExportCalendar) Type() string { return "calendar:export" }

func (msg ExportCalendar) Validate() error {
	if strings.TrimSpace(msg.Markup) == "" {
		return errors.New("HTML content is required", errors.CategoryValidation).
			WithTextCode("HTML_REQUIRED")
	}
	if !msg.Mode.Valid() {
		return errors.New("unsupported render mode: "+string(msg.Mode), errors.CategoryValidation).
			WithTextCode("MODE_INVALID")
	}
	return nil
}
