package export

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines export error kinds.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindAcquisition ErrorKind = "acquisition"
	KindRender      ErrorKind = "render"
	KindTeardown    ErrorKind = "teardown"
	KindTimeout     ErrorKind = "timeout"
	KindCanceled    ErrorKind = "canceled"
	KindInternal    ErrorKind = "internal"
)

// ExportError wraps errors with a kind.
type ExportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewError creates a new export error.
func NewError(kind ErrorKind, msg string, err error) *ExportError {
	return &ExportError{Kind: kind, Msg: msg, Err: err}
}

// KindFromError maps an error to its export error kind. The outermost
// ExportError wins, so a render failure caused by a deadline stays a render
// failure.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	return KindInternal
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindFromError(err) == kind
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	kind := KindFromError(err)
	msg := err.Error()

	var exportErr *ExportError
	if errors.As(err, &exportErr) && exportErr.Msg != "" {
		msg = exportErr.Msg
	}

	switch kind {
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindAcquisition:
		return errorslib.New(msg, errorslib.CategoryExternal).WithTextCode("acquisition")
	case KindRender:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("render")
	case KindTeardown:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("teardown")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// UserMessage returns the stable, user-safe message for a failed export.
// Engine diagnostics never leave the server.
func UserMessage(err error, mode Mode) string {
	if KindFromError(err) == KindValidation {
		return "HTML content is required"
	}
	switch mode {
	case ModeImage:
		return "Failed to export image"
	case ModePDF:
		return "Failed to export PDF"
	default:
		return "Failed to export calendar"
	}
}

// classify wraps err with kind unless it already carries a pipeline kind.
func classify(kind ErrorKind, msg string, err error) error {
	if err == nil {
		return nil
	}
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		switch exportErr.Kind {
		case KindAcquisition, KindRender, KindValidation, KindInternal:
			return err
		}
	}
	return NewError(kind, msg, err)
}
