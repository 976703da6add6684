package exportapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/goliatone/go-calexport/export"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 8 * 1024 * 1024

// Request provides minimal request access for transport adapters.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	Header(name string) string
	Query(name string) string
	Body() io.ReadCloser
}

// RequestDecoder parses a transport request into a render request for mode.
type RequestDecoder interface {
	Decode(req Request, mode export.Mode) (export.RenderRequest, error)
}

// JSONRequestDecoder decodes `{"html": "..."}` bodies.
type JSONRequestDecoder struct {
	MaxBodyBytes int64
}

type requestPayload struct {
	HTML string `json:"html"`
}

// Decode decodes a JSON request body into a render request. Markup is not
// validated here.
func (d JSONRequestDecoder) Decode(req Request, mode export.Mode) (export.RenderRequest, error) {
	if req == nil {
		return export.RenderRequest{}, export.NewError(export.KindInternal, "request is nil", nil)
	}
	body := req.Body()
	if body == nil {
		return export.RenderRequest{}, export.NewError(export.KindValidation, "request body is required", nil)
	}
	defer body.Close()

	limit := d.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return export.RenderRequest{}, export.NewError(export.KindValidation, "invalid request payload", err)
	}
	if int64(len(data)) > limit {
		return export.RenderRequest{}, export.NewError(export.KindValidation, "request body too large", nil)
	}
	if len(data) == 0 {
		return export.RenderRequest{}, export.NewError(export.KindValidation, "HTML content is required", nil)
	}

	var payload requestPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "html" {
			return export.RenderRequest{}, export.NewError(export.KindValidation, "HTML content is required", err)
		}
		return export.RenderRequest{}, export.NewError(export.KindValidation, "invalid request payload", err)
	}
	return export.RenderRequest{Markup: payload.HTML, Mode: mode}, nil
}
