package exportapi

import (
	"github.com/goliatone/go-calexport/export"
)

// Response provides a minimal response interface for transport adapters.
type Response interface {
	SetHeader(name, value string)
	WriteHeader(status int)
	Write(data []byte) (int, error)
	WriteJSON(status int, payload any) error
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryResponse lists render records.
type HistoryResponse struct {
	Records []export.RenderRecord `json:"records"`
}
