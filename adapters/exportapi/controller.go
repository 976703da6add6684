package exportapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-calexport/export"
	errorslib "github.com/goliatone/go-errors"
)

// DefaultBasePath is where the export routes are mounted.
const DefaultBasePath = "/api/export"

// History listing bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// SuggestedFilenameHeader carries the date-stamped download name.
const SuggestedFilenameHeader = "X-Suggested-Filename"

// Config configures the shared export API controller.
type Config struct {
	Exporter       export.Exporter
	History        export.HistoryStore
	BasePath       string
	MaxBodyBytes   int64
	RequestDecoder RequestDecoder
	Logger         export.Logger
}

// Controller exposes the calendar export handlers for multiple transports.
type Controller struct {
	exporter       export.Exporter
	history        export.HistoryStore
	basePath       string
	requestDecoder RequestDecoder
	logger         export.Logger
}

// NewController creates a shared export API controller.
func NewController(cfg Config) *Controller {
	basePath := strings.TrimRight(cfg.BasePath, "/")
	if basePath == "" {
		basePath = DefaultBasePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = export.NopLogger{}
	}
	decoder := cfg.RequestDecoder
	if decoder == nil {
		decoder = JSONRequestDecoder{MaxBodyBytes: cfg.MaxBodyBytes}
	}
	return &Controller{
		exporter:       cfg.Exporter,
		history:        cfg.History,
		basePath:       basePath,
		requestDecoder: decoder,
		logger:         logger,
	}
}

// BasePath returns the configured base path.
func (c *Controller) BasePath() string {
	if c == nil {
		return ""
	}
	return c.basePath
}

// Serve routes export endpoints.
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil {
		WriteError(res, export.NewError(export.KindInternal, "handler is nil", nil), "")
		return
	}
	if req == nil {
		WriteError(res, export.NewError(export.KindInternal, "request is nil", nil), "")
		return
	}
	if !strings.HasPrefix(req.Path(), c.basePath) {
		writeNotFound(res)
		return
	}

	suffix := strings.Trim(strings.TrimPrefix(req.Path(), c.basePath), "/")
	switch {
	case req.Method() == http.MethodPost && suffix == string(export.ModeImage):
		c.handleRender(req, res, export.ModeImage)
	case req.Method() == http.MethodPost && suffix == string(export.ModePDF):
		c.handleRender(req, res, export.ModePDF)
	case req.Method() == http.MethodGet && suffix == "history" && c.history != nil:
		c.handleHistory(req, res)
	default:
		writeNotFound(res)
	}
}

func (c *Controller) handleRender(req Request, res Response, mode export.Mode) {
	if c.exporter == nil {
		WriteError(res, export.NewError(export.KindInternal, "exporter not configured", nil), mode)
		return
	}
	decoded, err := c.requestDecoder.Decode(req, mode)
	if err != nil {
		WriteError(res, err, mode)
		return
	}
	if err := decoded.Validate(); err != nil {
		WriteError(res, err, mode)
		return
	}

	artifact, err := c.exporter.Export(req.Context(), decoded)
	if err != nil {
		if !export.IsKind(err, export.KindValidation) {
			c.logger.Errorf("%s export request failed: %v", mode, err)
		}
		WriteError(res, err, mode)
		return
	}

	setDownloadHeaders(res, artifact, mode)
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(artifact.Bytes); err != nil {
		c.logger.Errorf("%s export response write failed: %v", mode, err)
	}
}

func (c *Controller) handleHistory(req Request, res Response) {
	filter, err := parseHistoryFilter(req)
	if err != nil {
		WriteError(res, err, "")
		return
	}
	records, err := c.history.List(req.Context(), filter)
	if err != nil {
		c.logger.Errorf("history listing failed: %v", err)
		writeJSON(res, http.StatusInternalServerError, ErrorResponse{Error: "Failed to load export history"})
		return
	}
	if records == nil {
		records = []export.RenderRecord{}
	}
	writeJSON(res, http.StatusOK, HistoryResponse{Records: records})
}

func writeNotFound(res Response) {
	res.SetHeader("Content-Type", "text/plain; charset=utf-8")
	res.SetHeader("X-Content-Type-Options", "nosniff")
	res.WriteHeader(http.StatusNotFound)
	_, _ = res.Write([]byte("404 page not found\n"))
}

// WriteError writes the JSON error body for err. Only validation messages
// are passed through; everything else gets the generic message for mode.
func WriteError(res Response, err error, mode export.Mode) {
	if err == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	ge := export.AsGoError(err)
	status := StatusForError(ge)
	message := export.UserMessage(err, mode)
	if status == http.StatusBadRequest && ge.Message != "" {
		message = ge.Message
	}
	writeJSON(res, status, ErrorResponse{Error: message})
}

func writeJSON(res Response, status int, payload any) {
	_ = res.WriteJSON(status, payload)
}

// StatusForError maps validation to 400 and every other failure to 500.
func StatusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if err.Category == errorslib.CategoryValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func setDownloadHeaders(res Response, artifact export.Artifact, mode export.Mode) {
	contentType := artifact.MediaType
	if contentType == "" {
		contentType = mode.MediaType()
	}
	res.SetHeader("Content-Type", contentType)
	res.SetHeader("Content-Disposition", "attachment; filename="+export.DispositionFilename(mode))
	res.SetHeader("Content-Length", strconv.Itoa(len(artifact.Bytes)))
	res.SetHeader("Cache-Control", "no-store")
	if name := sanitizeFilename(artifact.Filename); name != "" {
		res.SetHeader(SuggestedFilenameHeader, name)
	}
}

func sanitizeFilename(filename string) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}

func parseHistoryFilter(req Request) (export.HistoryFilter, error) {
	filter := export.HistoryFilter{Limit: DefaultHistoryLimit}
	if mode := export.Mode(strings.TrimSpace(req.Query("mode"))); mode != "" {
		if !mode.Valid() {
			return export.HistoryFilter{}, export.NewError(export.KindValidation, "invalid mode filter", nil)
		}
		filter.Mode = mode
	}
	switch state := export.RunState(strings.TrimSpace(req.Query("state"))); state {
	case "":
	case export.RunDone, export.RunFailed:
		filter.State = state
	default:
		return export.HistoryFilter{}, export.NewError(export.KindValidation, "invalid state filter", nil)
	}
	if since := req.Query("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return export.HistoryFilter{}, export.NewError(export.KindValidation, "invalid since timestamp", err)
		}
		filter.Since = ts
	}
	if raw := req.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return export.HistoryFilter{}, export.NewError(export.KindValidation, "invalid limit", err)
		}
		if limit > MaxHistoryLimit {
			limit = MaxHistoryLimit
		}
		filter.Limit = limit
	}
	return filter, nil
}
