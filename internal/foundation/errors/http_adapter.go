package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

var statusCodes = map[ErrorCategory]int{
	CategoryValidation:  http.StatusBadRequest,
	CategoryConfig:      http.StatusBadRequest,
	CategoryNotFound:    http.StatusNotFound,
	CategoryNotUnique:   http.StatusConflict,
	CategoryInterpreter: http.StatusUnprocessableEntity,
	CategoryTimeout:     http.StatusGatewayTimeout,
}

// HTTPErrorResponse is the JSON body of an error reply.
type HTTPErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HTTPErrorAdapter writes classified errors as JSON replies.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter returns an adapter logging to logger, or slog.Default when nil.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// StatusCodeFor maps err to an HTTP status. Unclassified errors are 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if c, ok := AsClassified(err); ok {
		if status, ok := statusCodes[c.category]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// FormatErrorResponse builds the reply body. Error holds the undecorated
// message so clients can show it verbatim.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{}
	}
	c, ok := AsClassified(err)
	if !ok {
		return HTTPErrorResponse{Error: err.Error()}
	}
	resp := HTTPErrorResponse{Error: MessageOf(c), Code: string(c.category)}
	if len(c.context) > 0 {
		resp.Details = map[string]any(c.context)
	}
	return resp
}

// WriteErrorResponse writes err as a JSON reply. Server-side failures are
// logged at error level, client mistakes at debug.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := a.StatusCodeFor(err)
	body, jerr := json.Marshal(a.FormatErrorResponse(err))
	if jerr != nil {
		body = []byte(`{"error":"internal error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	a.logger.Log(r.Context(), level, "Request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", MessageOf(err)))
}

// FromResponse rebuilds a classified error from a decoded reply. A missing
// code falls back to CategoryRuntime.
func FromResponse(resp HTTPErrorResponse) *ClassifiedError {
	category := ErrorCategory(resp.Code)
	if category == "" {
		category = CategoryRuntime
	}
	b := NewError(category, resp.Error)
	for k, v := range resp.Details {
		b.WithContext(k, v)
	}
	return b.Build()
}
