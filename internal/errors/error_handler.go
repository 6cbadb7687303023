package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"
)

// internalMessage is the only text a client sees for a 500.
const internalMessage = "internal server error"

// Handler writes error responses and logs them.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger,
	}
}

// Body builds the JSON body for err. Details are merged at the top level so
// clients can read fields such as valid_conditions directly. Causes are only
// logged, never rendered.
func Body(err error, requestID string) map[string]interface{} {
	body := map[string]interface{}{}

	var e *Error
	ok := stderrors.As(err, &e)

	if !ok || e.Code == ErrorCodeInternal {
		body["error"] = internalMessage
		body["error_code"] = ErrorCodeInternal
	} else {
		for k, v := range e.Details {
			body[k] = v
		}
		body["error"] = e.Message
		body["error_code"] = e.Code
	}

	if requestID != "" {
		body["request_id"] = requestID
	}
	return body
}

// HandleError maps err to a status code and writes the response.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := HTTPStatus(err)
	requestID := r.Header.Get("X-Request-ID")

	if statusCode >= http.StatusInternalServerError && CodeOf(err) == ErrorCodeInternal {
		h.logger.Error("internal error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
		)
	} else {
		h.logger.Warn("HTTP error response",
			zap.Int("status_code", statusCode),
			zap.String("error_code", string(CodeOf(err))),
			zap.String("message", err.Error()),
			zap.String("request_id", requestID),
		)
	}

	h.write(w, statusCode, Body(err, requestID))
}

// WriteValidationError writes a 400 with the given message.
func (h *Handler) WriteValidationError(w http.ResponseWriter, r *http.Request, message string) {
	h.HandleError(w, r, InvalidRequest(message, nil))
}

// WriteNotFound writes a 404 with the given message.
func (h *Handler) WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	h.HandleError(w, r, NotFound(message))
}

func (h *Handler) write(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
