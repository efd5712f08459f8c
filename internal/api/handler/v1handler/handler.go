// Package v1handler implements the version 1 HTTP endpoints of the decision service.
package v1handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"urlrisk/internal/decision"
	"urlrisk/pkg/logger"
	"urlrisk/pkg/serrors"
)

// Deps are the collaborators of the v1 handlers.
type Deps struct {
	Engine decision.Engine
}

type Handler struct {
	deps Deps
}

func New(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// Register mounts the v1 routes on mux.
func (h Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluate", h.Evaluate)
	// path served by earlier releases
	mux.HandleFunc("POST /predict", h.Evaluate)
	mux.HandleFunc("GET /v1/info", h.Info)
	mux.HandleFunc("GET /{$}", h.Info)
	mux.HandleFunc("GET /healthz", h.Healthz)
}

// ErrorResponse is the JSON error body together with its HTTP status.
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// NewError maps err to an HTTP status and a client-safe message. Errors
// without a client-facing kind are logged and reported as internal errors.
func (h Handler) NewError(ctx context.Context, err error) *ErrorResponse {
	status := serrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error(ctx, "request failed", zap.Error(err))

		return &ErrorResponse{
			StatusCode: status,
			Code:       serrors.ErrInternal.Error(),
			Message:    "internal error",
		}
	}

	logger.Warn(ctx, "request rejected", zap.Error(err))

	return &ErrorResponse{
		StatusCode: status,
		Code:       serrors.StatusOf(err).Error(),
		Message:    errorMessage(err, status),
	}
}

func errorMessage(err error, status int) string {
	var se *serrors.Error
	if errors.As(err, &se) && se.Message() != "" {
		return se.Message()
	}

	switch status {
	case http.StatusBadRequest:
		return "bad request"
	case http.StatusNotFound:
		return "resource not found"
	case http.StatusGatewayTimeout:
		return "request timed out"
	case http.StatusServiceUnavailable:
		return "service unavailable"
	default:
		return http.StatusText(status)
	}
}

func (h Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	res := h.NewError(r.Context(), err)
	writeJSON(w, res.StatusCode, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(res.Code) })
			e.Field("message", func(e *jx.Encoder) { e.Str(res.Message) })
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encode(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
