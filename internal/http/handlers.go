package http

import (
	"errors"
	"net/http"
	"strconv"

	"presupuesto/internal/core"
	"presupuesto/internal/ledger"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ready(r.Context()); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		ServiceUnavailableError(err.Error()).Write(w)
		return
	}
	NewResponse().JSON(map[string]any{
		"status":  "ready",
		"version": s.ledger.Version(),
	}).Write(w)
}

// parseBody reads the request body, writing a 400 when it is unusable.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
			return nil, false
		}
		BadRequestError("malformed request body: " + err.Error()).Write(w)
		return nil, false
	}
	return p, true
}

// pathID reads the {id} wildcard, writing a 400 when it is not an integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		BadRequestError("invalid expense id " + strconv.Quote(raw)).Write(w)
		return 0, false
	}
	return id, true
}

// writeServiceError maps ledger errors to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrExpenseNotFound):
		NotFoundError(err.Error()).Write(w)
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, ledger.ErrInvalidSnapshot):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Ledger operation failed", err, op, nil)
		InternalServerError("internal error").Write(w)
	}
}
