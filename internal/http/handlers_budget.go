package http

import (
	"net/http"

	"presupuesto/internal/log"
)

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.ledger.Summary(r.Context())).Write(w)
}

// handleSetBudget accepts {"value": ...} or value=... and answers with the
// updated summary.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	summary, err := s.ledger.SetBudget(r.Context(), p.Value("value"))
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(summary).Write(w)
}
