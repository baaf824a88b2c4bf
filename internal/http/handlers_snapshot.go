package http

import (
	"encoding/json"
	"net/http"

	"presupuesto/internal/ledger"
	"presupuesto/internal/log"
)

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.ledger.Snapshot(r.Context())).Write(w)
}

// handleRestoreSnapshot replaces the whole ledger. The body must be a
// snapshot document; an inconsistent one leaves the ledger untouched.
func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil || !p.IsJSON() {
		BadRequestError("snapshot body must be a JSON object").Write(w)
		return
	}

	var snap ledger.Snapshot
	if err := json.Unmarshal(p.GetRaw(), &snap); err != nil {
		BadRequestError("malformed snapshot: " + err.Error()).Write(w)
		return
	}
	if err := s.ledger.Restore(r.Context(), snap); err != nil {
		s.writeServiceError(w, r, log.OpRestore, err)
		return
	}
	NewResponse().JSON(s.ledger.Summary(r.Context())).Write(w)
}
