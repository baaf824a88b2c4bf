package http

import (
	"net/http"

	"presupuesto/internal/core"
	"presupuesto/internal/log"
)

// handleReport groups amounts by day, month or year. An unknown period is not
// an error: everything lands in the "" bucket.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := ParseReportRange(q)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	period := core.ParsePeriod(r.PathValue("period"))
	if !period.Valid() {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Report requested for unknown period", log.FieldPeriod, period)
	}

	report := s.ledger.Report(r.Context(), period, splitTagValues(q["tags"]), from, to)
	NewResponse().JSON(report).Write(w)
}
