package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"presupuesto/internal/core"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
)

// expenseTimestamp returns the date field, falling back to timestamp. A
// missing value is nil so the core applies its default. Digit-only strings,
// which is how form bodies carry Unix milliseconds, become numbers.
func expenseTimestamp(p *RequestBodyParser) any {
	v := p.Value("timestamp")
	if p.Has("date") {
		v = p.Value("date")
	}
	if s, ok := v.(string); ok {
		if ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return ms
		}
	}
	return v
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	criteria, err := ParseCriteria(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	views := s.ledger.ListExpenses(r.Context(), criteria)
	NewResponse().JSON(map[string]any{
		"expenses": views,
		"count":    len(views),
	}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	tags, _ := p.Tags("tags")
	in := services.ExpenseInput{
		Description: p.Get("description"),
		Amount:      p.Value("amount"),
		Timestamp:   expenseTimestamp(p),
		Tags:        tags,
	}

	created, err := s.ledger.AddExpense(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Location("/api/expenses/" + strconv.FormatInt(created.ID, 10)).
		JSON(created).
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := s.ledger.GetExpense(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(detail).Write(w)
}

// handleUpdateExpense applies the fields present in the body. Sent tags
// replace the existing ones.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	var patch services.ExpensePatch
	if p.Has("description") {
		desc := p.Get("description")
		patch.Description = &desc
	}
	if p.Has("amount") {
		patch.Amount = p.Value("amount")
		if patch.Amount == nil {
			UnprocessableEntityError(core.ErrInvalidAmount.Error()).Write(w)
			return
		}
	}
	patch.Timestamp = expenseTimestamp(p)
	if tags, ok := p.Tags("tags"); ok {
		patch.Tags = &tags
	}

	detail, err := s.ledger.UpdateExpense(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(detail).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.RemoveExpense(r.Context(), id); err != nil {
		s.writeServiceError(w, r, log.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	s.handleTagEdit(w, r, s.ledger.AddTags)
}

func (s *Server) handleRemoveTags(w http.ResponseWriter, r *http.Request) {
	s.handleTagEdit(w, r, s.ledger.RemoveTags)
}

var errTagsRequired = errors.New("tags are required")

// handleTagEdit reads tags from the body, or from the query string when the
// body carries none.
func (s *Server) handleTagEdit(w http.ResponseWriter, r *http.Request, edit func(context.Context, int64, []string) (services.ExpenseDetail, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	tags, present := p.Tags("tags")
	if !present {
		if q := r.URL.Query()["tags"]; len(q) > 0 {
			tags, present = splitTagValues(q), true
		}
	}
	if !present {
		BadRequestError(errTagsRequired.Error()).Write(w)
		return
	}

	detail, err := edit(r.Context(), id, tags)
	if err != nil {
		s.writeServiceError(w, r, log.OpUpdate, err)
		return
	}
	NewResponse().JSON(detail).Write(w)
}
