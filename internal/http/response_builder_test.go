package http

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Location("/api/expenses/3").
		JSON(map[string]int{"id": 3}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Location"); got != "/api/expenses/3" {
		t.Errorf("Location = %q", got)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Body.String() != "{\"id\":3}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().Status(http.StatusNoContent).Header("X-Custom", "value").Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("custom header not set")
	}
	if w.Header().Get("Content-Type") != "" {
		t.Error("Content-Type should not be set without a body")
	}
}

func TestResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().JSON(math.Inf(1)).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		builder    *ResponseBuilder
		wantStatus int
	}{
		{"BadRequestError", BadRequestError("bad"), http.StatusBadRequest},
		{"NotFoundError", NotFoundError("missing"), http.StatusNotFound},
		{"UnprocessableEntityError", UnprocessableEntityError("invalid"), http.StatusUnprocessableEntity},
		{"TooManyRequestsError", TooManyRequestsError("slow down"), http.StatusTooManyRequests},
		{"ServiceUnavailableError", ServiceUnavailableError("down"), http.StatusServiceUnavailable},
		{"InternalServerError", InternalServerError("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.builder.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.builder.StatusCode(), tt.wantStatus)
			}
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			var body ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Status != tt.wantStatus || body.Error == "" {
				t.Errorf("error body = %+v", body)
			}
		})
	}
}

func TestTooManyRequestsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequestsError("slow down").Write(w)
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
}
