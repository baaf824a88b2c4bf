package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presupuesto/internal/cache"
	"presupuesto/internal/ledger"
	"presupuesto/internal/log"
	"presupuesto/internal/services"
	"presupuesto/internal/storage"
)

func newTestServer(t *testing.T, ratePerMinute int) (*Server, *services.LedgerService) {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	svc := services.NewLedgerService(services.Options{
		Snapshots: storage.NewMemoryStore(),
		Reports:   cache.NewLRUCache[services.Report](16, time.Minute),
		Logger:    logger,
	})
	srv := NewServer(Options{Addr: ":0", Ledger: svc, Logger: logger, RateLimitPerMinute: ratePerMinute})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, svc
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	} else if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get(log.RequestIDHeader) == "" {
			t.Errorf("%s missing request id header", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

func TestBudgetEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodPut, "/api/budget", `{"value": 1000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PUT budget status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodPost, "/api/budget", "value=-5")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative budget status=%d, want 422", rr.Code)
	}
	rr = do(t, srv, http.MethodPut, "/api/budget", `{"value": "abc"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("non-numeric budget status=%d, want 422", rr.Code)
	}

	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"Cena","amount":"300"}`)

	summary := decode[services.BudgetSummary](t, do(t, srv, http.MethodGet, "/api/budget", ""))
	if !summary.Budget.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("budget = %s, want 1000", summary.Budget)
	}
	if !summary.Balance.Equal(decimal.NewFromInt(700)) {
		t.Errorf("balance = %s, want 700", summary.Balance)
	}
	if !strings.Contains(summary.Description, "1000") {
		t.Errorf("description = %q", summary.Description)
	}
}

func TestCreateExpenseValidationAndSuccess(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"empty description", `{"description":"  ","amount":5}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"description":"x","amount":-1}`, http.StatusUnprocessableEntity},
		{"missing amount", `{"description":"x"}`, http.StatusUnprocessableEntity},
		{"long description", `{"description":"` + strings.Repeat("a", 201) + `","amount":1}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"description":`, http.StatusBadRequest},
		{"form body", "description=Pan&amount=2%2C5&date=2024-01-15&tags=comida", http.StatusCreated},
		{"json body", `{"description":"Cine","amount":12,"date":"2024-01-13","tags":["ocio"]}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/expenses", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}

	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"description":"Taxi","amount":"7.25","tags":"transporte, noche"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d", rr.Code)
	}
	created := decode[services.ExpenseDetail](t, rr)
	if created.ID != 2 {
		t.Errorf("id = %d, want 2", created.ID)
	}
	if got := rr.Header().Get("Location"); got != "/api/expenses/2" {
		t.Errorf("Location = %q", got)
	}
	if strings.Join(created.Tags, ",") != "transporte,noche" {
		t.Errorf("tags = %v", created.Tags)
	}
	if !strings.Contains(created.Summary, "Taxi") {
		t.Errorf("summary = %q", created.Summary)
	}
}

func TestCreateExpenseTimestamps(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	jan15 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		body string
		want time.Time
	}{
		{"form millis", "description=Pan&amount=2&date=1705276800000", jan15},
		{"json millis", `{"description":"Pan","amount":2,"date":1705276800000}`, jan15},
		{"json past year 9999", `{"description":"Pan","amount":2,"date":253402300800000}`, time.Time{}},
		{"json beyond date range", `{"description":"Pan","amount":2,"timestamp":1e30}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := time.Now().Add(-time.Second)
			rr := do(t, srv, http.MethodPost, "/api/expenses", tt.body)
			if rr.Code != http.StatusCreated {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			got := decode[services.ExpenseDetail](t, rr).Timestamp
			if tt.want.IsZero() {
				if got.Before(before) || got.Year() > 9999 {
					t.Fatalf("timestamp = %v, want the current time", got)
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Fatalf("timestamp = %v, want %v", got, tt.want)
			}
		})
	}

	for _, path := range []string{"/api/expenses", "/api/snapshot"} {
		if rr := do(t, srv, http.MethodGet, path, ""); rr.Code != http.StatusOK {
			t.Errorf("GET %s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestExpenseLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"Comida","amount":"25.50","date":"2024-01-15","tags":["comida"]}`)
	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"Cine","amount":"12","date":"2024-02-13","tags":["ocio"]}`)

	rr := do(t, srv, http.MethodGet, "/api/expenses/0", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET status=%d", rr.Code)
	}
	if got := decode[services.ExpenseDetail](t, rr); got.Description != "Comida" || !strings.Contains(got.Summary, "comida") {
		t.Errorf("detail = %+v", got)
	}

	rr = do(t, srv, http.MethodPatch, "/api/expenses/0", `{"description":"Almuerzo","amount":30,"tags":["trabajo"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PATCH status=%d body=%s", rr.Code, rr.Body.String())
	}
	patched := decode[services.ExpenseDetail](t, rr)
	if patched.Description != "Almuerzo" || !patched.Amount.Equal(decimal.NewFromInt(30)) || strings.Join(patched.Tags, ",") != "trabajo" {
		t.Errorf("patched = %+v", patched)
	}

	if rr := do(t, srv, http.MethodPatch, "/api/expenses/0", `{"amount":-3}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid PATCH status=%d, want 422", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/expenses/0/tags", `{"tags":["comida","trabajo"]}`)
	if got := decode[services.ExpenseDetail](t, rr); strings.Join(got.Tags, ",") != "trabajo,comida" {
		t.Errorf("tags after add = %v", got.Tags)
	}
	rr = do(t, srv, http.MethodDelete, "/api/expenses/0/tags?tags=trabajo", "")
	if got := decode[services.ExpenseDetail](t, rr); strings.Join(got.Tags, ",") != "comida" {
		t.Errorf("tags after remove = %v", got.Tags)
	}
	if rr := do(t, srv, http.MethodPost, "/api/expenses/0/tags", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("tag edit without tags status=%d, want 400", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/expenses/0", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE status=%d", rr.Code)
	}
	for _, tc := range []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/api/expenses/0", "", http.StatusNotFound},
		{http.MethodDelete, "/api/expenses/0", "", http.StatusNotFound},
		{http.MethodPatch, "/api/expenses/0", `{"description":"x"}`, http.StatusNotFound},
		{http.MethodPost, "/api/expenses/0/tags", `{"tags":["a"]}`, http.StatusNotFound},
		{http.MethodGet, "/api/expenses/abc", "", http.StatusBadRequest},
	} {
		if rr := do(t, srv, tc.method, tc.path, tc.body); rr.Code != tc.want {
			t.Errorf("%s %s status=%d, want %d", tc.method, tc.path, rr.Code, tc.want)
		}
	}

	rr = do(t, srv, http.MethodPost, "/api/expenses", `{"description":"Nuevo","amount":1}`)
	if got := decode[services.ExpenseDetail](t, rr); got.ID != 2 {
		t.Errorf("id after removal = %d, want 2", got.ID)
	}
}

func TestListExpensesFilters(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"Comida","amount":"25.50","date":"2024-01-15","tags":["comida"]}`)
	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"Transporte","amount":"40","date":"2024-01-14","tags":["transporte"]}`)
	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"Cine","amount":"12","date":"2024-01-13","tags":["ocio"]}`)

	type listing struct {
		Expenses []services.ExpenseDetail `json:"expenses"`
		Count    int                      `json:"count"`
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Comida", "Transporte", "Cine"}},
		{"?tags=comida,ocio", []string{"Comida", "Cine"}},
		{"?from=2024-01-14&to=2024-01-14", []string{"Transporte"}},
		{"?min=20&max=30", []string{"Comida"}},
		{"?q=CINE", []string{"Cine"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, "/api/expenses"+tt.query, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d", rr.Code)
			}
			got := decode[listing](t, rr)
			var names []string
			for _, e := range got.Expenses {
				names = append(names, e.Description)
			}
			if strings.Join(names, ",") != strings.Join(tt.want, ",") || got.Count != len(tt.want) {
				t.Errorf("got %v (count %d), want %v", names, got.Count, tt.want)
			}
		})
	}

	if rr := do(t, srv, http.MethodGet, "/api/expenses?from=soon", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad date status=%d, want 400", rr.Code)
	}
}

func TestReports(t *testing.T) {
	srv, _ := newTestServer(t, 100)

	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"a","amount":"10","date":"2024-01-15","tags":["x"]}`)
	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"b","amount":"5","date":"2024-01-20"}`)
	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"c","amount":"7","date":"2024-02-01","tags":["x"]}`)

	report := decode[services.Report](t, do(t, srv, http.MethodGet, "/api/reports/month", ""))
	if len(report.Buckets) != 2 || report.Buckets[0].Key != "2024-01" || !report.Buckets[0].Total.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("monthly buckets = %+v", report.Buckets)
	}
	if !report.Total.Equal(decimal.NewFromInt(22)) {
		t.Errorf("total = %s, want 22", report.Total)
	}

	tagged := decode[services.Report](t, do(t, srv, http.MethodGet, "/api/reports/MONTH?tags=x&to=2024-01-31", ""))
	if len(tagged.Buckets) != 1 || !tagged.Buckets[0].Total.Equal(decimal.NewFromInt(10)) {
		t.Errorf("tagged buckets = %+v", tagged.Buckets)
	}

	rr := do(t, srv, http.MethodGet, "/api/reports/week", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("unknown period status=%d", rr.Code)
	}
	unknown := decode[services.Report](t, rr)
	if len(unknown.Buckets) != 1 || unknown.Buckets[0].Key != "" {
		t.Errorf("unknown period buckets = %+v", unknown.Buckets)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	srv, svc := newTestServer(t, 100)

	do(t, srv, http.MethodPut, "/api/budget", `{"value": 500}`)
	do(t, srv, http.MethodPost, "/api/expenses", `{"description":"a","amount":"10","date":"2024-01-15","tags":["x"]}`)

	rr := do(t, srv, http.MethodGet, "/api/snapshot", "")
	snap := decode[ledger.Snapshot](t, rr)
	if snap.NextID != 1 || len(snap.Expenses) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	raw := rr.Body.String()

	do(t, srv, http.MethodDelete, "/api/expenses/0", "")
	if rr := do(t, srv, http.MethodPut, "/api/snapshot", raw); rr.Code != http.StatusOK {
		t.Fatalf("restore status=%d body=%s", rr.Code, rr.Body.String())
	}
	if _, err := svc.GetExpense(context.Background(), 0); err != nil {
		t.Errorf("restored expense missing: %v", err)
	}

	dup := `{"budget":"1","nextId":2,"expenses":[{"id":1,"description":"a","amount":"1","timestamp":"2024-01-01T00:00:00Z","tags":[]},{"id":1,"description":"b","amount":"1","timestamp":"2024-01-01T00:00:00Z","tags":[]}]}`
	if rr := do(t, srv, http.MethodPut, "/api/snapshot", dup); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate ids status=%d, want 422", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, "/api/snapshot", "budget=1"); rr.Code != http.StatusBadRequest {
		t.Errorf("form snapshot status=%d, want 400", rr.Code)
	}
	if summary := svc.Summary(context.Background()); !summary.Budget.Equal(decimal.NewFromInt(500)) {
		t.Errorf("rejected restore changed budget to %s", summary.Budget)
	}
}

func TestMethodRoutingAndRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	if rr := do(t, srv, http.MethodPut, "/api/expenses", `{}`); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/expenses status=%d, want 405", rr.Code)
	}

	// Reads are never limited.
	for i := 0; i < 5; i++ {
		if rr := do(t, srv, http.MethodGet, "/api/budget", ""); rr.Code != http.StatusOK {
			t.Fatalf("GET #%d status=%d", i, rr.Code)
		}
	}

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = do(t, srv, http.MethodPost, "/api/budget", `{"value": 1}`)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third write status=%d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	m := srv.Metrics()
	if m.Requests.TotalRequests == 0 || m.RateLimit.ClientCount != 1 {
		t.Errorf("metrics = %+v", m)
	}
}
