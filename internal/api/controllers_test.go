package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"quant-core/internal/app"
	"quant-core/internal/store"
	"quant-core/pkg/cache"
	"quant-core/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := store.ApplyMigrations(st); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		JWTSecret:            "test-secret",
		BacktestStartBalance: 100_000,
		BacktestMaxPositions: 5,
		BacktestMinRemaining: 5_000,
		BacktestFeeRate:      0.001,
	}
	svc := app.NewService(cfg, st, cache.NewShardedCache(), nil, nil, nil, nil, nil, nil)
	return NewServer(svc, st, nil, nil, cfg), st
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func loginToken(t *testing.T, s *Server) string {
	t.Helper()
	creds := map[string]string{"email": "trader@example.com", "password": "hunter22"}
	if w := doJSON(t, s, http.MethodPost, "/api/auth/register", "", creds); w.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", w.Code, w.Body.String())
	}
	w := doJSON(t, s, http.MethodPost, "/api/auth/login", "", creds)
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["token"].(string)
	if token == "" {
		t.Fatal("no token in login response")
	}
	return token
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	s, _ := newTestServer(t)

	// A caller-supplied id is echoed back, even one shorter than the
	// logged prefix.
	for _, id := range []string{"abc", "0123456789abcdef"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", id)
		w := httptest.NewRecorder()
		s.Router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("id %q: status = %d", id, w.Code)
		}
		if got := w.Header().Get("X-Request-ID"); got != id {
			t.Errorf("id %q echoed as %q", id, got)
		}
	}

	// Without one, the server mints a uuid.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("generated id = %q, want a uuid", got)
	}
}

func TestAuthFlow(t *testing.T) {
	s, _ := newTestServer(t)
	creds := map[string]string{"email": "trader@example.com", "password": "hunter22"}

	if w := doJSON(t, s, http.MethodPost, "/api/auth/register", "", creds); w.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, s, http.MethodPost, "/api/auth/register", "", creds); w.Code != http.StatusConflict {
		t.Errorf("duplicate register status %d, want 409", w.Code)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "not-an-email", "password": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad email status %d, want 400", w.Code)
	}

	if w := doJSON(t, s, http.MethodPost, "/api/auth/login", "", creds); w.Code != http.StatusOK {
		t.Errorf("login status %d", w.Code)
	}
	wrong := map[string]string{"email": creds["email"], "password": "nope"}
	if w := doJSON(t, s, http.MethodPost, "/api/auth/login", "", wrong); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status %d, want 401", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s, _ := newTestServer(t)

	if w := doJSON(t, s, http.MethodGet, "/api/backtest/types", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/backtest/types", nil)
	req.Header.Set("Authorization", "NotBearer junk")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("malformed header status %d, want 401", w.Code)
	}

	if w := doJSON(t, s, http.MethodGet, "/api/backtest/types", "garbage.token.here", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status %d, want 401", w.Code)
	}
}

func TestGetStrategyTypes(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginToken(t, s)

	w := doJSON(t, s, http.MethodGet, "/api/backtest/types", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	types, _ := decode(t, w)["types"].([]any)
	if len(types) != 7 {
		t.Fatalf("got %d strategy types, want 7", len(types))
	}
	first, _ := types[0].(map[string]any)
	if id, _ := first["id"].(float64); id != 1 {
		t.Errorf("first id = %v, want 1", first["id"])
	}
}

func TestGetHoldingsValidation(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginToken(t, s)

	if w := doJSON(t, s, http.MethodGet, "/api/holdings", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing times status %d, want 400", w.Code)
	}
	if w := doJSON(t, s, http.MethodGet, "/api/holdings?times=abc", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad times status %d, want 400", w.Code)
	}
	// No run has started yet, generation 1 does not exist.
	if w := doJSON(t, s, http.MethodGet, "/api/holdings?times=1", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("future generation status %d, want 400", w.Code)
	}
}

func TestGetHoldingsByRun(t *testing.T) {
	s, st := newTestServer(t)
	token := loginToken(t, s)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	if _, err := st.NextRun(ctx); err != nil {
		t.Fatal(err)
	}
	err := st.CreateHolding(ctx, store.Holding{
		ID: 1, Run: 1, StrategyType: 5, Code: "600001", Name: "Alpha",
		BuyDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), BuyPrice: 88, Amount: 1100,
	})
	if err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, s, http.MethodGet, "/api/holdings?times=1", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	holdings, _ := decode(t, w)["holdings"].([]any)
	if len(holdings) != 1 {
		t.Fatalf("got %d holdings, want 1", len(holdings))
	}
}

func TestClearHoldings(t *testing.T) {
	s, st := newTestServer(t)
	token := loginToken(t, s)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	if _, err := st.NextRun(ctx); err != nil {
		t.Fatal(err)
	}
	err := st.CreateHolding(ctx, store.Holding{
		ID: 1, Run: 1, StrategyType: 5, Code: "600001", Name: "Alpha",
		BuyDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), BuyPrice: 88, Amount: 1100,
	})
	if err != nil {
		t.Fatal(err)
	}

	if w := doJSON(t, s, http.MethodDelete, "/api/holdings", token, nil); w.Code != http.StatusOK {
		t.Fatalf("clear status %d: %s", w.Code, w.Body.String())
	}
	rows, err := st.ListHoldingsByRun(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("ledger still has %d rows after clear", len(rows))
	}
}

func TestStartBacktestValidation(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginToken(t, s)

	if w := doJSON(t, s, http.MethodPost, "/api/backtest/start", token, map[string]any{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty payload status %d, want 400", w.Code)
	}
	body := map[string]any{"strategy_type": 1, "start_date": "not-a-date"}
	if w := doJSON(t, s, http.MethodPost, "/api/backtest/start", token, body); w.Code != http.StatusBadRequest {
		t.Errorf("bad date status %d, want 400", w.Code)
	}
	// Simulator is not wired in this test server.
	body = map[string]any{"strategy_type": 1, "start_date": "2024-01-01"}
	if w := doJSON(t, s, http.MethodPost, "/api/backtest/start", token, body); w.Code != http.StatusBadRequest {
		t.Errorf("unwired simulator status %d, want 400", w.Code)
	}
}

func TestStatusIdle(t *testing.T) {
	s, _ := newTestServer(t)
	w := doJSON(t, s, http.MethodGet, "/api/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if task, _ := decode(t, w)["task"].(string); task != "" {
		t.Errorf("task = %q, want empty", task)
	}
}

func TestPutCredentials(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginToken(t, s)

	if w := doJSON(t, s, http.MethodPut, "/api/credentials", token, map[string]string{"cookie": "c"}); w.Code != http.StatusBadRequest {
		t.Errorf("partial payload status %d, want 400", w.Code)
	}
	body := map[string]string{"cookie": "session=abc", "token": "tok"}
	if w := doJSON(t, s, http.MethodPut, "/api/credentials", token, body); w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	creds, err := s.Service.Credentials(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if err != nil {
		t.Fatal(err)
	}
	if creds.Cookie != "session=abc" || creds.Token != "tok" {
		t.Errorf("stored credentials = %+v", creds)
	}
}

func TestRecommendDate(t *testing.T) {
	morning := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	if got := recommendDate(morning); got != "2024-03-14" {
		t.Errorf("before open: %q, want 2024-03-14", got)
	}
	midday := time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC)
	if got := recommendDate(midday); got != "2024-03-15" {
		t.Errorf("after open: %q, want 2024-03-15", got)
	}
}

func TestGetRecommendations(t *testing.T) {
	s, st := newTestServer(t)
	token := loginToken(t, s)
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()

	if w := doJSON(t, s, http.MethodGet, "/api/recommend", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing type status %d, want 400", w.Code)
	}

	err := st.ReplaceRecommendations(ctx, "2024-03-15", 5, []store.Recommendation{
		{Code: "600001", Name: "Alpha", Price: 88, Reason: "oversold"},
	})
	if err != nil {
		t.Fatal(err)
	}
	w := doJSON(t, s, http.MethodGet, "/api/recommend?type=5&date=2024-03-15", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	recs, _ := decode(t, w)["recommendations"].([]any)
	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1", len(recs))
	}
}
