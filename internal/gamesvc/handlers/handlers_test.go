package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avvvet/blackjack-services/internal/gamesvc/engine"
	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/avvvet/blackjack-services/internal/gamesvc/service"
	"github.com/avvvet/blackjack-services/internal/gamesvc/store"
	"github.com/avvvet/blackjack-services/internal/monitor"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuth = jwtauth.New("HS256", []byte("test-secret"), nil)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	s := store.NewMemoryStore()
	ledger := service.NewLedgerService(s, decimal.NewFromInt(1000))
	games := service.NewGameService(s, ledger, service.NewSessionService(time.Now), service.WithDecks(engine.FixedDeck()))

	h := NewHandler(games, ledger, monitor.NewMetrics("test"))
	h.SetAuth(testAuth)
	r := chi.NewRouter()
	h.SetRoutes(r)
	return r
}

func token(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	_, s, err := testAuth.Encode(claims)
	require.NoError(t, err)
	return s
}

func do(r http.Handler, method, path, body, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var rsp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rsp))
	return rsp
}

func TestHealthIsPublic(t *testing.T) {
	r := newTestRouter(t)
	rec := do(r, http.MethodGet, "/v1/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecureRoutesNeedToken(t *testing.T) {
	r := newTestRouter(t)
	rec := do(r, http.MethodGet, "/v1/tables", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndViewTable(t *testing.T) {
	r := newTestRouter(t)
	tok := token(t, map[string]interface{}{"player_id": 7, "name": "gus"})

	rec := do(r, http.MethodPost, "/v1/tables", `{"maxSeats":4,"minBet":"5"}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(r, http.MethodGet, "/v1/tables", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []struct {
			ID          int64  `json:"id"`
			HostName    string `json:"hostName"`
			PlayerCount int    `json:"playerCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "gus", list.Data[0].HostName)
	assert.Equal(t, 1, list.Data[0].PlayerCount)

	rec = do(r, http.MethodGet, "/v1/tables/1", "", tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodGet, "/v1/tables/99", "", tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "table 99 not found", decodeResponse(t, rec).Error)

	rec = do(r, http.MethodGet, "/v1/tables/abc", "", tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTableValidation(t *testing.T) {
	r := newTestRouter(t)
	tok := token(t, map[string]interface{}{"player_id": 7, "name": "gus"})

	rec := do(r, http.MethodPost, "/v1/tables", `{"maxSeats":9,"minBet":"5"}`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(r, http.MethodPost, "/v1/tables", `not json`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noPlayer := token(t, map[string]interface{}{"service_id": 1})
	rec = do(r, http.MethodPost, "/v1/tables", `{"maxSeats":2,"minBet":"5"}`, noPlayer)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBalanceAndTransactions(t *testing.T) {
	r := newTestRouter(t)
	tok := token(t, map[string]interface{}{"player_id": 7, "name": "gus"})

	rec := do(r, http.MethodGet, "/v1/players/me/balance", "", tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodPost, "/v1/tables", `{"maxSeats":2,"minBet":"5"}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(r, http.MethodGet, "/v1/players/me/balance", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"balance": "1000.00"}, decodeResponse(t, rec).Data)

	rec = do(r, http.MethodGet, "/v1/players/me/transactions?limit=10", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeResponse(t, rec).Data, 1)
}

type fakeRounds struct{ limit int64 }

func (f *fakeRounds) Recent(ctx context.Context, tableID int64, limit int64) ([]models.RoundRecord, error) {
	f.limit = limit
	return []models.RoundRecord{{TableID: tableID, Round: 1, DealerValue: 18}}, nil
}

func TestRoundsHandler(t *testing.T) {
	s := store.NewMemoryStore()
	ledger := service.NewLedgerService(s, decimal.NewFromInt(1000))
	games := service.NewGameService(s, ledger, service.NewSessionService(time.Now))
	h := NewHandler(games, ledger, nil)
	h.SetAuth(testAuth)
	r := chi.NewRouter()
	h.SetRoutes(r)
	tok := token(t, map[string]interface{}{"player_id": 7, "name": "gus"})

	rec := do(r, http.MethodGet, "/v1/tables/4/rounds", "", tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rounds := &fakeRounds{}
	h.SetRoundHistory(rounds)
	rec = do(r, http.MethodGet, "/v1/tables/4/rounds", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(20), rounds.limit)
	assert.Len(t, decodeResponse(t, rec).Data, 1)
}
