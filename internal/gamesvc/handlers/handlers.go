package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/avvvet/blackjack-services/internal/apperr"
	"github.com/avvvet/blackjack-services/internal/auth"
	"github.com/avvvet/blackjack-services/internal/gamesvc/models"
	"github.com/avvvet/blackjack-services/internal/gamesvc/service"
	"github.com/avvvet/blackjack-services/internal/monitor"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

// RoundHistory serves archived rounds.
type RoundHistory interface {
	Recent(ctx context.Context, tableID int64, limit int64) ([]models.RoundRecord, error)
}

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	games     *service.GameService
	ledger    *service.LedgerService
	metrics   *monitor.Metrics
	rounds    RoundHistory
}

func NewHandler(games *service.GameService, ledger *service.LedgerService, metrics *monitor.Metrics) *Handler {
	return &Handler{games: games, ledger: ledger, metrics: metrics}
}

// SetRoundHistory enables /v1/tables/{id}/rounds.
func (h *Handler) SetRoundHistory(rounds RoundHistory) {
	h.rounds = rounds
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, err error) {
	if apperr.Is(err, apperr.KindTransient) {
		log.Errorf("request failed: %v", err)
	}
	h.CreateResponse(w, Response{
		Message: "request failed",
		Code:    apperr.HTTPStatus(err),
		Error:   apperr.Message(err),
	})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	h.CreateResponse(w, Response{
		Message: "game service is running at port " + os.Getenv("GAME_SERVICE_PORT"),
		Code:    http.StatusOK,
	})
}

func (h *Handler) ListTablesHandler(w http.ResponseWriter, r *http.Request) {
	tables, err := h.games.ListTables(r.Context())
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: tables})
}

func (h *Handler) CreateTableHandler(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	var req service.CreateTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, apperr.Validation("malformed request body"))
		return
	}

	res, err := h.games.CreateGame(r.Context(), p.ID, p.Name, req)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "table created", Code: http.StatusCreated, Data: service.TableSnapshot{
		Table: res.Table,
		State: res.View,
	}})
}

func tableID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid table id")
	}
	return id, nil
}

func (h *Handler) TableHandler(w http.ResponseWriter, r *http.Request) {
	id, err := tableID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	snap, err := h.games.TableView(r.Context(), id)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: snap})
}

func (h *Handler) RoundsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := tableID(r)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	if h.rounds == nil {
		h.CreateResponse(w, Response{Message: "round archive disabled", Code: http.StatusNotFound, Error: "round archive disabled"})
		return
	}

	rounds, err := h.rounds.Recent(r.Context(), id, 20)
	if err != nil {
		h.errorResponse(w, apperr.Transient(err))
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: rounds})
}

func (h *Handler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	balance, err := h.ledger.Balance(r.Context(), p.ID)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: map[string]string{
		"balance": balance.StringFixed(2),
	}})
}

func (h *Handler) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.errorResponse(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.ledger.History(r.Context(), p.ID, limit)
	if err != nil {
		h.errorResponse(w, err)
		return
	}
	h.CreateResponse(w, Response{Message: "ok", Code: http.StatusOK, Data: history})
}
