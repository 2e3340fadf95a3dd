package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/engine"
	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/internal/notify"
	"github.com/radieske/bet-core/internal/odds"
	"github.com/radieske/bet-core/internal/wallet"
)

// API expõe o core por HTTP. Autenticação fica num gateway externo: aqui o
// accountId já chega validado.
type API struct {
	Log     *zap.Logger
	Engine  *engine.Engine
	Wallet  *wallet.Service
	Odds    *odds.Registry
	Matches match.Store
	Repo    ledger.Repository
	Hub     *notify.Hub

	// MoveThreshold é a fração default de /v1/odds/movements.
	MoveThreshold float64
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/v1/bets", a.placeBet)
	r.Get("/v1/bets/{id}", a.getBet)
	r.Delete("/v1/accounts/{accountId}/bets/{id}", a.cancelBet)
	r.Get("/v1/accounts/{accountId}/bets", a.listBets)
	r.Get("/v1/accounts/{accountId}/stats", a.accountStats)

	r.Get("/v1/accounts/{accountId}/balance", a.balance)
	r.Get("/v1/accounts/{accountId}/transactions", a.transactions)
	r.Post("/v1/accounts/{accountId}/deposits", a.deposit)
	r.Post("/v1/deposits/{entryId}/confirm", a.confirmDeposit)
	r.Post("/v1/deposits/{entryId}/fail", a.failDeposit)
	r.Post("/v1/accounts/{accountId}/withdrawals", a.withdraw)
	r.Post("/v1/withdrawals/{entryId}/reverse", a.reverseWithdrawal)

	r.Post("/v1/matches", a.createMatch)
	r.Get("/v1/matches", a.listMatches)
	r.Get("/v1/matches/{id}", a.getMatch)
	r.Patch("/v1/matches/{id}", a.updateMatch)
	r.Put("/v1/matches/{id}/score", a.updateScore)
	r.Post("/v1/matches/{id}/settle", a.settleMatch)

	r.Post("/v1/matches/{id}/quotes", a.publishQuote)
	r.Get("/v1/matches/{id}/odds", a.latestOdds)
	r.Get("/v1/matches/{id}/odds/history", a.oddsHistory)
	r.Get("/v1/odds/movements", a.oddsMovements)

	if a.Hub != nil {
		r.Get("/ws", a.Hub.HandleWS)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) writeErr(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad json", Kind: "bad_request"})
		return
	}
	if req.AccountID == "" || req.MatchID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "accountId and matchId are required", Kind: "bad_request"})
		return
	}

	bet, err := a.Engine.PlaceBet(r.Context(), req.AccountID, req.MatchID, ledger.Selection(req.Selection), req.StakeCents, req.OddValue)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBetResponse(bet))
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	bet, err := a.Repo.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(bet))
}

func (a *API) cancelBet(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	betID := chi.URLParam(r, "id")
	if err := a.Engine.CancelBet(r.Context(), accountID, betID); err != nil {
		a.writeErr(w, err)
		return
	}
	bet, err := a.Repo.GetBet(r.Context(), betID)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBetResponse(bet))
}

func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	status := ledger.BetStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	bets, err := a.Repo.ListBets(r.Context(), accountID, status, limit, offset)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	out := make([]BetResponse, 0, len(bets))
	for i := range bets {
		out = append(out, toBetResponse(&bets[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) accountStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.Engine.AccountStats(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	acc, err := a.Wallet.Balance(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{AccountID: acc.ID, BalanceCents: acc.BalanceCents})
}

func (a *API) transactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	kind := ledger.EntryKind(r.URL.Query().Get("kind"))
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	entries, err := a.Wallet.Statement(r.Context(), accountID, kind, limit, offset)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	out := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toEntryResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad json", Kind: "bad_request"})
		return
	}
	e, err := a.Wallet.Deposit(r.Context(), chi.URLParam(r, "accountId"), req.AmountCents)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(e))
}

func (a *API) confirmDeposit(w http.ResponseWriter, r *http.Request) {
	e, err := a.Wallet.ConfirmDeposit(r.Context(), chi.URLParam(r, "entryId"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(e))
}

func (a *API) failDeposit(w http.ResponseWriter, r *http.Request) {
	e, err := a.Wallet.FailDeposit(r.Context(), chi.URLParam(r, "entryId"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(e))
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad json", Kind: "bad_request"})
		return
	}
	e, err := a.Wallet.Withdraw(r.Context(), chi.URLParam(r, "accountId"), req.AmountCents)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(e))
}

func (a *API) reverseWithdrawal(w http.ResponseWriter, r *http.Request) {
	e, err := a.Wallet.ReverseWithdrawal(r.Context(), chi.URLParam(r, "entryId"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(e))
}

func (a *API) createMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad json", Kind: "bad_request"})
		return
	}
	if req.HomeTeam == "" || req.AwayTeam == "" || req.StartTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "home_team, away_team and start_time are required", Kind: "bad_request"})
		return
	}

	m := &match.Match{
		ID:        uuid.NewString(),
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		League:    req.League,
		StartTime: req.StartTime,
		Status:    match.StatusUpcoming,
	}
	if err := a.Matches.Create(r.Context(), m); err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMatchResponse(m))
}

func (a *API) listMatches(w http.ResponseWriter, r *http.Request) {
	status := match.Status(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	matches, err := a.Matches.List(r.Context(), status, limit, offset)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	out := make([]MatchResponse, 0, len(matches))
	for i := range matches {
		out = append(out, toMatchResponse(&matches[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := a.Matches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

func (a *API) updateMatch(w http.ResponseWriter, r *http.Request) {
	var req UpdateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad json", Kind: "bad_request"})
		return
	}

	upd := match.PartialUpdate{
		HomeTeam:  req.HomeTeam,
		AwayTeam:  req.AwayTeam,
		League:    req.League,
		StartTime: req.StartTime,
	}
	if req.Status != nil {
		st := match.Status(*req.Status)
		upd.Status = &st
	}
	if err := upd.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "bad_request"})
		return
	}

	m, err := a.Matches.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

// updateScore atualiza o placar; quando a partida encerra, dispara a
// liquidação de todas as apostas pending na sequência.
func (a *API) updateScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad json", Kind: "bad_request"})
		return
	}
	status := match.Status(req.Status)
	if status == "" {
		status = match.StatusLive
	}
	if !match.ValidStatus(status) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid status", Kind: "bad_request"})
		return
	}

	matchID := chi.URLParam(r, "id")
	m, err := a.Matches.UpdateScore(r.Context(), matchID, req.HomeScore, req.AwayScore, status)
	if err != nil {
		a.writeErr(w, err)
		return
	}

	if m.Status == match.StatusFinished {
		if _, err := a.Engine.SettleMatch(r.Context(), matchID); err != nil {
			a.Log.Error("settlement after score update failed", zap.String("matchId", matchID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, toMatchResponse(m))
}

func (a *API) settleMatch(w http.ResponseWriter, r *http.Request) {
	n, err := a.Engine.SettleMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"settled": n})
}

func (a *API) publishQuote(w http.ResponseWriter, r *http.Request) {
	var req PublishQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad json", Kind: "bad_request"})
		return
	}
	q, err := a.Odds.PublishQuote(r.Context(), chi.URLParam(r, "id"), req.HomeOdd, req.DrawOdd, req.AwayOdd)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (a *API) latestOdds(w http.ResponseWriter, r *http.Request) {
	q, err := a.Odds.LatestQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (a *API) oddsHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	hist, err := a.Odds.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (a *API) oddsMovements(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().Add(-time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "since must be RFC3339", Kind: "bad_request"})
			return
		}
		since = t
	}
	threshold := a.MoveThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "threshold must be a positive fraction", Kind: "bad_request"})
			return
		}
		threshold = f
	}

	moves, err := a.Odds.MovementsSince(r.Context(), since, threshold)
	if err != nil {
		a.writeErr(w, err)
		return
	}
	if moves == nil {
		moves = []odds.Movement{}
	}
	writeJSON(w, http.StatusOK, moves)
}
