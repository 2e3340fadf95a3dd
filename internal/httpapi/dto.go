package httpapi

import (
	"time"

	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
)

type PlaceBetRequest struct {
	AccountID  string  `json:"accountId"`
	MatchID    string  `json:"matchId"`
	Selection  string  `json:"selection"`
	StakeCents int64   `json:"stake_cents"`
	OddValue   float64 `json:"odd_value"`
}

type BetResponse struct {
	ID                string     `json:"id"`
	AccountID         string     `json:"accountId"`
	MatchID           string     `json:"matchId"`
	Selection         string     `json:"selection"`
	OddValue          float64    `json:"odd_value"`
	StakeCents        int64      `json:"stake_cents"`
	PotentialWinCents int64      `json:"potential_win_cents"`
	Status            string     `json:"status"`
	PlacedAt          time.Time  `json:"placed_at"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
}

func toBetResponse(b *ledger.Bet) BetResponse {
	return BetResponse{
		ID:                b.ID,
		AccountID:         b.AccountID,
		MatchID:           b.MatchID,
		Selection:         string(b.Selection),
		OddValue:          b.OddValue,
		StakeCents:        b.StakeCents,
		PotentialWinCents: b.PotentialWinCents,
		Status:            string(b.Status),
		PlacedAt:          b.PlacedAt,
		SettledAt:         b.SettledAt,
	}
}

type AmountRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type EntryResponse struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toEntryResponse(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Kind:        string(e.Kind),
		AmountCents: e.AmountCents,
		Status:      string(e.Status),
		Reference:   e.Reference,
		CreatedAt:   e.CreatedAt,
	}
}

type BalanceResponse struct {
	AccountID    string `json:"accountId"`
	BalanceCents int64  `json:"balance_cents"`
}

type CreateMatchRequest struct {
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	League    string    `json:"league"`
	StartTime time.Time `json:"start_time"`
}

type UpdateMatchRequest struct {
	HomeTeam  *string    `json:"home_team,omitempty"`
	AwayTeam  *string    `json:"away_team,omitempty"`
	League    *string    `json:"league,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	Status    *string    `json:"status,omitempty"`
}

type ScoreRequest struct {
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Status    string `json:"status"`
}

type MatchResponse struct {
	ID        string    `json:"id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	League    string    `json:"league"`
	StartTime time.Time `json:"start_time"`
	Status    string    `json:"status"`
	HomeScore *int      `json:"home_score,omitempty"`
	AwayScore *int      `json:"away_score,omitempty"`
}

func toMatchResponse(m *match.Match) MatchResponse {
	return MatchResponse{
		ID:        m.ID,
		HomeTeam:  m.HomeTeam,
		AwayTeam:  m.AwayTeam,
		League:    m.League,
		StartTime: m.StartTime,
		Status:    string(m.Status),
		HomeScore: m.HomeScore,
		AwayScore: m.AwayScore,
	}
}

type PublishQuoteRequest struct {
	HomeOdd float64 `json:"home_odd"`
	DrawOdd float64 `json:"draw_odd"`
	AwayOdd float64 `json:"away_odd"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
