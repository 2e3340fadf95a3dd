package events

import "time"

type BetPlaced struct {
	BetID             string    `json:"betId"`
	AccountID         string    `json:"accountId"`
	MatchID           string    `json:"matchId"`
	Selection         string    `json:"selection"`
	OddValue          float64   `json:"odd_value"`
	StakeCents        int64     `json:"stake_cents"`
	PotentialWinCents int64     `json:"potential_win_cents"`
	PlacedAt          time.Time `json:"placed_at"`
}

type BetCancelled struct {
	BetID       string    `json:"betId"`
	AccountID   string    `json:"accountId"`
	RefundCents int64     `json:"refund_cents"`
	CancelledAt time.Time `json:"cancelled_at"`
	RefundRef   string    `json:"refund_ref"`
}

type BetSettled struct {
	BetID       string    `json:"betId"`
	AccountID   string    `json:"accountId"`
	MatchID     string    `json:"matchId"`
	Status      string    `json:"status"` // won | lost
	PayoutCents int64     `json:"payout_cents"`
	SettledAt   time.Time `json:"settled_at"`
}

type BalanceChanged struct {
	AccountID    string `json:"accountId"`
	DeltaCents   int64  `json:"delta_cents"`
	BalanceCents int64  `json:"balance_cents"`
	EntryID      string `json:"entryId"`
	Kind         string `json:"kind"`
	Reference    string `json:"reference,omitempty"`
}
