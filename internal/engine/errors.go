package engine

import (
	"errors"

	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/internal/odds"
)

// Erros de precondição do engine. Nunca são achatados num erro genérico:
// a camada HTTP mapeia cada um para um kind estável + status.
var (
	ErrInvalidStake        = errors.New("stake out of allowed range")
	ErrInvalidOdd          = errors.New("odd below allowed floor")
	ErrInvalidSelection    = errors.New("selection must be home, draw or away")
	ErrMatchNotOpen        = errors.New("match is not open for betting")
	ErrBettingWindowClosed = errors.New("betting window closed for this match")
	ErrCannotCancel        = errors.New("bet cannot be cancelled")
	ErrMatchNotFinished    = errors.New("match is not finished")
)

// Code traduz um erro do engine (ou dos colaboradores) para um kind estável
// consumível por máquina; "internal" é o fallback.
func Code(err error) string {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, match.ErrNotFound), errors.Is(err, odds.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidStake):
		return "invalid_stake"
	case errors.Is(err, ErrInvalidOdd), errors.Is(err, odds.ErrInvalidOdd):
		return "invalid_odds"
	case errors.Is(err, ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, ErrMatchNotOpen):
		return "match_not_open"
	case errors.Is(err, ErrBettingWindowClosed):
		return "betting_window_closed"
	case errors.Is(err, ErrCannotCancel):
		return "cannot_cancel"
	case errors.Is(err, ErrMatchNotFinished):
		return "match_not_finished"
	case errors.Is(err, odds.ErrMatchClosed):
		return "match_closed"
	case errors.Is(err, ledger.ErrConflict):
		return "storage_conflict"
	default:
		return "internal"
	}
}
