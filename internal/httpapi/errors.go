package httpapi

import (
	"errors"
	"net/http"

	"github.com/radieske/bet-core/internal/engine"
	"github.com/radieske/bet-core/internal/wallet"
)

// statusFor traduz a taxonomia do engine (e do wallet) para HTTP. Cada erro
// sai com um kind estável legível por máquina; o texto é só para humanos.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, wallet.ErrPendingBets):
		return http.StatusConflict, "pending_bets"
	case errors.Is(err, wallet.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, wallet.ErrNotDeposit), errors.Is(err, wallet.ErrNotReversible):
		return http.StatusConflict, "wrong_entry_kind"
	}

	kind := engine.Code(err)
	switch kind {
	case "not_found":
		return http.StatusNotFound, kind
	case "insufficient_funds":
		return http.StatusUnprocessableEntity, kind
	case "invalid_stake", "invalid_odds", "invalid_selection":
		return http.StatusBadRequest, kind
	case "betting_window_closed":
		return http.StatusUnprocessableEntity, kind
	case "match_not_open", "cannot_cancel", "match_not_finished", "match_closed":
		return http.StatusConflict, kind
	case "storage_conflict":
		return http.StatusConflict, kind
	default:
		return http.StatusInternalServerError, kind
	}
}
