package odds

import (
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("no quote for match")
	ErrInvalidOdd  = errors.New("odd below minimum")
	ErrMatchClosed = errors.New("match already finished")
)

// Quote é uma cotação 1x2 imutável: nova cotação é sempre uma linha nova,
// nunca um update. A "mais recente" é a de maior (CreatedAt, Seq) por partida;
// Seq desempata timestamps iguais pela ordem de inserção.
type Quote struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"matchId"`
	HomeOdd   float64   `json:"homeOdd"`
	DrawOdd   float64   `json:"drawOdd"`
	AwayOdd   float64   `json:"awayOdd"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"createdAt"`
}

// Movement compara as duas cotações mais recentes de uma partida dentro da
// janela pedida. Os três deltas são sempre reportados, independente de qual
// preço disparou o limiar.
type Movement struct {
	MatchID       string  `json:"matchId"`
	Previous      Quote   `json:"previous"`
	Current       Quote   `json:"current"`
	HomeChangePct float64 `json:"home_change_pct"`
	DrawChangePct float64 `json:"draw_change_pct"`
	AwayChangePct float64 `json:"away_change_pct"`
}

// changePct calcula (atual - anterior) / anterior * 100.
func changePct(previous, current float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}
