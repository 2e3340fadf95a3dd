package events

import "time"

// Preços de um mercado 1x2.
type Prices struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// OddsQuoted é emitido a cada cotação publicada no registro.
type OddsQuoted struct {
	QuoteID  string    `json:"quoteId"`
	MatchID  string    `json:"matchId"`
	Prices   Prices    `json:"prices"`
	Seq      int64     `json:"seq"`
	QuotedAt time.Time `json:"quoted_at"`
}

// OddsMovement descreve uma variação relevante entre as duas cotações
// mais recentes de uma partida; sempre lista os três deltas.
type OddsMovement struct {
	MatchID       string  `json:"matchId"`
	Previous      Prices  `json:"previous"`
	Current       Prices  `json:"current"`
	HomeChangePct float64 `json:"home_change_pct"`
	DrawChangePct float64 `json:"draw_change_pct"`
	AwayChangePct float64 `json:"away_change_pct"`
}

// MatchResult é o payload consumido do tópico match_results.
type MatchResult struct {
	MatchID   string    `json:"matchId"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Source    string    `json:"source"`
	Ts        time.Time `json:"ts"`
}
