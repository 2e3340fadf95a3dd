package topics

const (
	// Eventos de domínio emitidos pelo outbox
	BetEvents     = "bet_events"
	BalanceEvents = "balance_events"
	OddsEvents    = "odds_events"

	// Resultados de partidas (feed externo -> settlement-worker)
	MatchResults    = "match_results"
	MatchResultsDLQ = "match_results_dlq"
)
