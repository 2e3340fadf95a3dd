package engine

import "time"

// Policy são os limites de produto aplicados pelo engine. Limites são
// configuração, não lógica: mudam por ambiente sem recompilar o engine.
type Policy struct {
	MinStakeCents int64
	MaxStakeCents int64
	MinOdd        float64
	BettingWindow time.Duration // fechamento antes do início da partida
}

// DefaultPolicy replica os limites de produção: stake de R$1,00 a R$10.000,00,
// odd mínima 1.01 e janela de 5 minutos.
func DefaultPolicy() Policy {
	return Policy{
		MinStakeCents: 100,
		MaxStakeCents: 1_000_000,
		MinOdd:        1.01,
		BettingWindow: 5 * time.Minute,
	}
}
