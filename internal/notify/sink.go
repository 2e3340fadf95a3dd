package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/bet-core/pkg/contracts/events"
)

// Sink recebe eventos de domínio para entrega downstream. A entrega é
// best-effort: falha aqui nunca desfaz a mutação do ledger que originou o
// evento — o dispatcher loga e tenta de novo no próximo ciclo.
type Sink interface {
	Emit(ctx context.Context, ev events.Envelope) error
}

// LogSink só registra o evento; útil em desenvolvimento e testes.
type LogSink struct {
	Log *zap.Logger
}

func (s *LogSink) Emit(_ context.Context, ev events.Envelope) error {
	s.Log.Info("event",
		zap.String("type", ev.Type),
		zap.String("accountId", ev.AccountID),
		zap.Time("ts", ev.Ts))
	return nil
}

// Multi replica o evento para todos os sinks; devolve o primeiro erro mas
// tenta todos, para que um transporte quebrado não silencie os demais.
type Multi struct {
	Sinks []Sink
}

func (m *Multi) Emit(ctx context.Context, ev events.Envelope) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.Emit(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
