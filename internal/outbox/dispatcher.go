package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/notify"
	"github.com/radieske/bet-core/pkg/contracts/events"
)

// Dispatcher drena os eventos gravados junto das mutações do ledger e entrega
// ao sink. Garantia at-least-once: o registro só é marcado como enviado depois
// da entrega, então uma queda entre entrega e marcação repete o evento —
// consumidores precisam tolerar duplicata, nunca perda.
type Dispatcher struct {
	Log       *zap.Logger
	Repo      ledger.Repository
	Sink      notify.Sink
	Interval  time.Duration
	BatchSize int

	// Callbacks de métricas; nil é permitido.
	OnFetched   func(n int)
	OnDelivered func()
	OnError     func(stage string)
}

// Run processa lotes até o contexto encerrar.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.Log.Info("outbox dispatcher started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			d.Log.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain entrega lotes consecutivos até esvaziar o backlog do ciclo.
func (d *Dispatcher) drain(ctx context.Context) {
	batch := d.BatchSize
	if batch <= 0 {
		batch = 100
	}

	for {
		n, err := d.Dispatch(ctx, batch)
		if err != nil || n < batch {
			return
		}
	}
}

// Dispatch busca até limit registros não enviados e entrega um a um, em ordem
// de criação. Falha de entrega interrompe o lote: o registro fica não enviado
// e a ordem relativa é preservada na próxima tentativa.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) (int, error) {
	recs, err := d.Repo.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		d.fail("fetch", err)
		return 0, err
	}
	if d.OnFetched != nil {
		d.OnFetched(len(recs))
	}

	delivered := 0
	for _, rec := range recs {
		ev := events.Envelope{
			Type:      rec.Type,
			AccountID: rec.AccountID,
			Payload:   rec.Payload,
			Ts:        rec.CreatedAt,
		}
		if err := d.Sink.Emit(ctx, ev); err != nil {
			d.fail("emit", err)
			return delivered, err
		}
		if err := d.Repo.MarkOutboxSent(ctx, rec.ID); err != nil {
			d.fail("mark", err)
			return delivered, err
		}
		delivered++
		if d.OnDelivered != nil {
			d.OnDelivered()
		}
	}
	return delivered, nil
}

func (d *Dispatcher) fail(stage string, err error) {
	d.Log.Error("outbox dispatch failed", zap.String("stage", stage), zap.Error(err))
	if d.OnError != nil {
		d.OnError(stage)
	}
}
