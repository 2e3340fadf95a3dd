package odds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/pkg/contracts/events"
)

// Store é a persistência append-only das cotações.
type Store interface {
	Insert(ctx context.Context, q *Quote) error
	Latest(ctx context.Context, matchID string) (*Quote, error)
	History(ctx context.Context, matchID string, limit int) ([]Quote, error)
	// QuotesSince devolve as cotações da janela, ordenadas por (match, seq).
	QuotesSince(ctx context.Context, since time.Time) ([]Quote, error)
}

// QuoteCache é um cache explícito com TTL para a cotação mais recente.
// Nunca um singleton escondido na lógica de negócio.
type QuoteCache interface {
	Get(ctx context.Context, matchID string) (*Quote, bool, error)
	Put(ctx context.Context, matchID string, q *Quote) error
}

// Registry mantém o histórico versionado de cotações por partida e responde
// "cotação atual" / histórico / movimentações relevantes.
type Registry struct {
	log           *zap.Logger
	store         Store
	matches       match.Reader
	cache         QuoteCache // opcional
	minOdd        float64
	moveThreshold float64           // fração mínima para emitir odds_movement
	repo          ledger.Repository // opcional: outbox de eventos de odds
	now           func() time.Time
}

// NewRegistry monta o registro. cache e repo podem ser nil; moveThreshold <= 0
// desliga a emissão de odds_movement.
func NewRegistry(log *zap.Logger, store Store, matches match.Reader, cache QuoteCache, minOdd, moveThreshold float64, repo ledger.Repository) *Registry {
	return &Registry{
		log:           log,
		store:         store,
		matches:       matches,
		cache:         cache,
		minOdd:        minOdd,
		moveThreshold: moveThreshold,
		repo:          repo,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// PublishQuote valida e anexa uma cotação nova. Nunca altera cotação anterior.
func (r *Registry) PublishQuote(ctx context.Context, matchID string, home, draw, away float64) (*Quote, error) {
	for _, price := range []float64{home, draw, away} {
		if price < r.minOdd || math.IsNaN(price) || math.IsInf(price, 0) {
			return nil, fmt.Errorf("%w: price %.4f < %.2f", ErrInvalidOdd, price, r.minOdd)
		}
	}

	m, err := r.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.Status == match.StatusFinished {
		return nil, ErrMatchClosed
	}

	// Cotação anterior antes do insert, para a detecção de movimentação.
	prev, err := r.store.Latest(ctx, matchID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	q := &Quote{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		HomeOdd:   home,
		DrawOdd:   draw,
		AwayOdd:   away,
		CreatedAt: r.now(),
	}
	if err := r.store.Insert(ctx, q); err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, matchID, q); err != nil {
			r.log.Warn("quote cache put failed", zap.String("matchId", matchID), zap.Error(err))
		}
	}

	r.appendQuotedEvent(ctx, q)
	if prev != nil {
		r.appendMovementEvent(ctx, prev, q)
	}

	return q, nil
}

// LatestQuote devolve a cotação de maior (timestamp, seq), preferencialmente
// do cache.
func (r *Registry) LatestQuote(ctx context.Context, matchID string) (*Quote, error) {
	if r.cache != nil {
		if q, ok, err := r.cache.Get(ctx, matchID); err == nil && ok {
			return q, nil
		}
	}

	q, err := r.store.Latest(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		_ = r.cache.Put(ctx, matchID, q)
	}
	return q, nil
}

// History devolve até limit cotações, mais recentes primeiro.
func (r *Registry) History(ctx context.Context, matchID string, limit int) ([]Quote, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.store.History(ctx, matchID, limit)
}

// MovementsSince compara, por partida com >= 2 cotações na janela, as duas
// mais recentes; emite um Movement por partida qualificada quando
// |delta|/anterior >= threshold em qualquer um dos três preços.
func (r *Registry) MovementsSince(ctx context.Context, windowStart time.Time, threshold float64) ([]Movement, error) {
	quotes, err := r.store.QuotesSince(ctx, windowStart)
	if err != nil {
		return nil, err
	}

	byMatch := make(map[string][]Quote)
	var order []string
	for _, q := range quotes {
		if _, ok := byMatch[q.MatchID]; !ok {
			order = append(order, q.MatchID)
		}
		byMatch[q.MatchID] = append(byMatch[q.MatchID], q)
	}

	var out []Movement
	for _, matchID := range order {
		list := byMatch[matchID]
		if len(list) < 2 {
			continue
		}
		latest := list[len(list)-1]
		previous := list[len(list)-2]

		homeFrac := math.Abs(latest.HomeOdd-previous.HomeOdd) / previous.HomeOdd
		drawFrac := math.Abs(latest.DrawOdd-previous.DrawOdd) / previous.DrawOdd
		awayFrac := math.Abs(latest.AwayOdd-previous.AwayOdd) / previous.AwayOdd

		if homeFrac >= threshold || drawFrac >= threshold || awayFrac >= threshold {
			out = append(out, Movement{
				MatchID:       matchID,
				Previous:      previous,
				Current:       latest,
				HomeChangePct: changePct(previous.HomeOdd, latest.HomeOdd),
				DrawChangePct: changePct(previous.DrawOdd, latest.DrawOdd),
				AwayChangePct: changePct(previous.AwayOdd, latest.AwayOdd),
			})
		}
	}
	return out, nil
}

// appendQuotedEvent grava o evento odds_quoted no outbox quando o registro foi
// configurado com um repositório; falha aqui não desfaz a cotação publicada.
func (r *Registry) appendQuotedEvent(ctx context.Context, q *Quote) {
	if r.repo == nil {
		return
	}

	payload, err := json.Marshal(events.OddsQuoted{
		QuoteID:  q.ID,
		MatchID:  q.MatchID,
		Prices:   events.Prices{Home: q.HomeOdd, Draw: q.DrawOdd, Away: q.AwayOdd},
		Seq:      q.Seq,
		QuotedAt: q.CreatedAt,
	})
	if err != nil {
		return
	}
	r.appendOutbox(ctx, &ledger.OutboxRecord{
		Type:      events.TypeOddsQuoted,
		Payload:   payload,
		CreatedAt: q.CreatedAt,
	})
}

// appendMovementEvent compara a cotação nova com a anterior e grava um
// odds_movement quando qualquer preço variou pelo menos moveThreshold.
func (r *Registry) appendMovementEvent(ctx context.Context, prev, cur *Quote) {
	if r.repo == nil || r.moveThreshold <= 0 {
		return
	}

	homeFrac := math.Abs(cur.HomeOdd-prev.HomeOdd) / prev.HomeOdd
	drawFrac := math.Abs(cur.DrawOdd-prev.DrawOdd) / prev.DrawOdd
	awayFrac := math.Abs(cur.AwayOdd-prev.AwayOdd) / prev.AwayOdd
	if homeFrac < r.moveThreshold && drawFrac < r.moveThreshold && awayFrac < r.moveThreshold {
		return
	}

	payload, err := json.Marshal(events.OddsMovement{
		MatchID:       cur.MatchID,
		Previous:      events.Prices{Home: prev.HomeOdd, Draw: prev.DrawOdd, Away: prev.AwayOdd},
		Current:       events.Prices{Home: cur.HomeOdd, Draw: cur.DrawOdd, Away: cur.AwayOdd},
		HomeChangePct: changePct(prev.HomeOdd, cur.HomeOdd),
		DrawChangePct: changePct(prev.DrawOdd, cur.DrawOdd),
		AwayChangePct: changePct(prev.AwayOdd, cur.AwayOdd),
	})
	if err != nil {
		return
	}
	r.appendOutbox(ctx, &ledger.OutboxRecord{
		Type:      events.TypeOddsMovement,
		Payload:   payload,
		CreatedAt: cur.CreatedAt,
	})
}

func (r *Registry) appendOutbox(ctx context.Context, rec *ledger.OutboxRecord) {
	tx, err := r.repo.BeginTx(ctx)
	if err != nil {
		r.log.Warn("odds outbox tx failed", zap.Error(err))
		return
	}
	defer tx.Rollback()
	if err := r.repo.InsertOutbox(ctx, tx, rec); err != nil {
		r.log.Warn("odds outbox insert failed", zap.Error(err))
		return
	}
	if err := tx.Commit(); err != nil {
		r.log.Warn("odds outbox commit failed", zap.Error(err))
	}
}
