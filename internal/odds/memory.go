package odds

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory é um Store em memória para testes e desenvolvimento local.
type Memory struct {
	mu      sync.RWMutex
	quotes  []Quote
	nextSeq int64
}

func NewMemory() *Memory {
	return &Memory{nextSeq: 1}
}

func (m *Memory) Insert(_ context.Context, q *Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q.Seq = m.nextSeq
	m.nextSeq++
	m.quotes = append(m.quotes, *q)
	return nil
}

func (m *Memory) Latest(_ context.Context, matchID string) (*Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Quote
	for i := range m.quotes {
		q := &m.quotes[i]
		if q.MatchID != matchID {
			continue
		}
		if best == nil || q.CreatedAt.After(best.CreatedAt) ||
			(q.CreatedAt.Equal(best.CreatedAt) && q.Seq > best.Seq) {
			best = q
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *Memory) History(_ context.Context, matchID string, limit int) ([]Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Quote
	for _, q := range m.quotes {
		if q.MatchID == matchID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Seq > out[j].Seq
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) QuotesSince(_ context.Context, since time.Time) ([]Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Quote
	for _, q := range m.quotes {
		if !q.CreatedAt.Before(since) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchID != out[j].MatchID {
			return out[i].MatchID < out[j].MatchID
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}
