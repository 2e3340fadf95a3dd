package match

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Memory implementa Store em memória (testes e simulador de feed).
type Memory struct {
	mu      sync.RWMutex
	matches map[string]*Match
}

func NewMemory() *Memory {
	return &Memory{matches: make(map[string]*Match)}
}

func (s *Memory) Get(_ context.Context, matchID string) (*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Memory) List(_ context.Context, status Status, limit, offset int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Match
	for _, m := range s.matches {
		if status != "" && m.Status != status {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })

	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Memory) Create(_ context.Context, m *Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return errors.New("match already exists")
	}
	cp := *m
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.matches[m.ID] = &cp
	return nil
}

func (s *Memory) Update(_ context.Context, matchID string, upd PartialUpdate) (*Match, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}

	if upd.HomeTeam != nil {
		m.HomeTeam = *upd.HomeTeam
	}
	if upd.AwayTeam != nil {
		m.AwayTeam = *upd.AwayTeam
	}
	if upd.League != nil {
		m.League = *upd.League
	}
	if upd.StartTime != nil {
		m.StartTime = *upd.StartTime
	}
	if upd.Status != nil {
		m.Status = *upd.Status
	}
	m.UpdatedAt = time.Now().UTC()

	cp := *m
	return &cp, nil
}

func (s *Memory) UpdateScore(_ context.Context, matchID string, homeScore, awayScore int, status Status) (*Match, error) {
	if !ValidStatus(status) {
		return nil, errors.New("invalid status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[matchID]
	if !ok {
		return nil, ErrNotFound
	}

	h, a := homeScore, awayScore
	m.HomeScore = &h
	m.AwayScore = &a
	m.Status = status
	m.UpdatedAt = time.Now().UTC()

	cp := *m
	return &cp, nil
}
