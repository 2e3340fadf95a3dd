package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("match not found")

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusLive     Status = "live"
	StatusFinished Status = "finished"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusUpcoming, StatusLive, StatusFinished:
		return true
	}
	return false
}

// Match é contexto read-only para o engine de apostas: o ciclo de vida
// (status, placar) pertence ao colaborador de gestão de partidas.
type Match struct {
	ID        string
	HomeTeam  string
	AwayTeam  string
	League    string
	StartTime time.Time
	Status    Status
	HomeScore *int
	AwayScore *int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reader é a visão que o engine tem de uma partida.
type Reader interface {
	Get(ctx context.Context, matchID string) (*Match, error)
}

// Store é a interface completa usada pela camada administrativa.
type Store interface {
	Reader
	List(ctx context.Context, status Status, limit, offset int) ([]Match, error)
	Create(ctx context.Context, m *Match) error
	Update(ctx context.Context, matchID string, upd PartialUpdate) (*Match, error)
	UpdateScore(ctx context.Context, matchID string, homeScore, awayScore int, status Status) (*Match, error)
}

// PartialUpdate enumera explicitamente os campos que o domínio permite alterar;
// nil significa "não mexer". Nada de montar lista de colunas dinamicamente.
type PartialUpdate struct {
	HomeTeam  *string
	AwayTeam  *string
	League    *string
	StartTime *time.Time
	Status    *Status
}

// Validate valida cada campo presente de forma independente.
func (u PartialUpdate) Validate() error {
	if u.HomeTeam != nil && strings.TrimSpace(*u.HomeTeam) == "" {
		return fmt.Errorf("home_team must not be empty")
	}
	if u.AwayTeam != nil && strings.TrimSpace(*u.AwayTeam) == "" {
		return fmt.Errorf("away_team must not be empty")
	}
	if u.League != nil && strings.TrimSpace(*u.League) == "" {
		return fmt.Errorf("league must not be empty")
	}
	if u.StartTime != nil && u.StartTime.IsZero() {
		return fmt.Errorf("start_time must be set")
	}
	if u.Status != nil && !ValidStatus(*u.Status) {
		return fmt.Errorf("invalid status %q", *u.Status)
	}
	return nil
}

func (u PartialUpdate) empty() bool {
	return u.HomeTeam == nil && u.AwayTeam == nil && u.League == nil &&
		u.StartTime == nil && u.Status == nil
}

// Winner traduz o placar final para a seleção vencedora do mercado 1x2.
func Winner(homeScore, awayScore int) string {
	switch {
	case homeScore > awayScore:
		return "home"
	case awayScore > homeScore:
		return "away"
	default:
		return "draw"
	}
}
