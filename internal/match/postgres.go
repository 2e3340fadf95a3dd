package match

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
)

// Postgres implementa Store sobre a tabela matches.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const matchCols = `id, home_team, away_team, league, start_time, status, home_score, away_score, created_at, updated_at`

func scanMatch(row interface{ Scan(...any) error }) (*Match, error) {
	var m Match
	var home, away sql.NullInt64
	err := row.Scan(&m.ID, &m.HomeTeam, &m.AwayTeam, &m.League, &m.StartTime, &m.Status, &home, &away, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if home.Valid {
		v := int(home.Int64)
		m.HomeScore = &v
	}
	if away.Valid {
		v := int(away.Int64)
		m.AwayScore = &v
	}
	return &m, nil
}

func (p *Postgres) Get(ctx context.Context, matchID string) (*Match, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+matchCols+` FROM matches WHERE id=$1`, matchID)
	return scanMatch(row)
}

func (p *Postgres) List(ctx context.Context, status Status, limit, offset int) ([]Match, error) {
	q := `SELECT ` + matchCols + ` FROM matches`
	args := []any{}
	if status != "" {
		q += ` WHERE status=$1`
		args = append(args, status)
	}
	q += ` ORDER BY start_time`
	if limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (p *Postgres) Create(ctx context.Context, m *Match) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO matches (id, home_team, away_team, league, start_time, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())`,
		m.ID, m.HomeTeam, m.AwayTeam, m.League, m.StartTime, m.Status)
	return err
}

// Update aplica um PartialUpdate com SET explícito por campo tipado.
func (p *Postgres) Update(ctx context.Context, matchID string, upd PartialUpdate) (*Match, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	if upd.empty() {
		return p.Get(ctx, matchID)
	}

	res, err := p.db.ExecContext(ctx, `
		UPDATE matches SET
		  home_team  = COALESCE($1, home_team),
		  away_team  = COALESCE($2, away_team),
		  league     = COALESCE($3, league),
		  start_time = COALESCE($4, start_time),
		  status     = COALESCE($5, status),
		  updated_at = NOW()
		WHERE id=$6`,
		upd.HomeTeam, upd.AwayTeam, upd.League, upd.StartTime, upd.Status, matchID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return p.Get(ctx, matchID)
}

func (p *Postgres) UpdateScore(ctx context.Context, matchID string, homeScore, awayScore int, status Status) (*Match, error) {
	if !ValidStatus(status) {
		return nil, errors.New("invalid status")
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE matches SET home_score=$1, away_score=$2, status=$3, updated_at=NOW()
		WHERE id=$4`, homeScore, awayScore, status, matchID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return p.Get(ctx, matchID)
}
