package odds

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Postgres implementa Store sobre a tabela append-only odds_quotes.
// seq é BIGSERIAL: a ordem total por partida é (created_at, seq).
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const quoteCols = `id, match_id, home_odd, draw_odd, away_odd, seq, created_at`

func scanQuote(row interface{ Scan(...any) error }, q *Quote) error {
	return row.Scan(&q.ID, &q.MatchID, &q.HomeOdd, &q.DrawOdd, &q.AwayOdd, &q.Seq, &q.CreatedAt)
}

func (p *Postgres) Insert(ctx context.Context, q *Quote) error {
	return p.db.QueryRowContext(ctx, `
		INSERT INTO odds_quotes (id, match_id, home_odd, draw_odd, away_odd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq`,
		q.ID, q.MatchID, q.HomeOdd, q.DrawOdd, q.AwayOdd, q.CreatedAt,
	).Scan(&q.Seq)
}

func (p *Postgres) Latest(ctx context.Context, matchID string) (*Quote, error) {
	var q Quote
	err := scanQuote(p.db.QueryRowContext(ctx, `
		SELECT `+quoteCols+` FROM odds_quotes
		WHERE match_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`, matchID), &q)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (p *Postgres) History(ctx context.Context, matchID string, limit int) ([]Quote, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+quoteCols+` FROM odds_quotes
		WHERE match_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, matchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		var q Quote
		if err := scanQuote(rows, &q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (p *Postgres) QuotesSince(ctx context.Context, since time.Time) ([]Quote, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+quoteCols+` FROM odds_quotes
		WHERE created_at >= $1
		ORDER BY match_id, created_at, seq`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		var q Quote
		if err := scanQuote(rows, &q); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
