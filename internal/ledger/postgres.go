package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// Postgres implementa Repository sobre database/sql + lib/pq.
// Locks pessimistas por linha (SELECT ... FOR UPDATE) na conta, na aposta e no
// lançamento garantem que duas operações concorrentes sobre a mesma conta não
// observem saldo defasado.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) Commit() error   { return t.tx.Commit() }
func (t *pgTx) Rollback() error { return t.tx.Rollback() }

func sqlTx(tx Tx) *sql.Tx { return tx.(*pgTx).tx }

// mapErr traduz erros do driver para a taxonomia do ledger.
// 40001 (serialization_failure) e 40P01 (deadlock_detected) viram ErrConflict:
// contenção transitória, seguro repetir do lado do caller. 23505
// (unique_violation) vira ErrDuplicate.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return ErrConflict
		case "23505":
			return ErrDuplicate
		}
	}
	return err
}

func (p *Postgres) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapErr(err)
	}
	return &pgTx{tx: tx}, nil
}

func (p *Postgres) InsertAccount(ctx context.Context, tx Tx, a *Account) error {
	_, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO accounts (id, balance_cents, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.BalanceCents, a.Version, a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

func (p *Postgres) GetAccountForUpdate(ctx context.Context, tx Tx, accountID string) (*Account, error) {
	var a Account
	err := sqlTx(tx).QueryRowContext(ctx, `
		SELECT id, balance_cents, version, created_at, updated_at
		FROM accounts WHERE id=$1 FOR UPDATE`, accountID).
		Scan(&a.ID, &a.BalanceCents, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (p *Postgres) UpdateBalance(ctx context.Context, tx Tx, accountID string, newBalanceCents int64) error {
	res, err := sqlTx(tx).ExecContext(ctx, `
		UPDATE accounts SET balance_cents=$1, version=version+1, updated_at=NOW()
		WHERE id=$2`, newBalanceCents, accountID)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) InsertEntry(ctx context.Context, tx Tx, e *Entry) error {
	_, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, kind, amount_cents, status, reference, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.AccountID, e.Kind, e.AmountCents, e.Status, e.Reference, e.CreatedAt)
	return mapErr(err)
}

func (p *Postgres) GetEntryForUpdate(ctx context.Context, tx Tx, entryID string) (*Entry, error) {
	var e Entry
	err := sqlTx(tx).QueryRowContext(ctx, `
		SELECT id, account_id, kind, amount_cents, status, reference, created_at
		FROM transactions WHERE id=$1 FOR UPDATE`, entryID).
		Scan(&e.ID, &e.AccountID, &e.Kind, &e.AmountCents, &e.Status, &e.Reference, &e.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (p *Postgres) UpdateEntryStatus(ctx context.Context, tx Tx, entryID string, status EntryStatus) error {
	res, err := sqlTx(tx).ExecContext(ctx,
		`UPDATE transactions SET status=$1 WHERE id=$2`, status, entryID)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) InsertBet(ctx context.Context, tx Tx, b *Bet) error {
	_, err := sqlTx(tx).ExecContext(ctx, `
		INSERT INTO bets (id, account_id, match_id, selection, odd_value, stake_cents, potential_win_cents, status, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.AccountID, b.MatchID, b.Selection, b.OddValue, b.StakeCents, b.PotentialWinCents, b.Status, b.PlacedAt)
	return mapErr(err)
}

func (p *Postgres) GetBetForUpdate(ctx context.Context, tx Tx, betID string) (*Bet, error) {
	var b Bet
	var settledAt sql.NullTime
	err := sqlTx(tx).QueryRowContext(ctx, `
		SELECT id, account_id, match_id, selection, odd_value, stake_cents, potential_win_cents, status, placed_at, settled_at
		FROM bets WHERE id=$1 FOR UPDATE`, betID).
		Scan(&b.ID, &b.AccountID, &b.MatchID, &b.Selection, &b.OddValue, &b.StakeCents, &b.PotentialWinCents, &b.Status, &b.PlacedAt, &settledAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if settledAt.Valid {
		b.SettledAt = &settledAt.Time
	}
	return &b, nil
}

func (p *Postgres) UpdateBetStatus(ctx context.Context, tx Tx, betID string, status BetStatus, settledAt time.Time) error {
	res, err := sqlTx(tx).ExecContext(ctx,
		`UPDATE bets SET status=$1, settled_at=$2 WHERE id=$3`, status, settledAt, betID)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) InsertOutbox(ctx context.Context, tx Tx, rec *OutboxRecord) error {
	err := sqlTx(tx).QueryRowContext(ctx, `
		INSERT INTO outbox_events (event_type, account_id, payload, created_at)
		VALUES ($1,$2,$3,$4) RETURNING id`,
		rec.Type, rec.AccountID, rec.Payload, rec.CreatedAt).Scan(&rec.ID)
	return mapErr(err)
}

func (p *Postgres) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	var a Account
	err := p.db.QueryRowContext(ctx, `
		SELECT id, balance_cents, version, created_at, updated_at
		FROM accounts WHERE id=$1`, accountID).
		Scan(&a.ID, &a.BalanceCents, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (p *Postgres) GetBet(ctx context.Context, betID string) (*Bet, error) {
	var b Bet
	var settledAt sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT id, account_id, match_id, selection, odd_value, stake_cents, potential_win_cents, status, placed_at, settled_at
		FROM bets WHERE id=$1`, betID).
		Scan(&b.ID, &b.AccountID, &b.MatchID, &b.Selection, &b.OddValue, &b.StakeCents, &b.PotentialWinCents, &b.Status, &b.PlacedAt, &settledAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if settledAt.Valid {
		b.SettledAt = &settledAt.Time
	}
	return &b, nil
}

func (p *Postgres) GetEntry(ctx context.Context, entryID string) (*Entry, error) {
	var e Entry
	err := p.db.QueryRowContext(ctx, `
		SELECT id, account_id, kind, amount_cents, status, reference, created_at
		FROM transactions WHERE id=$1`, entryID).
		Scan(&e.ID, &e.AccountID, &e.Kind, &e.AmountCents, &e.Status, &e.Reference, &e.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (p *Postgres) ListBets(ctx context.Context, accountID string, status BetStatus, limit, offset int) ([]Bet, error) {
	q := `
		SELECT id, account_id, match_id, selection, odd_value, stake_cents, potential_win_cents, status, placed_at, settled_at
		FROM bets WHERE account_id=$1`
	args := []any{accountID}
	if status != "" {
		q += ` AND status=$2`
		args = append(args, status)
	}
	q += ` ORDER BY placed_at DESC`
	if limit > 0 {
		q += ` LIMIT ` + itoa(limit) + ` OFFSET ` + itoa(offset)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []Bet
	for rows.Next() {
		var b Bet
		var settledAt sql.NullTime
		if err := rows.Scan(&b.ID, &b.AccountID, &b.MatchID, &b.Selection, &b.OddValue, &b.StakeCents, &b.PotentialWinCents, &b.Status, &b.PlacedAt, &settledAt); err != nil {
			return nil, err
		}
		if settledAt.Valid {
			b.SettledAt = &settledAt.Time
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) ListPendingBetIDsByMatch(ctx context.Context, matchID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id FROM bets WHERE match_id=$1 AND status='pending' ORDER BY placed_at`, matchID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *Postgres) HasPendingBets(ctx context.Context, tx Tx, accountID string) (bool, error) {
	var exists bool
	err := sqlTx(tx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bets WHERE account_id=$1 AND status='pending')`, accountID).
		Scan(&exists)
	return exists, mapErr(err)
}

func (p *Postgres) ListEntries(ctx context.Context, accountID string, kind EntryKind, limit, offset int) ([]Entry, error) {
	q := `
		SELECT id, account_id, kind, amount_cents, status, reference, created_at
		FROM transactions WHERE account_id=$1`
	args := []any{accountID}
	if kind != "" {
		q += ` AND kind=$2`
		args = append(args, kind)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += ` LIMIT ` + itoa(limit) + ` OFFSET ` + itoa(offset)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.AmountCents, &e.Status, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SumCompleted soma os lançamentos completed da conta; é a consulta de
// auditoria do invariante saldo == soma(completed).
func (p *Postgres) SumCompleted(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions WHERE account_id=$1 AND status='completed'`, accountID).
		Scan(&sum)
	return sum, mapErr(err)
}

func (p *Postgres) FetchUnsentOutbox(ctx context.Context, limit int) ([]OutboxRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, event_type, account_id, payload, created_at
		FROM outbox_events WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.AccountID, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkOutboxSent(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE outbox_events SET sent_at=NOW() WHERE id=$1 AND sent_at IS NULL`, id)
	return mapErr(err)
}

func itoa(n int) string {
	if n < 0 {
		n = 0
	}
	return strconv.Itoa(n)
}
