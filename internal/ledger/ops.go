package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/bet-core/pkg/contracts/events"
)

// txTimeout limita a duração da unidade atômica no storage; estouro de prazo
// vira rollback completo, nunca commit parcial.
const txTimeout = 5 * time.Second

// EntryParams descreve um lançamento a aplicar via ApplyEntry.
type EntryParams struct {
	AccountID   string
	Kind        EntryKind
	AmountCents int64 // assinado: débito negativo, crédito positivo
	Status      EntryStatus
	Reference   string
}

// ApplyEntry cria o lançamento e, quando Status == completed, ajusta o saldo
// da conta na mesma transação. Recusa com ErrInsufficientFunds qualquer ajuste
// que deixaria o saldo negativo, antes do commit. Lançamentos completed também
// gravam um evento balance_changed no outbox; extras entram na mesma unidade.
func ApplyEntry(ctx context.Context, repo Repository, p EntryParams, extra ...*OutboxRecord) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acc, err := repo.GetAccountForUpdate(ctx, tx, p.AccountID)
	if err != nil {
		return nil, err
	}

	e := &Entry{
		ID:          uuid.NewString(),
		AccountID:   p.AccountID,
		Kind:        p.Kind,
		AmountCents: p.AmountCents,
		Status:      p.Status,
		Reference:   p.Reference,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.InsertEntry(ctx, tx, e); err != nil {
		return nil, err
	}

	if p.Status == EntryCompleted {
		newBal := acc.BalanceCents + p.AmountCents
		if newBal < 0 {
			return nil, ErrInsufficientFunds
		}
		if err := repo.UpdateBalance(ctx, tx, p.AccountID, newBal); err != nil {
			return nil, err
		}
		if err := repo.InsertOutbox(ctx, tx, BalanceChangedRecord(e, newBal)); err != nil {
			return nil, err
		}
	}

	for _, rec := range extra {
		if err := repo.InsertOutbox(ctx, tx, rec); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// CompleteEntry avança um lançamento pending para completed ou failed.
// Idempotente: se o lançamento já saiu de pending, devolve o estado atual sem
// efeito algum. A aplicação do valor no saldo acontece só na conclusão.
func CompleteEntry(ctx context.Context, repo Repository, entryID string, final EntryStatus, extra ...*OutboxRecord) (*Entry, error) {
	if final != EntryCompleted && final != EntryFailed {
		return nil, fmt.Errorf("invalid final status %q", final)
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	e, err := repo.GetEntryForUpdate(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	if e.Status != EntryPending {
		return e, nil // já tratado
	}

	if err := repo.UpdateEntryStatus(ctx, tx, entryID, final); err != nil {
		return nil, err
	}
	e.Status = final

	if final == EntryCompleted {
		acc, err := repo.GetAccountForUpdate(ctx, tx, e.AccountID)
		if err != nil {
			return nil, err
		}
		newBal := acc.BalanceCents + e.AmountCents
		if newBal < 0 {
			return nil, ErrInsufficientFunds
		}
		if err := repo.UpdateBalance(ctx, tx, e.AccountID, newBal); err != nil {
			return nil, err
		}
		if err := repo.InsertOutbox(ctx, tx, BalanceChangedRecord(e, newBal)); err != nil {
			return nil, err
		}
	}

	for _, rec := range extra {
		if err := repo.InsertOutbox(ctx, tx, rec); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// GetOrCreateAccount devolve a conta do usuário, criando com saldo zero se não
// existir.
func GetOrCreateAccount(ctx context.Context, repo Repository, accountID string) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acc, err := repo.GetAccountForUpdate(ctx, tx, accountID)
	if err == nil {
		if cerr := tx.Commit(); cerr != nil {
			return nil, cerr
		}
		return acc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	acc = &Account{ID: accountID, BalanceCents: 0, Version: 1, CreatedAt: now, UpdatedAt: now}
	if err := repo.InsertAccount(ctx, tx, acc); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return acc, nil
}

// BalanceChangedRecord monta o registro de outbox para uma mudança de saldo.
func BalanceChangedRecord(e *Entry, newBalanceCents int64) *OutboxRecord {
	payload, _ := json.Marshal(events.BalanceChanged{
		AccountID:    e.AccountID,
		DeltaCents:   e.AmountCents,
		BalanceCents: newBalanceCents,
		EntryID:      e.ID,
		Kind:         string(e.Kind),
		Reference:    e.Reference,
	})
	return &OutboxRecord{
		Type:      events.TypeBalanceChanged,
		AccountID: e.AccountID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
