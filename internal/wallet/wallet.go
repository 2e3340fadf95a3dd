package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/ledger"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrPendingBets bloqueia saque enquanto houver aposta pending: o stake já
	// saiu do saldo, mas a liquidação ainda pode creditar de volta.
	ErrPendingBets = errors.New("account has pending bets")

	ErrNotDeposit    = errors.New("entry is not a deposit")
	ErrNotReversible = errors.New("entry is not a reversible withdrawal")
)

const txTimeout = 5 * time.Second

// Service expõe depósito e saque por cima do ledger. Depósito é em duas
// fases (pending até confirmação do provedor de pagamento); saque debita na
// hora e tem reversão compensatória quando o pagamento falha.
type Service struct {
	log  *zap.Logger
	repo ledger.Repository
}

func NewService(log *zap.Logger, repo ledger.Repository) *Service {
	return &Service{log: log, repo: repo}
}

// Deposit cria o lançamento pending; o saldo só muda em ConfirmDeposit.
func (s *Service) Deposit(ctx context.Context, accountID string, amountCents int64) (*ledger.Entry, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := ledger.GetOrCreateAccount(ctx, s.repo, accountID); err != nil {
		return nil, err
	}

	e, err := ledger.ApplyEntry(ctx, s.repo, ledger.EntryParams{
		AccountID:   accountID,
		Kind:        ledger.KindDeposit,
		AmountCents: amountCents,
		Status:      ledger.EntryPending,
		Reference:   depositRef(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit created",
		zap.String("accountId", accountID),
		zap.String("entryId", e.ID),
		zap.Int64("amountCents", amountCents))
	return e, nil
}

// ConfirmDeposit aplica o crédito de um depósito pending. Idempotente via
// ledger: se o lançamento já saiu de pending, devolve o estado atual.
func (s *Service) ConfirmDeposit(ctx context.Context, entryID string) (*ledger.Entry, error) {
	if err := s.requireDeposit(ctx, entryID); err != nil {
		return nil, err
	}
	e, err := ledger.CompleteEntry(ctx, s.repo, entryID, ledger.EntryCompleted)
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit confirmed", zap.String("entryId", entryID), zap.String("status", string(e.Status)))
	return e, nil
}

// FailDeposit marca o depósito como failed; nenhum saldo foi tocado.
func (s *Service) FailDeposit(ctx context.Context, entryID string) (*ledger.Entry, error) {
	if err := s.requireDeposit(ctx, entryID); err != nil {
		return nil, err
	}
	e, err := ledger.CompleteEntry(ctx, s.repo, entryID, ledger.EntryFailed)
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit failed", zap.String("entryId", entryID))
	return e, nil
}

func (s *Service) requireDeposit(ctx context.Context, entryID string) error {
	e, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if e.Kind != ledger.KindDeposit {
		return ErrNotDeposit
	}
	return nil
}

// Withdraw debita o valor imediatamente (hold). Recusado se a conta tem
// aposta pending ou saldo insuficiente. A checagem de aposta pending roda na
// mesma transação do débito, atrás do lock da conta: uma aposta concorrente
// ou já commitou (e bloqueia o saque) ou ainda espera o lock.
func (s *Service) Withdraw(ctx context.Context, accountID string, amountCents int64) (*ledger.Entry, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acc, err := s.repo.GetAccountForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	pending, err := s.repo.HasPendingBets(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrPendingBets
	}

	newBal := acc.BalanceCents - amountCents
	if newBal < 0 {
		return nil, ledger.ErrInsufficientFunds
	}

	e := &ledger.Entry{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        ledger.KindWithdrawal,
		AmountCents: -amountCents,
		Status:      ledger.EntryCompleted,
		Reference:   withdrawalRef(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertEntry(ctx, tx, e); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateBalance(ctx, tx, accountID, newBal); err != nil {
		return nil, err
	}
	if err := s.repo.InsertOutbox(ctx, tx, ledger.BalanceChangedRecord(e, newBal)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.log.Info("withdrawal executed",
		zap.String("accountId", accountID),
		zap.String("entryId", e.ID),
		zap.Int64("amountCents", amountCents))
	return e, nil
}

// ReverseWithdrawal credita de volta um saque cujo pagamento falhou.
// O lançamento compensatório tem ID determinístico derivado do saque: a chave
// primária garante no máximo uma reversão; repetir devolve a já aplicada.
func (s *Service) ReverseWithdrawal(ctx context.Context, entryID string) (*ledger.Entry, error) {
	reversalID := "rev_" + entryID

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	orig, err := s.repo.GetEntryForUpdate(ctx, tx, entryID)
	if err != nil {
		return nil, err
	}
	if orig.Kind != ledger.KindWithdrawal || orig.Status != ledger.EntryCompleted || orig.AmountCents >= 0 {
		return nil, ErrNotReversible
	}

	now := time.Now().UTC()
	rev := &ledger.Entry{
		ID:          reversalID,
		AccountID:   orig.AccountID,
		Kind:        ledger.KindWithdrawal,
		AmountCents: -orig.AmountCents,
		Status:      ledger.EntryCompleted,
		Reference:   "reversal_" + entryID,
		CreatedAt:   now,
	}
	if err := s.repo.InsertEntry(ctx, tx, rev); err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			// já revertido por uma chamada anterior
			_ = tx.Rollback()
			return s.repo.GetEntry(ctx, reversalID)
		}
		return nil, err
	}

	acc, err := s.repo.GetAccountForUpdate(ctx, tx, orig.AccountID)
	if err != nil {
		return nil, err
	}
	newBal := acc.BalanceCents + rev.AmountCents
	if err := s.repo.UpdateBalance(ctx, tx, orig.AccountID, newBal); err != nil {
		return nil, err
	}
	if err := s.repo.InsertOutbox(ctx, tx, ledger.BalanceChangedRecord(rev, newBal)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.log.Info("withdrawal reversed",
		zap.String("entryId", entryID),
		zap.Int64("amountCents", rev.AmountCents))
	return rev, nil
}

// Balance devolve a conta, criando com saldo zero no primeiro acesso.
func (s *Service) Balance(ctx context.Context, accountID string) (*ledger.Account, error) {
	return ledger.GetOrCreateAccount(ctx, s.repo, accountID)
}

// Statement lista os lançamentos da conta, mais recentes primeiro.
func (s *Service) Statement(ctx context.Context, accountID string, kind ledger.EntryKind, limit, offset int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListEntries(ctx, accountID, kind, limit, offset)
}

func depositRef() string {
	return fmt.Sprintf("dep_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

func withdrawalRef() string {
	return fmt.Sprintf("wth_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
