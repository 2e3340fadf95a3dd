package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/pkg/contracts/events"
)

// txTimeout limita cada unidade atômica do engine; estouro vira rollback.
const txTimeout = 5 * time.Second

// Engine executa aposta, cancelamento e liquidação contra o ledger.
// Cada operação roda numa transação única com lock pessimista na conta:
// duas apostas concorrentes na mesma conta nunca leem saldo defasado.
type Engine struct {
	log     *zap.Logger
	repo    ledger.Repository
	matches match.Reader
	policy  Policy

	// now é injetável para testes de janela de aposta.
	now func() time.Time
}

func New(log *zap.Logger, repo ledger.Repository, matches match.Reader, policy Policy) *Engine {
	return &Engine{
		log:     log,
		repo:    repo,
		matches: matches,
		policy:  policy,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// PlaceBet valida as precondições dentro da mesma unidade atômica do débito:
// conta existe com saldo suficiente, partida aberta, janela de aposta vigente,
// stake e odd dentro da política. Odd e stake ficam congelados na aposta;
// potential_win é derivado uma única vez e nunca recalculado.
func (e *Engine) PlaceBet(ctx context.Context, accountID, matchID string, selection ledger.Selection, stakeCents int64, quotedOdd float64) (*ledger.Bet, error) {
	if !ledger.ValidSelection(selection) {
		return nil, ErrInvalidSelection
	}

	m, err := e.matches.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := e.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acc, err := e.repo.GetAccountForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.BalanceCents < stakeCents {
		return nil, ledger.ErrInsufficientFunds
	}
	if m.Status != match.StatusUpcoming {
		return nil, ErrMatchNotOpen
	}
	now := e.now()
	if m.StartTime.Sub(now) < e.policy.BettingWindow {
		return nil, ErrBettingWindowClosed
	}
	if stakeCents < e.policy.MinStakeCents || stakeCents > e.policy.MaxStakeCents {
		return nil, ErrInvalidStake
	}
	if quotedOdd < e.policy.MinOdd {
		return nil, ErrInvalidOdd
	}

	bet := &ledger.Bet{
		ID:                uuid.NewString(),
		AccountID:         accountID,
		MatchID:           matchID,
		Selection:         selection,
		OddValue:          quotedOdd,
		StakeCents:        stakeCents,
		PotentialWinCents: potentialWin(stakeCents, quotedOdd),
		Status:            ledger.BetPending,
		PlacedAt:          now,
	}
	if err := e.repo.InsertBet(ctx, tx, bet); err != nil {
		return nil, err
	}

	entry := &ledger.Entry{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        ledger.KindBetStake,
		AmountCents: -stakeCents,
		Status:      ledger.EntryCompleted,
		Reference:   "bet_" + bet.ID,
		CreatedAt:   now,
	}
	if err := e.repo.InsertEntry(ctx, tx, entry); err != nil {
		return nil, err
	}
	newBal := acc.BalanceCents - stakeCents
	if err := e.repo.UpdateBalance(ctx, tx, accountID, newBal); err != nil {
		return nil, err
	}

	if err := e.repo.InsertOutbox(ctx, tx, ledger.BalanceChangedRecord(entry, newBal)); err != nil {
		return nil, err
	}
	if err := e.repo.InsertOutbox(ctx, tx, betPlacedRecord(bet)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	e.log.Info("bet placed",
		zap.String("betId", bet.ID),
		zap.String("accountId", accountID),
		zap.String("matchId", matchID),
		zap.Int64("stakeCents", stakeCents),
		zap.Float64("odd", quotedOdd))
	return bet, nil
}

// CancelBet devolve o stake integral e marca a aposta cancelled (terminal).
// Só apostas pending de partidas ainda não iniciadas podem ser canceladas;
// cancelar de novo falha com ErrCannotCancel e nunca reembolsa em dobro.
func (e *Engine) CancelBet(ctx context.Context, accountID, betID string) error {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := e.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	bet, err := e.repo.GetBetForUpdate(ctx, tx, betID)
	if err != nil {
		return err
	}
	if bet.AccountID != accountID {
		return ledger.ErrNotFound
	}
	if bet.Status != ledger.BetPending {
		return ErrCannotCancel
	}

	m, err := e.matches.Get(ctx, bet.MatchID)
	if err != nil {
		return err
	}
	now := e.now()
	if m.Status != match.StatusUpcoming || !now.Before(m.StartTime) {
		return ErrCannotCancel
	}

	if err := e.repo.UpdateBetStatus(ctx, tx, betID, ledger.BetCancelled, now); err != nil {
		return err
	}

	acc, err := e.repo.GetAccountForUpdate(ctx, tx, accountID)
	if err != nil {
		return err
	}
	refundRef := "refund_" + betID
	entry := &ledger.Entry{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        ledger.KindBetStake,
		AmountCents: bet.StakeCents,
		Status:      ledger.EntryCompleted,
		Reference:   refundRef,
		CreatedAt:   now,
	}
	if err := e.repo.InsertEntry(ctx, tx, entry); err != nil {
		return err
	}
	newBal := acc.BalanceCents + bet.StakeCents
	if err := e.repo.UpdateBalance(ctx, tx, accountID, newBal); err != nil {
		return err
	}

	if err := e.repo.InsertOutbox(ctx, tx, ledger.BalanceChangedRecord(entry, newBal)); err != nil {
		return err
	}
	if err := e.repo.InsertOutbox(ctx, tx, betCancelledRecord(bet, refundRef, now)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	e.log.Info("bet cancelled",
		zap.String("betId", betID),
		zap.String("accountId", accountID),
		zap.Int64("refundCents", bet.StakeCents))
	return nil
}

// SettleBet resolve uma aposta pending contra a seleção vencedora. Recusa
// liquidar enquanto a partida não estiver finished.
// Exatamente uma vez: o lock na linha da aposta + checagem status != pending
// garantem no máximo um crédito de bet_win por aposta; a segunda chamada é
// no-op silencioso.
func (e *Engine) SettleBet(ctx context.Context, betID string, winner ledger.Selection) error {
	if !ledger.ValidSelection(winner) {
		return ErrInvalidSelection
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := e.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	bet, err := e.repo.GetBetForUpdate(ctx, tx, betID)
	if err != nil {
		return err
	}
	if bet.Status != ledger.BetPending {
		return nil // já liquidada (ou cancelada)
	}

	m, err := e.matches.Get(ctx, bet.MatchID)
	if err != nil {
		return err
	}
	if m.Status != match.StatusFinished {
		return ErrMatchNotFinished
	}

	now := e.now()
	final := ledger.BetLost
	var payout int64
	if bet.Selection == winner {
		final = ledger.BetWon
		payout = bet.PotentialWinCents
	}

	if err := e.repo.UpdateBetStatus(ctx, tx, betID, final, now); err != nil {
		return err
	}

	if final == ledger.BetWon {
		acc, err := e.repo.GetAccountForUpdate(ctx, tx, bet.AccountID)
		if err != nil {
			return err
		}
		entry := &ledger.Entry{
			ID:          uuid.NewString(),
			AccountID:   bet.AccountID,
			Kind:        ledger.KindBetWin,
			AmountCents: payout,
			Status:      ledger.EntryCompleted,
			Reference:   "payout_" + betID,
			CreatedAt:   now,
		}
		if err := e.repo.InsertEntry(ctx, tx, entry); err != nil {
			return err
		}
		newBal := acc.BalanceCents + payout
		if err := e.repo.UpdateBalance(ctx, tx, bet.AccountID, newBal); err != nil {
			return err
		}
		if err := e.repo.InsertOutbox(ctx, tx, ledger.BalanceChangedRecord(entry, newBal)); err != nil {
			return err
		}
	}

	if err := e.repo.InsertOutbox(ctx, tx, betSettledRecord(bet, final, payout, now)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	e.log.Info("bet settled",
		zap.String("betId", betID),
		zap.String("status", string(final)),
		zap.Int64("payoutCents", payout))
	return nil
}

// SettleMatch liquida todas as apostas pending de uma partida encerrada.
// Cada aposta roda na própria transação: a falha de uma não trava as demais,
// e reprocessar a partida é seguro (apostas já liquidadas viram no-op).
func (e *Engine) SettleMatch(ctx context.Context, matchID string) (int, error) {
	m, err := e.matches.Get(ctx, matchID)
	if err != nil {
		return 0, err
	}
	if m.Status != match.StatusFinished || m.HomeScore == nil || m.AwayScore == nil {
		return 0, ErrMatchNotFinished
	}
	winner := ledger.Selection(match.Winner(*m.HomeScore, *m.AwayScore))

	ids, err := e.repo.ListPendingBetIDsByMatch(ctx, matchID)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, betID := range ids {
		if err := e.SettleBet(ctx, betID, winner); err != nil {
			e.log.Error("settle failed", zap.String("betId", betID), zap.Error(err))
			continue
		}
		settled++
	}

	e.log.Info("match settled",
		zap.String("matchId", matchID),
		zap.String("winner", string(winner)),
		zap.Int("bets", settled))
	return settled, nil
}

// Stats é o resumo de apostas de uma conta.
type Stats struct {
	Total            int   `json:"total"`
	Pending          int   `json:"pending"`
	Won              int   `json:"won"`
	Lost             int   `json:"lost"`
	Cancelled        int   `json:"cancelled"`
	TotalStakedCents int64 `json:"total_staked_cents"`
	TotalWonCents    int64 `json:"total_won_cents"`
}

// AccountStats percorre as apostas da conta e agrega contagens e volumes.
// Apostas canceladas não contam como volume apostado.
func (e *Engine) AccountStats(ctx context.Context, accountID string) (*Stats, error) {
	const page = 500
	var st Stats
	for offset := 0; ; offset += page {
		bets, err := e.repo.ListBets(ctx, accountID, "", page, offset)
		if err != nil {
			return nil, err
		}
		for _, b := range bets {
			st.Total++
			switch b.Status {
			case ledger.BetPending:
				st.Pending++
				st.TotalStakedCents += b.StakeCents
			case ledger.BetWon:
				st.Won++
				st.TotalStakedCents += b.StakeCents
				st.TotalWonCents += b.PotentialWinCents
			case ledger.BetLost:
				st.Lost++
				st.TotalStakedCents += b.StakeCents
			case ledger.BetCancelled:
				st.Cancelled++
			}
		}
		if len(bets) < page {
			break
		}
	}
	return &st, nil
}

// potentialWin arredonda stake * odd para o centavo mais próximo.
func potentialWin(stakeCents int64, odd float64) int64 {
	return int64(math.Round(float64(stakeCents) * odd))
}

func betPlacedRecord(b *ledger.Bet) *ledger.OutboxRecord {
	payload, _ := json.Marshal(events.BetPlaced{
		BetID:             b.ID,
		AccountID:         b.AccountID,
		MatchID:           b.MatchID,
		Selection:         string(b.Selection),
		OddValue:          b.OddValue,
		StakeCents:        b.StakeCents,
		PotentialWinCents: b.PotentialWinCents,
		PlacedAt:          b.PlacedAt,
	})
	return &ledger.OutboxRecord{
		Type:      events.TypeBetPlaced,
		AccountID: b.AccountID,
		Payload:   payload,
		CreatedAt: b.PlacedAt,
	}
}

func betCancelledRecord(b *ledger.Bet, refundRef string, now time.Time) *ledger.OutboxRecord {
	payload, _ := json.Marshal(events.BetCancelled{
		BetID:       b.ID,
		AccountID:   b.AccountID,
		RefundCents: b.StakeCents,
		CancelledAt: now,
		RefundRef:   refundRef,
	})
	return &ledger.OutboxRecord{
		Type:      events.TypeBetCancelled,
		AccountID: b.AccountID,
		Payload:   payload,
		CreatedAt: now,
	}
}

func betSettledRecord(b *ledger.Bet, final ledger.BetStatus, payout int64, now time.Time) *ledger.OutboxRecord {
	payload, _ := json.Marshal(events.BetSettled{
		BetID:       b.ID,
		AccountID:   b.AccountID,
		MatchID:     b.MatchID,
		Status:      string(final),
		PayoutCents: payout,
		SettledAt:   now,
	})
	return &ledger.OutboxRecord{
		Type:      events.TypeBetSettled,
		AccountID: b.AccountID,
		Payload:   payload,
		CreatedAt: now,
	}
}
