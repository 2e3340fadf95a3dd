package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
)

type fixture struct {
	eng     *Engine
	repo    *ledger.Memory
	matches *match.Memory
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := ledger.NewMemory()
	matches := match.NewMemory()
	now := time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC)

	eng := New(zap.NewNop(), repo, matches, DefaultPolicy())
	eng.now = func() time.Time { return now }

	return &fixture{eng: eng, repo: repo, matches: matches, now: now}
}

// seedAccount cria a conta e deposita o saldo inicial via ledger.
func (f *fixture) seedAccount(t *testing.T, accountID string, balanceCents int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := ledger.GetOrCreateAccount(ctx, f.repo, accountID); err != nil {
		t.Fatal(err)
	}
	if balanceCents == 0 {
		return
	}
	_, err := ledger.ApplyEntry(ctx, f.repo, ledger.EntryParams{
		AccountID:   accountID,
		Kind:        ledger.KindDeposit,
		AmountCents: balanceCents,
		Status:      ledger.EntryCompleted,
		Reference:   "seed",
	})
	if err != nil {
		t.Fatal(err)
	}
}

// seedMatch cria uma partida upcoming que começa startIn depois de agora.
func (f *fixture) seedMatch(t *testing.T, matchID string, startIn time.Duration) {
	t.Helper()
	err := f.matches.Create(context.Background(), &match.Match{
		ID:        matchID,
		HomeTeam:  "Santos",
		AwayTeam:  "Gremio",
		League:    "Serie A",
		StartTime: f.now.Add(startIn),
		Status:    match.StatusUpcoming,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) finishMatch(t *testing.T, matchID string, home, away int) {
	t.Helper()
	if _, err := f.matches.UpdateScore(context.Background(), matchID, home, away, match.StatusFinished); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	acc, err := f.repo.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatal(err)
	}
	return acc.BalanceCents
}

// assertConservation confere o contrato de auditoria: saldo == soma dos
// lançamentos completed.
func (f *fixture) assertConservation(t *testing.T, accountID string) {
	t.Helper()
	sum, err := f.repo.SumCompleted(context.Background(), accountID)
	if err != nil {
		t.Fatal(err)
	}
	if bal := f.balance(t, accountID); bal != sum {
		t.Fatalf("balance %d != sum of completed entries %d", bal, sum)
	}
}

func TestPlaceBetDebitsStakeAndFreezesOdd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000) // R$100
	f.seedMatch(t, "m1", time.Hour)

	bet, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 5_000, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if bet.Status != ledger.BetPending {
		t.Fatalf("status = %s, want pending", bet.Status)
	}
	if bet.PotentialWinCents != 10_000 {
		t.Fatalf("potential win = %d, want 10000", bet.PotentialWinCents)
	}
	if got := f.balance(t, "u1"); got != 5_000 {
		t.Fatalf("balance = %d, want 5000", got)
	}
	f.assertConservation(t, "u1")
}

func TestPlaceBetInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "u1", 1_000)
	f.seedMatch(t, "m1", time.Hour)

	_, err := f.eng.PlaceBet(context.Background(), "u1", "m1", ledger.SelectionHome, 5_000, 2.0)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := f.balance(t, "u1"); got != 1_000 {
		t.Fatalf("failed bet must not touch balance: %d", got)
	}
}

func TestPlaceBetWindowClosed(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", 3*time.Minute) // dentro da janela de 5 min

	_, err := f.eng.PlaceBet(context.Background(), "u1", "m1", ledger.SelectionHome, 1_000, 2.0)
	if !errors.Is(err, ErrBettingWindowClosed) {
		t.Fatalf("expected ErrBettingWindowClosed, got %v", err)
	}
}

func TestPlaceBetWindowBoundary(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", 5*time.Minute) // exatamente no limite: permitido

	if _, err := f.eng.PlaceBet(context.Background(), "u1", "m1", ledger.SelectionHome, 1_000, 2.0); err != nil {
		t.Fatalf("bet at exact window boundary must succeed, got %v", err)
	}
}

func TestPlaceBetPolicyChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000_000)
	f.seedMatch(t, "m1", time.Hour)

	if _, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 50, 2.0); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("below min stake: got %v", err)
	}
	if _, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 2_000_000, 2.0); !errors.Is(err, ErrInvalidStake) {
		t.Fatalf("above max stake: got %v", err)
	}
	if _, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 1_000, 1.0); !errors.Is(err, ErrInvalidOdd) {
		t.Fatalf("odd below floor: got %v", err)
	}
	if _, err := f.eng.PlaceBet(ctx, "u1", "m1", "banana", 1_000, 2.0); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("invalid selection: got %v", err)
	}
}

func TestPlaceBetMatchNotOpen(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", time.Hour)
	f.finishMatch(t, "m1", 1, 0)

	_, err := f.eng.PlaceBet(context.Background(), "u1", "m1", ledger.SelectionHome, 1_000, 2.0)
	if !errors.Is(err, ErrMatchNotOpen) {
		t.Fatalf("expected ErrMatchNotOpen, got %v", err)
	}
}

func TestCancelBetRefundsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", time.Hour)

	bet, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 5_000, 2.0)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.eng.CancelBet(ctx, "u1", bet.ID); err != nil {
		t.Fatal(err)
	}
	if got := f.balance(t, "u1"); got != 10_000 {
		t.Fatalf("balance after cancel = %d, want 10000", got)
	}

	stored, err := f.repo.GetBet(ctx, bet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != ledger.BetCancelled || stored.SettledAt == nil {
		t.Fatalf("bet = %+v, want cancelled with settledAt", stored)
	}

	// Segundo cancelamento não pode reembolsar de novo.
	if err := f.eng.CancelBet(ctx, "u1", bet.ID); !errors.Is(err, ErrCannotCancel) {
		t.Fatalf("expected ErrCannotCancel, got %v", err)
	}
	if got := f.balance(t, "u1"); got != 10_000 {
		t.Fatalf("double cancel changed balance: %d", got)
	}

	// Reembolso referencia a aposta original.
	entries, err := f.repo.ListEntries(ctx, "u1", ledger.KindBetStake, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range entries {
		if e.Reference == "refund_"+bet.ID && e.AmountCents == 5_000 {
			found = true
		}
	}
	if !found {
		t.Fatal("refund entry with refund_<betId> reference not found")
	}
	f.assertConservation(t, "u1")
}

func TestCancelBetWrongOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedAccount(t, "u2", 10_000)
	f.seedMatch(t, "m1", time.Hour)

	bet, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 1_000, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.eng.CancelBet(ctx, "u2", bet.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("foreign bet must read as not found, got %v", err)
	}
}

func TestCancelBetAfterStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", 10*time.Minute)

	bet, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 1_000, 2.0)
	if err != nil {
		t.Fatal(err)
	}

	f.eng.now = func() time.Time { return f.now.Add(15 * time.Minute) }
	if err := f.eng.CancelBet(ctx, "u1", bet.ID); !errors.Is(err, ErrCannotCancel) {
		t.Fatalf("expected ErrCannotCancel after start, got %v", err)
	}
}

func TestSettleBetWonCreditsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", time.Hour)

	bet, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 5_000, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	f.finishMatch(t, "m1", 2, 1)

	if err := f.eng.SettleBet(ctx, bet.ID, ledger.SelectionHome); err != nil {
		t.Fatal(err)
	}
	if got := f.balance(t, "u1"); got != 15_000 {
		t.Fatalf("balance = %d, want 15000", got)
	}

	// Segunda liquidação é no-op, não um segundo crédito.
	if err := f.eng.SettleBet(ctx, bet.ID, ledger.SelectionHome); err != nil {
		t.Fatal(err)
	}
	if got := f.balance(t, "u1"); got != 15_000 {
		t.Fatalf("double settlement changed balance: %d", got)
	}

	stored, err := f.repo.GetBet(ctx, bet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != ledger.BetWon || stored.SettledAt == nil {
		t.Fatalf("bet = %+v, want won with settledAt", stored)
	}
	f.assertConservation(t, "u1")
}

func TestSettleBetRequiresFinishedMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", time.Hour)

	bet, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 5_000, 2.0)
	if err != nil {
		t.Fatal(err)
	}

	// Partida ainda upcoming: nada de pagar antecipado.
	if err := f.eng.SettleBet(ctx, bet.ID, ledger.SelectionHome); !errors.Is(err, ErrMatchNotFinished) {
		t.Fatalf("expected ErrMatchNotFinished, got %v", err)
	}
	if got := f.balance(t, "u1"); got != 5_000 {
		t.Fatalf("balance changed on refused settlement: %d", got)
	}
	stored, _ := f.repo.GetBet(ctx, bet.ID)
	if stored.Status != ledger.BetPending {
		t.Fatalf("status = %s, want pending", stored.Status)
	}
	f.assertConservation(t, "u1")
}

func TestSettleBetLostNoCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", time.Hour)

	bet, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 5_000, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	f.finishMatch(t, "m1", 0, 3)

	if err := f.eng.SettleBet(ctx, bet.ID, ledger.SelectionAway); err != nil {
		t.Fatal(err)
	}
	if got := f.balance(t, "u1"); got != 5_000 {
		t.Fatalf("lost bet must not credit: balance %d", got)
	}
	stored, _ := f.repo.GetBet(ctx, bet.ID)
	if stored.Status != ledger.BetLost {
		t.Fatalf("status = %s, want lost", stored.Status)
	}
	f.assertConservation(t, "u1")
}

func TestSettleMatchResolvesAllPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedAccount(t, "u2", 10_000)
	f.seedMatch(t, "m1", time.Hour)

	b1, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 2_000, 3.0)
	if err != nil {
		t.Fatal(err)
	}
	b2, err := f.eng.PlaceBet(ctx, "u2", "m1", ledger.SelectionDraw, 2_000, 3.5)
	if err != nil {
		t.Fatal(err)
	}

	f.finishMatch(t, "m1", 2, 0) // casa vence

	n, err := f.eng.SettleMatch(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("settled = %d, want 2", n)
	}

	s1, _ := f.repo.GetBet(ctx, b1.ID)
	s2, _ := f.repo.GetBet(ctx, b2.ID)
	if s1.Status != ledger.BetWon || s2.Status != ledger.BetLost {
		t.Fatalf("statuses = %s/%s, want won/lost", s1.Status, s2.Status)
	}
	if got := f.balance(t, "u1"); got != 14_000 {
		t.Fatalf("winner balance = %d, want 14000", got)
	}
	if got := f.balance(t, "u2"); got != 8_000 {
		t.Fatalf("loser balance = %d, want 8000", got)
	}

	// Reprocessar a partida é seguro.
	n, err = f.eng.SettleMatch(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("resettle = %d, want 0", n)
	}
}

func TestSettleMatchNotFinished(t *testing.T) {
	f := newFixture(t)
	f.seedMatch(t, "m1", time.Hour)

	if _, err := f.eng.SettleMatch(context.Background(), "m1"); !errors.Is(err, ErrMatchNotFinished) {
		t.Fatalf("expected ErrMatchNotFinished, got %v", err)
	}
}

func TestConcurrentPlacementsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", time.Hour)

	// 10 apostas de 3000 numa conta com 10000: no máximo 3 podem passar.
	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 3_000, 2.0)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	ok, insufficient := 0, 0
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ledger.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 3 || insufficient != 7 {
		t.Fatalf("ok=%d insufficient=%d, want 3/7", ok, insufficient)
	}
	if got := f.balance(t, "u1"); got != 1_000 {
		t.Fatalf("balance = %d, want 1000", got)
	}
	f.assertConservation(t, "u1")
}

func TestConcurrentSettlementSingleCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 10_000)
	f.seedMatch(t, "m1", time.Hour)

	bet, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 5_000, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	f.finishMatch(t, "m1", 1, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.eng.SettleBet(ctx, bet.ID, ledger.SelectionHome)
		}()
	}
	wg.Wait()

	if got := f.balance(t, "u1"); got != 15_000 {
		t.Fatalf("balance = %d, want exactly one credit (15000)", got)
	}
	f.assertConservation(t, "u1")
}

func TestAccountStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAccount(t, "u1", 50_000)
	f.seedMatch(t, "m1", time.Hour)
	f.seedMatch(t, "m2", time.Hour)

	if _, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 5_000, 2.0); err != nil {
		t.Fatal(err)
	}
	if _, err := f.eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionAway, 3_000, 4.0); err != nil {
		t.Fatal(err)
	}
	cancelled, err := f.eng.PlaceBet(ctx, "u1", "m2", ledger.SelectionDraw, 2_000, 3.0)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.eng.CancelBet(ctx, "u1", cancelled.ID); err != nil {
		t.Fatal(err)
	}

	f.finishMatch(t, "m1", 1, 0)
	if _, err := f.eng.SettleMatch(ctx, "m1"); err != nil {
		t.Fatal(err)
	}

	st, err := f.eng.AccountStats(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 3 || st.Won != 1 || st.Lost != 1 || st.Cancelled != 1 || st.Pending != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if st.TotalStakedCents != 8_000 {
		t.Fatalf("staked = %d, want 8000 (cancelled excluded)", st.TotalStakedCents)
	}
	if st.TotalWonCents != 10_000 {
		t.Fatalf("won = %d, want 10000", st.TotalWonCents)
	}
}
