package outbox

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/pkg/contracts/events"
)

// fakeSink acumula envelopes e pode falhar a partir de um índice.
type fakeSink struct {
	got     []events.Envelope
	failAt  int // -1 = nunca falha
	emitted int
}

func (f *fakeSink) Emit(_ context.Context, ev events.Envelope) error {
	if f.failAt >= 0 && f.emitted >= f.failAt {
		return errors.New("sink down")
	}
	f.emitted++
	f.got = append(f.got, ev)
	return nil
}

func seedOutbox(t *testing.T, repo *ledger.Memory, types ...string) {
	t.Helper()
	ctx := context.Background()
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range types {
		rec := &ledger.OutboxRecord{Type: typ, AccountID: "u1", Payload: []byte(`{}`)}
		if err := repo.InsertOutbox(ctx, tx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestDispatchDeliversInOrderAndMarksSent(t *testing.T) {
	repo := ledger.NewMemory()
	seedOutbox(t, repo, events.TypeBetPlaced, events.TypeBalanceChanged, events.TypeBetSettled)

	sink := &fakeSink{failAt: -1}
	var fetched, delivered int
	d := &Dispatcher{
		Log:         zap.NewNop(),
		Repo:        repo,
		Sink:        sink,
		OnFetched:   func(n int) { fetched += n },
		OnDelivered: func() { delivered++ },
	}

	n, err := d.Dispatch(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || delivered != 3 || fetched != 3 {
		t.Fatalf("n=%d delivered=%d fetched=%d, want 3/3/3", n, delivered, fetched)
	}

	want := []string{events.TypeBetPlaced, events.TypeBalanceChanged, events.TypeBetSettled}
	for i, ev := range sink.got {
		if ev.Type != want[i] {
			t.Fatalf("order broken at %d: got %s, want %s", i, ev.Type, want[i])
		}
	}

	// Tudo marcado: segundo passe não entrega nada.
	n, err = d.Dispatch(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("redispatch delivered %d, want 0", n)
	}
}

func TestDispatchStopsOnSinkFailure(t *testing.T) {
	repo := ledger.NewMemory()
	seedOutbox(t, repo, events.TypeBetPlaced, events.TypeBetCancelled, events.TypeBetSettled)

	sink := &fakeSink{failAt: 1}
	var stages []string
	d := &Dispatcher{
		Log:     zap.NewNop(),
		Repo:    repo,
		Sink:    sink,
		OnError: func(stage string) { stages = append(stages, stage) },
	}

	n, err := d.Dispatch(context.Background(), 10)
	if err == nil {
		t.Fatal("expected sink error")
	}
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if len(stages) != 1 || stages[0] != "emit" {
		t.Fatalf("stages = %v", stages)
	}

	// Sink volta: os dois restantes saem na ordem original.
	sink.failAt = -1
	n, err = d.Dispatch(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("retry delivered = %d, want 2", n)
	}
	if sink.got[1].Type != events.TypeBetCancelled || sink.got[2].Type != events.TypeBetSettled {
		t.Fatalf("retry order broken: %s, %s", sink.got[1].Type, sink.got[2].Type)
	}
}

func TestDispatchHonorsLimit(t *testing.T) {
	repo := ledger.NewMemory()
	seedOutbox(t, repo, events.TypeBetPlaced, events.TypeBetPlaced, events.TypeBetPlaced)

	sink := &fakeSink{failAt: -1}
	d := &Dispatcher{Log: zap.NewNop(), Repo: repo, Sink: sink}

	n, err := d.Dispatch(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
}
