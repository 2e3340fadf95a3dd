package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/bet-core/internal/engine"
	"github.com/radieske/bet-core/internal/ledger"
	"github.com/radieske/bet-core/internal/match"
	"github.com/radieske/bet-core/pkg/contracts/events"
)

func TestProcessOneAppliesScoreAndSettles(t *testing.T) {
	log := zap.NewNop()
	repo := ledger.NewMemory()
	matches := match.NewMemory()
	eng := engine.New(log, repo, matches, engine.DefaultPolicy())

	ctx := context.Background()
	if _, err := ledger.GetOrCreateAccount(ctx, repo, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.ApplyEntry(ctx, repo, ledger.EntryParams{
		AccountID: "u1", Kind: ledger.KindDeposit, AmountCents: 10_000, Status: ledger.EntryCompleted,
	}); err != nil {
		t.Fatal(err)
	}
	if err := matches.Create(ctx, &match.Match{
		ID: "m1", HomeTeam: "A", AwayTeam: "B", League: "L",
		StartTime: time.Now().Add(time.Hour), Status: match.StatusUpcoming,
	}); err != nil {
		t.Fatal(err)
	}
	bet, err := eng.PlaceBet(ctx, "u1", "m1", ledger.SelectionHome, 2_000, 2.5)
	if err != nil {
		t.Fatal(err)
	}

	var settled int
	c := &ResultConsumer{
		Log:       log,
		Matches:   matches,
		Engine:    eng,
		OnSettled: func(n int) { settled += n },
	}

	res := &events.MatchResult{MatchID: "m1", HomeScore: 3, AwayScore: 1}
	if err := c.processOne(ctx, res); err != nil {
		t.Fatal(err)
	}
	if settled != 1 {
		t.Fatalf("settled = %d, want 1", settled)
	}

	got, err := repo.GetBet(ctx, bet.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ledger.BetWon {
		t.Fatalf("bet status = %s, want won", got.Status)
	}

	// Resultado duplicado: nada novo para liquidar.
	if err := c.processOne(ctx, res); err != nil {
		t.Fatal(err)
	}
	if settled != 1 {
		t.Fatalf("duplicate result settled again: %d", settled)
	}
}

func TestProcessOneUnknownMatch(t *testing.T) {
	c := &ResultConsumer{
		Log:     zap.NewNop(),
		Matches: match.NewMemory(),
		Engine:  engine.New(zap.NewNop(), ledger.NewMemory(), match.NewMemory(), engine.DefaultPolicy()),
	}
	err := c.processOne(context.Background(), &events.MatchResult{MatchID: "ghost", HomeScore: 1})
	if !errors.Is(err, match.ErrNotFound) {
		t.Fatalf("expected match.ErrNotFound, got %v", err)
	}
}

func TestClientForwardsQuotes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		msgs := []string{
			`{"matchId":"m1","home":2.0,"draw":3.0,"away":4.0}`,
			`not json`,
			`{"matchId":"m2","home":1.8,"draw":3.4,"away":4.6}`,
		}
		for _, m := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	var got []string
	c := &Client{
		URL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Log: zap.NewNop(),
		Handler: func(_ context.Context, matchID string, _, _, _ float64) error {
			got = append(got, matchID)
			return nil
		},
	}

	if err := c.connectAndListen(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "m1" || got[1] != "m2" {
		t.Fatalf("quotes = %v, want [m1 m2]", got)
	}
}
