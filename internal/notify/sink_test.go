package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/radieske/bet-core/pkg/contracts/events"
)

type fakeSink struct {
	got  []events.Envelope
	fail error
}

func (s *fakeSink) Emit(_ context.Context, ev events.Envelope) error {
	if s.fail != nil {
		return s.fail
	}
	s.got = append(s.got, ev)
	return nil
}

func TestMultiDeliversToAllSinks(t *testing.T) {
	a := &fakeSink{}
	b := &fakeSink{}
	m := &Multi{Sinks: []Sink{a, b}}

	ev, err := events.NewEnvelope(events.TypeBetPlaced, "u1", events.BetPlaced{BetID: "b1", AccountID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Emit(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("delivery = %d/%d, want 1/1", len(a.got), len(b.got))
	}
	if a.got[0].Type != events.TypeBetPlaced || a.got[0].AccountID != "u1" {
		t.Fatalf("envelope = %+v", a.got[0])
	}
	if !strings.Contains(string(a.got[0].Payload), `"betId":"b1"`) {
		t.Fatalf("payload = %s", a.got[0].Payload)
	}
}

func TestMultiKeepsGoingAfterFailure(t *testing.T) {
	boom := errors.New("kafka down")
	a := &fakeSink{fail: boom}
	b := &fakeSink{}
	m := &Multi{Sinks: []Sink{a, b}}

	ev, err := events.NewEnvelope(events.TypeBalanceChanged, "u1", events.BalanceChanged{AccountID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Emit(context.Background(), ev); !errors.Is(got, boom) {
		t.Fatalf("expected first error back, got %v", got)
	}
	if len(b.got) != 1 {
		t.Fatal("remaining sinks must still receive the event")
	}
}

func TestHubRoutesByAccount(t *testing.T) {
	hub := NewHub(func(r *http.Request) bool { return true })
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	dial := func(accountID string) *websocket.Conn {
		t.Helper()
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatal(err)
		}
		sub := map[string]string{"type": "subscribe"}
		if accountID != "" {
			sub["accountId"] = accountID
		}
		if err := conn.WriteJSON(sub); err != nil {
			t.Fatal(err)
		}
		return conn
	}

	u1 := dial("u1")
	defer u1.Close()
	all := dial("")
	defer all.Close()

	// Espera as assinaturas chegarem ao hub antes do broadcast.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		ready := len(hub.subs["u1"]) == 1 && len(hub.subs[subAll]) == 1
		hub.mu.RUnlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriptions never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ev, err := events.NewEnvelope(events.TypeBetSettled, "u1", events.BetSettled{BetID: "b1", AccountID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if err := hub.Emit(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	for _, conn := range []*websocket.Conn{u1, all} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var got events.Envelope
		if err := conn.ReadJSON(&got); err != nil {
			t.Fatal(err)
		}
		if got.Type != events.TypeBetSettled || got.AccountID != "u1" {
			t.Fatalf("envelope = %+v", got)
		}
	}
}
