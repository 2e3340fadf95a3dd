package match

import (
	"context"
	"testing"
	"time"
)

func seed(t *testing.T, s *Memory, id string, status Status) *Match {
	t.Helper()
	m := &Match{
		ID:        id,
		HomeTeam:  "Flamengo",
		AwayTeam:  "Palmeiras",
		League:    "Serie A",
		StartTime: time.Now().UTC().Add(2 * time.Hour),
		Status:    status,
	}
	if err := s.Create(context.Background(), m); err != nil {
		t.Fatalf("create match: %v", err)
	}
	return m
}

func TestMemoryCreateAndGet(t *testing.T) {
	s := NewMemory()
	seed(t, s, "m1", StatusUpcoming)

	got, err := s.Get(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HomeTeam != "Flamengo" || got.Status != StatusUpcoming {
		t.Fatalf("unexpected match: %+v", got)
	}
	if err := s.Create(context.Background(), &Match{ID: "m1"}); err == nil {
		t.Fatal("expected error on duplicate id")
	}
	if _, err := s.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryListFiltersAndPages(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, st := range []Status{StatusUpcoming, StatusLive, StatusUpcoming} {
		m := &Match{
			ID:        "m" + string(rune('1'+i)),
			HomeTeam:  "A",
			AwayTeam:  "B",
			League:    "L",
			StartTime: base.Add(time.Duration(i) * time.Hour),
			Status:    st,
		}
		if err := s.Create(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := s.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(all))
	}
	if all[0].ID != "m1" || all[2].ID != "m3" {
		t.Fatalf("expected order by start_time, got %s..%s", all[0].ID, all[2].ID)
	}

	up, err := s.List(ctx, StatusUpcoming, 0, 0)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(up) != 2 {
		t.Fatalf("expected 2 upcoming, got %d", len(up))
	}

	page, err := s.List(ctx, "", 1, 1)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "m2" {
		t.Fatalf("expected page [m2], got %+v", page)
	}
	if out, _ := s.List(ctx, "", 1, 10); out != nil {
		t.Fatalf("expected empty page past end, got %+v", out)
	}
}

func TestMemoryPartialUpdate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seed(t, s, "m1", StatusUpcoming)

	league := "Libertadores"
	status := StatusLive
	got, err := s.Update(ctx, "m1", PartialUpdate{League: &league, Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.League != "Libertadores" || got.Status != StatusLive {
		t.Fatalf("update not applied: %+v", got)
	}
	if got.HomeTeam != "Flamengo" {
		t.Fatalf("untouched field changed: %+v", got)
	}

	if _, err := s.Update(ctx, "nope", PartialUpdate{League: &league}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPartialUpdateValidate(t *testing.T) {
	empty := "  "
	bad := Status("cancelled")
	var zero time.Time

	cases := []struct {
		name string
		upd  PartialUpdate
	}{
		{"empty home team", PartialUpdate{HomeTeam: &empty}},
		{"empty away team", PartialUpdate{AwayTeam: &empty}},
		{"empty league", PartialUpdate{League: &empty}},
		{"zero start time", PartialUpdate{StartTime: &zero}},
		{"invalid status", PartialUpdate{Status: &bad}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.upd.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := (PartialUpdate{}).Validate(); err != nil {
		t.Fatalf("empty update should validate: %v", err)
	}
}

func TestMemoryUpdateScore(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seed(t, s, "m1", StatusLive)

	got, err := s.UpdateScore(ctx, "m1", 2, 1, StatusFinished)
	if err != nil {
		t.Fatalf("update score: %v", err)
	}
	if got.HomeScore == nil || *got.HomeScore != 2 || got.AwayScore == nil || *got.AwayScore != 1 {
		t.Fatalf("score not applied: %+v", got)
	}
	if got.Status != StatusFinished {
		t.Fatalf("expected finished, got %s", got.Status)
	}

	if _, err := s.UpdateScore(ctx, "m1", 1, 1, Status("void")); err == nil {
		t.Fatal("expected error for invalid status")
	}
	if _, err := s.UpdateScore(ctx, "nope", 0, 0, StatusFinished); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWinner(t *testing.T) {
	if w := Winner(2, 0); w != "home" {
		t.Fatalf("expected home, got %s", w)
	}
	if w := Winner(0, 3); w != "away" {
		t.Fatalf("expected away, got %s", w)
	}
	if w := Winner(1, 1); w != "draw" {
		t.Fatalf("expected draw, got %s", w)
	}
}
