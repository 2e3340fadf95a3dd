package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Memory implementa Repository em memória para testes e para o simulador de
// feed. Serialização simples: o lock global é adquirido em BeginTx e liberado
// em Commit/Rollback, então duas unidades atômicas nunca se entrelaçam.
// Mutações ficam num stage e só são aplicadas no Commit.
//
// Não reentrante: não chame leituras avulsas do Repository enquanto a mesma
// goroutine segura uma Tx aberta.
type Memory struct {
	mu sync.Mutex

	accounts map[string]*Account
	entries  map[string]*Entry
	entrySeq []string
	bets     map[string]*Bet
	betSeq   []string
	outbox   []*OutboxRecord
	outboxID int64
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*Account),
		entries:  make(map[string]*Entry),
		bets:     make(map[string]*Bet),
	}
}

type memTx struct {
	m    *Memory
	done bool

	accounts map[string]*Account
	entries  map[string]*Entry
	bets     map[string]*Bet

	newEntries []string
	newBets    []string
	outbox     []*OutboxRecord
}

func (m *Memory) BeginTx(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	return &memTx{
		m:        m,
		accounts: make(map[string]*Account),
		entries:  make(map[string]*Entry),
		bets:     make(map[string]*Bet),
	}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("tx already finished")
	}
	t.done = true

	for id, a := range t.accounts {
		t.m.accounts[id] = a
	}
	for id, e := range t.entries {
		t.m.entries[id] = e
	}
	t.m.entrySeq = append(t.m.entrySeq, t.newEntries...)
	for id, b := range t.bets {
		t.m.bets[id] = b
	}
	t.m.betSeq = append(t.m.betSeq, t.newBets...)
	t.m.outbox = append(t.m.outbox, t.outbox...)

	t.m.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil // padrão defer tx.Rollback() após Commit
	}
	t.done = true
	t.m.mu.Unlock()
	return nil
}

func memTxOf(tx Tx) (*memTx, error) {
	t, ok := tx.(*memTx)
	if !ok || t.done {
		return nil, errors.New("invalid tx")
	}
	return t, nil
}

func (t *memTx) stagedAccount(id string) (*Account, bool) {
	if a, ok := t.accounts[id]; ok {
		return a, true
	}
	if a, ok := t.m.accounts[id]; ok {
		cp := *a
		return &cp, true
	}
	return nil, false
}

func (m *Memory) InsertAccount(_ context.Context, tx Tx, a *Account) error {
	t, err := memTxOf(tx)
	if err != nil {
		return err
	}
	if _, ok := t.stagedAccount(a.ID); ok {
		return errors.New("account already exists")
	}
	cp := *a
	t.accounts[a.ID] = &cp
	return nil
}

func (m *Memory) GetAccountForUpdate(_ context.Context, tx Tx, accountID string) (*Account, error) {
	t, err := memTxOf(tx)
	if err != nil {
		return nil, err
	}
	a, ok := t.stagedAccount(accountID)
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) UpdateBalance(_ context.Context, tx Tx, accountID string, newBalanceCents int64) error {
	t, err := memTxOf(tx)
	if err != nil {
		return err
	}
	a, ok := t.stagedAccount(accountID)
	if !ok {
		return ErrNotFound
	}
	a.BalanceCents = newBalanceCents
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	t.accounts[accountID] = a
	return nil
}

func (m *Memory) InsertEntry(_ context.Context, tx Tx, e *Entry) error {
	t, err := memTxOf(tx)
	if err != nil {
		return err
	}
	if _, ok := t.entries[e.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := m.entries[e.ID]; ok {
		return ErrDuplicate
	}
	cp := *e
	t.entries[e.ID] = &cp
	t.newEntries = append(t.newEntries, e.ID)
	return nil
}

func (t *memTx) stagedEntry(id string) (*Entry, bool) {
	if e, ok := t.entries[id]; ok {
		return e, true
	}
	if e, ok := t.m.entries[id]; ok {
		cp := *e
		return &cp, true
	}
	return nil, false
}

func (m *Memory) GetEntryForUpdate(_ context.Context, tx Tx, entryID string) (*Entry, error) {
	t, err := memTxOf(tx)
	if err != nil {
		return nil, err
	}
	e, ok := t.stagedEntry(entryID)
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) UpdateEntryStatus(_ context.Context, tx Tx, entryID string, status EntryStatus) error {
	t, err := memTxOf(tx)
	if err != nil {
		return err
	}
	e, ok := t.stagedEntry(entryID)
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	t.entries[entryID] = e
	return nil
}

func (m *Memory) InsertBet(_ context.Context, tx Tx, b *Bet) error {
	t, err := memTxOf(tx)
	if err != nil {
		return err
	}
	cp := *b
	t.bets[b.ID] = &cp
	t.newBets = append(t.newBets, b.ID)
	return nil
}

func (t *memTx) stagedBet(id string) (*Bet, bool) {
	if b, ok := t.bets[id]; ok {
		return b, true
	}
	if b, ok := t.m.bets[id]; ok {
		cp := *b
		return &cp, true
	}
	return nil, false
}

func (m *Memory) GetBetForUpdate(_ context.Context, tx Tx, betID string) (*Bet, error) {
	t, err := memTxOf(tx)
	if err != nil {
		return nil, err
	}
	b, ok := t.stagedBet(betID)
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) UpdateBetStatus(_ context.Context, tx Tx, betID string, status BetStatus, settledAt time.Time) error {
	t, err := memTxOf(tx)
	if err != nil {
		return err
	}
	b, ok := t.stagedBet(betID)
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	b.SettledAt = &settledAt
	t.bets[betID] = b
	return nil
}

func (m *Memory) InsertOutbox(_ context.Context, tx Tx, rec *OutboxRecord) error {
	t, err := memTxOf(tx)
	if err != nil {
		return err
	}
	t.m.outboxID++
	rec.ID = t.m.outboxID
	cp := *rec
	t.outbox = append(t.outbox, &cp)
	return nil
}

func (m *Memory) GetAccount(_ context.Context, accountID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) GetBet(_ context.Context, betID string) (*Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *Memory) GetEntry(_ context.Context, entryID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) ListBets(_ context.Context, accountID string, status BetStatus, limit, offset int) ([]Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Bet
	for _, id := range m.betSeq {
		b := m.bets[id]
		if b.AccountID != accountID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, *b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })

	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListPendingBetIDsByMatch(_ context.Context, matchID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, id := range m.betSeq {
		b := m.bets[id]
		if b.MatchID == matchID && b.Status == BetPending {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *Memory) HasPendingBets(_ context.Context, tx Tx, accountID string) (bool, error) {
	t, err := memTxOf(tx)
	if err != nil {
		return false, err
	}
	for _, b := range t.bets {
		if b.AccountID == accountID && b.Status == BetPending {
			return true, nil
		}
	}
	for id, b := range m.bets {
		if _, staged := t.bets[id]; staged {
			continue
		}
		if b.AccountID == accountID && b.Status == BetPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListEntries(_ context.Context, accountID string, kind EntryKind, limit, offset int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for i := len(m.entrySeq) - 1; i >= 0; i-- { // mais recentes primeiro
		e := m.entries[m.entrySeq[i]]
		if e.AccountID != accountID {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		out = append(out, *e)
	}

	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SumCompleted(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sum int64
	for _, e := range m.entries {
		if e.AccountID == accountID && e.Status == EntryCompleted {
			sum += e.AmountCents
		}
	}
	return sum, nil
}

func (m *Memory) FetchUnsentOutbox(_ context.Context, limit int) ([]OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []OutboxRecord
	for _, rec := range m.outbox {
		if rec.SentAt != nil {
			continue
		}
		out = append(out, *rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkOutboxSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.outbox {
		if rec.ID == id && rec.SentAt == nil {
			now := time.Now().UTC()
			rec.SentAt = &now
			return nil
		}
	}
	return nil
}
