package ledger

import (
	"context"
	"time"
)

// Tx é a unidade atômica do ledger: ou tudo commita, ou nada é aplicado.
// Rollback depois de Commit é no-op, permitindo o padrão defer tx.Rollback().
type Tx interface {
	Commit() error
	Rollback() error
}

// Repository expõe BeginTx e primitivas escopadas por transação, mais leituras
// avulsas. Toda mutação de saldo passa por UpdateBalance dentro de uma Tx que
// segura lock na linha da conta (FOR UPDATE no Postgres, lock global na
// implementação em memória).
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	// Contas
	InsertAccount(ctx context.Context, tx Tx, a *Account) error
	GetAccountForUpdate(ctx context.Context, tx Tx, accountID string) (*Account, error)
	UpdateBalance(ctx context.Context, tx Tx, accountID string, newBalanceCents int64) error

	// Lançamentos
	InsertEntry(ctx context.Context, tx Tx, e *Entry) error
	GetEntryForUpdate(ctx context.Context, tx Tx, entryID string) (*Entry, error)
	UpdateEntryStatus(ctx context.Context, tx Tx, entryID string, status EntryStatus) error

	// Apostas (o Bet Engine é o único escritor dessas linhas)
	InsertBet(ctx context.Context, tx Tx, b *Bet) error
	GetBetForUpdate(ctx context.Context, tx Tx, betID string) (*Bet, error)
	UpdateBetStatus(ctx context.Context, tx Tx, betID string, status BetStatus, settledAt time.Time) error
	// HasPendingBets roda dentro da Tx que segura o lock da conta: uma aposta
	// concorrente ou já commitou (e aparece aqui) ou espera o lock.
	HasPendingBets(ctx context.Context, tx Tx, accountID string) (bool, error)

	// Outbox (gravado na mesma unidade atômica da mutação)
	InsertOutbox(ctx context.Context, tx Tx, rec *OutboxRecord) error

	// Leituras avulsas
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	GetBet(ctx context.Context, betID string) (*Bet, error)
	GetEntry(ctx context.Context, entryID string) (*Entry, error)
	ListBets(ctx context.Context, accountID string, status BetStatus, limit, offset int) ([]Bet, error)
	ListPendingBetIDsByMatch(ctx context.Context, matchID string) ([]string, error)
	ListEntries(ctx context.Context, accountID string, kind EntryKind, limit, offset int) ([]Entry, error)
	SumCompleted(ctx context.Context, accountID string) (int64, error)

	// Dispatcher do outbox
	FetchUnsentOutbox(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}
