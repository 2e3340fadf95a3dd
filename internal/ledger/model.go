package ledger

import "time"

// Valores monetários são sempre inteiros em centavos; float não entra no ledger.

type EntryKind string

const (
	KindDeposit    EntryKind = "deposit"
	KindWithdrawal EntryKind = "withdrawal"
	KindBetStake   EntryKind = "bet_stake"
	KindBetWin     EntryKind = "bet_win"
)

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

type BetStatus string

const (
	BetPending   BetStatus = "pending"
	BetWon       BetStatus = "won"
	BetLost      BetStatus = "lost"
	BetCancelled BetStatus = "cancelled"
)

type Selection string

const (
	SelectionHome Selection = "home"
	SelectionDraw Selection = "draw"
	SelectionAway Selection = "away"
)

// ValidSelection verifica se o valor pertence ao enum home|draw|away.
func ValidSelection(s Selection) bool {
	switch s {
	case SelectionHome, SelectionDraw, SelectionAway:
		return true
	}
	return false
}

// Account é a carteira do usuário. O campo Balance só muda por dentro das
// operações do ledger; nenhum outro código escreve saldo.
type Account struct {
	ID           string
	BalanceCents int64
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Entry é um lançamento do ledger (transações da conta).
// AmountCents é assinado: débitos negativos, créditos positivos.
// Invariante de auditoria: saldo da conta == soma dos lançamentos completed.
type Entry struct {
	ID          string
	AccountID   string
	Kind        EntryKind
	AmountCents int64
	Status      EntryStatus
	Reference   string
	CreatedAt   time.Time
}

// Bet congela odd e stake no momento da aposta; PotentialWinCents é derivado
// uma única vez (stake * odd) e nunca recalculado.
type Bet struct {
	ID                string
	AccountID         string
	MatchID           string
	Selection         Selection
	OddValue          float64
	StakeCents        int64
	PotentialWinCents int64
	Status            BetStatus
	PlacedAt          time.Time
	SettledAt         *time.Time
}

// OutboxRecord é um evento de domínio gravado na mesma transação da mutação
// que o originou; um dispatcher entrega e preenche SentAt.
type OutboxRecord struct {
	ID        int64
	Type      string
	AccountID string
	Payload   []byte
	CreatedAt time.Time
	SentAt    *time.Time
}
