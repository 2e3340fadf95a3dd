package events

import (
	"encoding/json"
	"time"
)

// Tipos de evento gravados no outbox e entregues ao Notification Sink.
const (
	TypeBetPlaced      = "bet_placed"
	TypeBetCancelled   = "bet_cancelled"
	TypeBetSettled     = "bet_settled"
	TypeBalanceChanged = "balance_changed"
	TypeOddsQuoted     = "odds_quoted"
	TypeOddsMovement   = "odds_movement"
)

// Envelope é o formato único de entrega: {type, accountId, payload, timestamp}.
// AccountID fica vazio em eventos que não pertencem a uma conta (ex: odds).
type Envelope struct {
	Type      string          `json:"type"`
	AccountID string          `json:"accountId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Ts        time.Time       `json:"ts"`
}

// NewEnvelope serializa o payload e monta o envelope com timestamp corrente.
func NewEnvelope(eventType, accountID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, AccountID: accountID, Payload: b, Ts: time.Now().UTC()}, nil
}
