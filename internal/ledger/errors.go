package ledger

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflict indica contenção transitória na unidade atômica
	// (serialization failure / deadlock). Seguro repetir do lado do caller.
	ErrConflict = errors.New("storage conflict")

	// ErrDuplicate indica violação de chave primária; usado como guarda de
	// idempotência por quem insere lançamentos com ID determinístico.
	ErrDuplicate = errors.New("duplicate id")
)
