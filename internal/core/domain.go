package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CashIn  TransactionType = "cashIn"
	CashOut TransactionType = "cashOut"
)

type (
	// TransactionType is the polarity of a ledger entry. Cash-in adds to
	// the running balance, cash-out subtracts.
	TransactionType string

	Money struct {
		Cents int64
	}

	// Transaction is one ledger entry. Balance is derived data: the
	// running total of all signed amounts up to and including this entry
	// in (date, id) order. It is always computed server-side.
	Transaction struct {
		ID          int64
		Description string
		Amount      Money
		Type        TransactionType
		Date        time.Time
		Balance     Money
	}

	// Draft is the client-suppliable part of a transaction. ID and
	// Balance are never accepted from callers.
	Draft struct {
		Description string
		Amount      Money
		Type        TransactionType
		Date        time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidDate      = errors.New("invalid date")
)

func (t TransactionType) Validate() error {
	switch t {
	case CashIn, CashOut:
		return nil
	default:
		return ErrInvalidType
	}
}

// Signed returns the balance contribution of an amount under this type.
func (t TransactionType) Signed(m Money) int64 {
	if t == CashOut {
		return -m.Cents
	}
	return m.Cents
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (d Draft) Validate() error {
	if len(strings.TrimSpace(d.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(d.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if err := d.Type.Validate(); err != nil {
		return err
	}
	if d.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}
