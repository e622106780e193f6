package core

import (
	"testing"
	"time"
)

func TestTransactionTypeValidate(t *testing.T) {
	if err := CashIn.Validate(); err != nil {
		t.Fatalf("cashIn expected ok, got %v", err)
	}
	if err := CashOut.Validate(); err != nil {
		t.Fatalf("cashOut expected ok, got %v", err)
	}
	if err := TransactionType("transfer").Validate(); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if err := TransactionType("").Validate(); err == nil {
		t.Fatalf("expected error for empty type")
	}
}

func TestTransactionTypeSigned(t *testing.T) {
	m := Money{Cents: 500}
	if got := CashIn.Signed(m); got != 500 {
		t.Fatalf("cashIn expected +500, got %d", got)
	}
	if got := CashOut.Signed(m); got != -500 {
		t.Fatalf("cashOut expected -500, got %d", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -100}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestDraftValidate(t *testing.T) {
	date := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	good := Draft{
		Description: "groceries",
		Amount:      Money{Cents: 1234},
		Type:        CashOut,
		Date:        date,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Draft{
		{Description: "", Amount: Money{Cents: 1}, Type: CashIn, Date: date},
		{Description: "   ", Amount: Money{Cents: 1}, Type: CashIn, Date: date},
		{Description: "a", Amount: Money{Cents: 0}, Type: CashIn, Date: date},
		{Description: "a", Amount: Money{Cents: -5}, Type: CashIn, Date: date},
		{Description: "a", Amount: Money{Cents: 1}, Type: "transfer", Date: date},
		{Description: "a", Amount: Money{Cents: 1}, Type: CashIn, Date: time.Time{}},
	}
	for i, d := range bads {
		if err := d.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
