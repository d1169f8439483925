package core

import (
	"errors"
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		Amount:      Money{Cents: 1250},
		Kind:        Expense,
		Description: "groceries",
		Date:        time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
		AccountID:   1,
		OwnerID:     "user-1",
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"valid expense", func(tx *Transaction) {}, nil},
		{"valid income", func(tx *Transaction) { tx.Kind = Income }, nil},
		{"zero amount", func(tx *Transaction) { tx.Amount.Cents = 0 }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount.Cents = -100 }, ErrInvalidAmount},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"empty description", func(tx *Transaction) { tx.Description = "   " }, ErrEmptyDescription},
		{"no account", func(tx *Transaction) { tx.AccountID = 0 }, ErrMissingAccount},
		{"no owner", func(tx *Transaction) { tx.OwnerID = "" }, ErrMissingOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionSignedCents(t *testing.T) {
	tx := validTransaction()
	if got := tx.SignedCents(); got != -1250 {
		t.Errorf("expense SignedCents() = %d, want -1250", got)
	}
	tx.Kind = Income
	if got := tx.SignedCents(); got != 1250 {
		t.Errorf("income SignedCents() = %d, want 1250", got)
	}
}

func TestAccountValidate(t *testing.T) {
	a := Account{Name: "Checking", OwnerID: "user-1"}
	if err := a.Validate(); err != nil {
		t.Errorf("valid account: %v", err)
	}
	a.Balance.Cents = -5000
	if err := a.Validate(); err != nil {
		t.Errorf("negative balance must be allowed: %v", err)
	}
	a.Name = ""
	if err := a.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Errorf("empty name: got %v", err)
	}
}

func TestCategoryValidate(t *testing.T) {
	c := Category{Name: "Food", Period: "2025-06", OwnerID: "user-1"}
	if err := c.Validate(); err != nil {
		t.Errorf("valid category: %v", err)
	}
	c.Period = "June 2025"
	if err := c.Validate(); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("bad period: got %v", err)
	}
	c.Period = "2025-06"
	c.Spent.Cents = -1
	if err := c.Validate(); err == nil {
		t.Error("negative spent accumulator must be rejected")
	}
}

func TestPeriod(t *testing.T) {
	if got := PeriodOf(time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)); got != "2025-01" {
		t.Errorf("PeriodOf = %q, want 2025-01", got)
	}
	if got := Period("2025-01").Previous(); got != "2024-12" {
		t.Errorf("Previous = %q, want 2024-12", got)
	}
	if err := Period("2025-13").Validate(); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("month 13 must be invalid, got %v", err)
	}
	p := Period("2025-06")
	if !p.Contains(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("first of month must be inside its period")
	}
	if p.Contains(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("next month must be outside the period")
	}
}

func TestPeriodIgnoresTimezone(t *testing.T) {
	// 00:30 on the 1st in +09:00 is still the previous day in UTC.
	// Classification must not change when the same instant is expressed
	// in another zone, or a mirrored copy stored in UTC would land in a
	// different month than the original.
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	local := time.Date(2026, 9, 1, 0, 30, 0, 0, tokyo)

	if got := PeriodOf(local); got != "2026-08" {
		t.Errorf("PeriodOf(+09:00 date) = %q, want 2026-08", got)
	}
	if got, want := PeriodOf(local), PeriodOf(local.UTC()); got != want {
		t.Errorf("PeriodOf differs across zones: %q vs %q", got, want)
	}
	if !Period("2026-08").Contains(local) {
		t.Error("Contains must classify by the same canonical zone as PeriodOf")
	}
	if Period("2026-09").Contains(local) {
		t.Error("local wall-clock month must not decide the period")
	}
}
