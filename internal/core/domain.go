package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

type (
	// Kind is the direction of a transaction: income adds to the account
	// balance, expense subtracts from it.
	Kind string

	Money struct {
		Cents int64
	}

	Account struct {
		ID      int64
		Name    string
		Balance Money // signed, may go negative
		OwnerID string
	}

	// Category is the domain's "envelope": a per-period spending bucket.
	// Spent accumulates expense amounts within Period and starts at zero
	// when a new period's category row is created.
	Category struct {
		ID      int64
		Name    string
		Spent   Money
		Period  Period
		OwnerID string
	}

	Transaction struct {
		ID          int64
		Amount      Money // non-negative magnitude, sign derived from Kind
		Kind        Kind
		Description string
		Date        time.Time
		AccountID   int64
		CategoryID  int64 // 0 when no category is attached
		OwnerID     string
		Pending     bool
	}

	// MonthlySummary is derived data: recomputable at any time from the
	// transaction history of (OwnerID, Period).
	MonthlySummary struct {
		ID               int64
		OwnerID          string
		Period           Period
		TotalIncome      Money
		TotalExpenses    Money
		CategoryExpenses map[string]Money
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingAccount   = errors.New("missing account reference")
	ErrMissingOwner     = errors.New("missing owner reference")
	ErrNotFound         = errors.New("not found")
)

func (k Kind) Valid() bool {
	return k == Expense || k == Income
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// SignedCents returns the transaction's effect on its account balance.
func (t Transaction) SignedCents() int64 {
	if t.Kind == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.AccountID == 0 {
		return ErrMissingAccount
	}
	if strings.TrimSpace(t.OwnerID) == "" {
		return ErrMissingOwner
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(a.OwnerID) == "" {
		return ErrMissingOwner
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		return ErrMissingOwner
	}
	if err := c.Period.Validate(); err != nil {
		return err
	}
	if c.Spent.Cents < 0 {
		return errors.New("negative spent accumulator")
	}
	return nil
}
