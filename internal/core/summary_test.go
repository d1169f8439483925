package core

import (
	"reflect"
	"testing"
	"time"
)

func summaryFixture() ([]Transaction, map[int64]string) {
	date := func(day int) time.Time {
		return time.Date(2025, 6, day, 10, 0, 0, 0, time.UTC)
	}
	txs := []Transaction{
		{ID: 1, Amount: Money{Cents: 50000}, Kind: Income, Description: "salary", Date: date(1), AccountID: 1, OwnerID: "u1"},
		{ID: 2, Amount: Money{Cents: 3000}, Kind: Expense, Description: "lunch", Date: date(2), AccountID: 1, CategoryID: 10, OwnerID: "u1"},
		{ID: 3, Amount: Money{Cents: 2000}, Kind: Expense, Description: "dinner", Date: date(3), AccountID: 1, CategoryID: 10, OwnerID: "u1"},
		{ID: 4, Amount: Money{Cents: 1000}, Kind: Expense, Description: "misc", Date: date(4), AccountID: 1, OwnerID: "u1"},
		// Outside the period, must be ignored.
		{ID: 5, Amount: Money{Cents: 9999}, Kind: Expense, Description: "july", Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), AccountID: 1, OwnerID: "u1"},
		// Different owner, must be ignored.
		{ID: 6, Amount: Money{Cents: 7777}, Kind: Income, Description: "not mine", Date: date(5), AccountID: 2, OwnerID: "u2"},
	}
	return txs, map[int64]string{10: "Food"}
}

func TestSummarize(t *testing.T) {
	txs, names := summaryFixture()
	s := Summarize("u1", "2025-06", txs, names)

	if s.TotalIncome.Cents != 50000 {
		t.Errorf("TotalIncome = %d, want 50000", s.TotalIncome.Cents)
	}
	if s.TotalExpenses.Cents != 6000 {
		t.Errorf("TotalExpenses = %d, want 6000", s.TotalExpenses.Cents)
	}
	if got := s.CategoryExpenses["Food"]; got.Cents != 5000 {
		t.Errorf("Food = %d, want 5000", got.Cents)
	}
	if got := s.CategoryExpenses[OtherLabel]; got.Cents != 1000 {
		t.Errorf("Other = %d, want 1000", got.Cents)
	}
}

func TestSummarizeUncategorizedGoesToOther(t *testing.T) {
	txs := []Transaction{{
		ID: 1, Amount: Money{Cents: 1000}, Kind: Expense, Description: "no envelope",
		Date: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), AccountID: 1, OwnerID: "u1",
	}}
	s := Summarize("u1", "2025-06", txs, nil)
	if got := s.CategoryExpenses[OtherLabel]; got.Cents != 1000 {
		t.Errorf("uncategorized expense: Other = %d, want 1000", got.Cents)
	}
}

func TestSummarizeIdempotent(t *testing.T) {
	txs, names := summaryFixture()
	first := Summarize("u1", "2025-06", txs, names)
	second := Summarize("u1", "2025-06", txs, names)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("recomputation differs:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("u1", "2025-06", nil, nil)
	if s.TotalIncome.Cents != 0 || s.TotalExpenses.Cents != 0 {
		t.Errorf("empty history: got income=%d expenses=%d", s.TotalIncome.Cents, s.TotalExpenses.Cents)
	}
	if len(s.CategoryExpenses) != 0 {
		t.Errorf("empty history: got %d category rows", len(s.CategoryExpenses))
	}
}
