package google

import (
	"testing"
	"time"

	"frugal/internal/core"
)

func TestRowToTransaction(t *testing.T) {
	row := []any{"7", "2550", "expense", "groceries", "2026-09-15T12:00:00Z", "1", "3", "user-1"}

	tx, err := rowToTransaction(row)
	if err != nil {
		t.Fatalf("rowToTransaction() error = %v", err)
	}
	if tx.ID != 7 || tx.Amount.Cents != 2550 || tx.Kind != core.Expense {
		t.Errorf("parsed = %+v", tx)
	}
	if tx.AccountID != 1 || tx.CategoryID != 3 || tx.OwnerID != "user-1" {
		t.Errorf("references = %+v", tx)
	}
	want := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	if !tx.Date.Equal(want) {
		t.Errorf("date = %v, want %v", tx.Date, want)
	}
}

func TestRowToTransactionMalformed(t *testing.T) {
	tests := []struct {
		name string
		row  []any
	}{
		{"empty row", []any{}},
		{"zero id", []any{"0", "100", "expense", "x", "2026-09-15T12:00:00Z", "1", "0", "u"}},
		{"bad amount", []any{"1", "ten", "expense", "x", "2026-09-15T12:00:00Z", "1", "0", "u"}},
		{"bad date", []any{"1", "100", "expense", "x", "yesterday", "1", "0", "u"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := rowToTransaction(tt.row); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTransactionRowRoundTrip(t *testing.T) {
	tx := core.Transaction{
		ID:          12,
		Amount:      core.Money{Cents: 999},
		Kind:        core.Income,
		Description: "refund",
		Date:        time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC),
		AccountID:   4,
		OwnerID:     "user-1",
	}

	row := transactionToRow(tx)
	// Sheets hands values back as strings.
	asStrings := make([]any, len(row))
	for i, v := range row {
		asStrings[i] = cellString([]any{v}, 0)
	}

	got, err := rowToTransaction(asStrings)
	if err != nil {
		t.Fatalf("rowToTransaction() error = %v", err)
	}
	if got.ID != tx.ID || got.Amount != tx.Amount || got.Kind != tx.Kind || !got.Date.Equal(tx.Date) {
		t.Errorf("round trip = %+v, want %+v", got, tx)
	}
}

func TestRowToSummaryCategoryExpenses(t *testing.T) {
	row := []any{"3", "user-1", "2026-08", "50000", "6500", `{"Food":5000,"Other":1500}`}

	sum, err := rowToSummary(row)
	if err != nil {
		t.Fatalf("rowToSummary() error = %v", err)
	}
	if sum.Period != core.Period("2026-08") {
		t.Errorf("period = %q", sum.Period)
	}
	if sum.CategoryExpenses["Food"].Cents != 5000 {
		t.Errorf("Food = %d, want 5000", sum.CategoryExpenses["Food"].Cents)
	}
	if sum.CategoryExpenses["Other"].Cents != 1500 {
		t.Errorf("Other = %d, want 1500", sum.CategoryExpenses["Other"].Cents)
	}
}

func TestFindRowAndNextID(t *testing.T) {
	rows := [][]any{
		{"1", "Checking", "10000", "user-1"},
		{}, // cleared row
		{"5", "Savings", "200", "user-1"},
	}

	if rowNum, ok := findRow(rows, 5); !ok || rowNum != 4 {
		t.Errorf("findRow(5) = %d, %v; want 4, true", rowNum, ok)
	}
	if _, ok := findRow(rows, 2); ok {
		t.Error("findRow(2) should miss")
	}
	if id := nextID(rows); id != 6 {
		t.Errorf("nextID() = %d, want 6", id)
	}
}
