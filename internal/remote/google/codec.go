package google

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"frugal/internal/core"
)

// Row layouts, one tab per record type. Column A is always the id so a
// cleared row (deleted record) reads back as empty and is skipped.
//
//	Accounts:     id | name | balance_cents | owner_id
//	Categories:   id | name | spent_cents | period | owner_id
//	Transactions: id | amount_cents | kind | description | date | account_id | category_id | owner_id
//	Summaries:    id | owner_id | period | income_cents | expense_cents | category_json

func cellString(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

func cellInt(row []any, idx int) (int64, error) {
	s := cellString(row, idx)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q as integer: %w", s, err)
	}
	return n, nil
}

func accountToRow(a core.Account) []any {
	return []any{a.ID, a.Name, a.Balance.Cents, a.OwnerID}
}

func rowToAccount(row []any) (core.Account, error) {
	id, err := cellInt(row, 0)
	if err != nil || id == 0 {
		return core.Account{}, fmt.Errorf("account row id: %w", err)
	}
	balance, err := cellInt(row, 2)
	if err != nil {
		return core.Account{}, fmt.Errorf("account %d balance: %w", id, err)
	}
	return core.Account{
		ID:      id,
		Name:    cellString(row, 1),
		Balance: core.Money{Cents: balance},
		OwnerID: cellString(row, 3),
	}, nil
}

func categoryToRow(c core.Category) []any {
	return []any{c.ID, c.Name, c.Spent.Cents, string(c.Period), c.OwnerID}
}

func rowToCategory(row []any) (core.Category, error) {
	id, err := cellInt(row, 0)
	if err != nil || id == 0 {
		return core.Category{}, fmt.Errorf("category row id: %w", err)
	}
	spent, err := cellInt(row, 2)
	if err != nil {
		return core.Category{}, fmt.Errorf("category %d spent: %w", id, err)
	}
	return core.Category{
		ID:      id,
		Name:    cellString(row, 1),
		Spent:   core.Money{Cents: spent},
		Period:  core.Period(cellString(row, 3)),
		OwnerID: cellString(row, 4),
	}, nil
}

func transactionToRow(t core.Transaction) []any {
	return []any{
		t.ID,
		t.Amount.Cents,
		string(t.Kind),
		t.Description,
		t.Date.UTC().Format(time.RFC3339),
		t.AccountID,
		t.CategoryID,
		t.OwnerID,
	}
}

func rowToTransaction(row []any) (core.Transaction, error) {
	id, err := cellInt(row, 0)
	if err != nil || id == 0 {
		return core.Transaction{}, fmt.Errorf("transaction row id: %w", err)
	}
	amount, err := cellInt(row, 1)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount: %w", id, err)
	}
	date, err := time.Parse(time.RFC3339, cellString(row, 4))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date: %w", id, err)
	}
	accountID, err := cellInt(row, 5)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d account: %w", id, err)
	}
	categoryID, err := cellInt(row, 6)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d category: %w", id, err)
	}
	return core.Transaction{
		ID:          id,
		Amount:      core.Money{Cents: amount},
		Kind:        core.Kind(cellString(row, 2)),
		Description: cellString(row, 3),
		Date:        date,
		AccountID:   accountID,
		CategoryID:  categoryID,
		OwnerID:     cellString(row, 7),
	}, nil
}

func summaryToRow(s core.MonthlySummary) ([]any, error) {
	byName := make(map[string]int64, len(s.CategoryExpenses))
	for name, amount := range s.CategoryExpenses {
		byName[name] = amount.Cents
	}
	blob, err := json.Marshal(byName)
	if err != nil {
		return nil, fmt.Errorf("encode category expenses: %w", err)
	}
	return []any{
		s.ID,
		s.OwnerID,
		string(s.Period),
		s.TotalIncome.Cents,
		s.TotalExpenses.Cents,
		string(blob),
	}, nil
}

func rowToSummary(row []any) (core.MonthlySummary, error) {
	id, err := cellInt(row, 0)
	if err != nil || id == 0 {
		return core.MonthlySummary{}, fmt.Errorf("summary row id: %w", err)
	}
	income, err := cellInt(row, 3)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("summary %d income: %w", id, err)
	}
	expenses, err := cellInt(row, 4)
	if err != nil {
		return core.MonthlySummary{}, fmt.Errorf("summary %d expenses: %w", id, err)
	}

	byName := map[string]int64{}
	if blob := cellString(row, 5); blob != "" {
		if err := json.Unmarshal([]byte(blob), &byName); err != nil {
			return core.MonthlySummary{}, fmt.Errorf("summary %d category expenses: %w", id, err)
		}
	}
	categoryExpenses := make(map[string]core.Money, len(byName))
	for name, cents := range byName {
		categoryExpenses[name] = core.Money{Cents: cents}
	}

	return core.MonthlySummary{
		ID:               id,
		OwnerID:          cellString(row, 1),
		Period:           core.Period(cellString(row, 2)),
		TotalIncome:      core.Money{Cents: income},
		TotalExpenses:    core.Money{Cents: expenses},
		CategoryExpenses: categoryExpenses,
	}, nil
}
