package core

// OtherLabel is the implicit bucket for expenses without a category.
const OtherLabel = "Other"

// Summarize recomputes the monthly summary for (ownerID, period) from raw
// transaction history. categoryNames maps category id to display name;
// expenses whose category is absent from the map, or which carry no
// category at all, roll into OtherLabel.
//
// The computation is idempotent: the same inputs always produce the same
// summary, so callers may upsert the result keyed by (owner, period).
func Summarize(ownerID string, period Period, txs []Transaction, categoryNames map[int64]string) MonthlySummary {
	s := MonthlySummary{
		OwnerID:          ownerID,
		Period:           period,
		CategoryExpenses: make(map[string]Money),
	}
	for _, t := range txs {
		if t.OwnerID != ownerID || !period.Contains(t.Date) {
			continue
		}
		switch t.Kind {
		case Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
			name := OtherLabel
			if t.CategoryID != 0 {
				if n, ok := categoryNames[t.CategoryID]; ok {
					name = n
				}
			}
			s.CategoryExpenses[name] = s.CategoryExpenses[name].Add(t.Amount)
		}
	}
	return s
}
