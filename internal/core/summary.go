package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Statistics is derived from one owner's full transaction list and is never
// stored.
type Statistics struct {
	TotalIncome      Money            `json:"totalIncome"`
	TotalExpense     Money            `json:"totalExpense"`
	Balance          Money            `json:"balance"`
	CategoryExpenses map[string]Money `json:"categoryExpenses"`
}

// Aggregate folds txs into Statistics in a single pass. Income is summed
// as a total only; every other transaction counts as an expense and is also
// added to its category bucket.
func Aggregate(txs []Transaction) Statistics {
	stats := Statistics{CategoryExpenses: make(map[string]Money)}
	for _, t := range txs {
		if t.Type == Income {
			stats.TotalIncome = stats.TotalIncome.Add(t.Amount)
			continue
		}
		stats.TotalExpense = stats.TotalExpense.Add(t.Amount)
		stats.CategoryExpenses[t.CategoryName] = stats.CategoryExpenses[t.CategoryName].Add(t.Amount)
	}
	stats.Balance = stats.TotalIncome.Sub(stats.TotalExpense)
	return stats
}

// Clone returns a copy that shares no map with s.
func (s Statistics) Clone() Statistics {
	out := s
	out.CategoryExpenses = make(map[string]Money, len(s.CategoryExpenses))
	for k, v := range s.CategoryExpenses {
		out.CategoryExpenses[k] = v
	}
	return out
}

// Breakdown lists the category expenses by amount, largest first. Equal
// amounts are ordered by name.
func (s Statistics) Breakdown() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s.CategoryExpenses))
	for name, amount := range s.CategoryExpenses {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
