package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(typ TransactionType, cents int64, category string) Transaction {
	return Transaction{TransactionFields: TransactionFields{
		Amount: Money{Cents: cents}, Description: "x", Type: typ, Date: NewDate(2025, 1, 1), CategoryName: category,
	}}
}

func TestAggregate(t *testing.T) {
	stats := Aggregate([]Transaction{
		tx(Income, 100000, "Salary"),
		tx(Expense, 20000, "Food"),
		tx(Expense, 5000, "Food"),
	})

	assert.Equal(t, int64(100000), stats.TotalIncome.Cents)
	assert.Equal(t, int64(25000), stats.TotalExpense.Cents)
	assert.Equal(t, int64(75000), stats.Balance.Cents)
	assert.Equal(t, map[string]Money{"Food": {Cents: 25000}}, stats.CategoryExpenses)
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil)

	require.NotNil(t, stats.CategoryExpenses)
	assert.Empty(t, stats.CategoryExpenses)
	assert.Zero(t, stats.TotalIncome.Cents)
	assert.Zero(t, stats.TotalExpense.Cents)
	assert.Zero(t, stats.Balance.Cents)
}

func TestAggregateNegativeBalance(t *testing.T) {
	stats := Aggregate([]Transaction{
		tx(Income, 10000, "Salary"),
		tx(Expense, 85000, "Shopping"),
	})
	assert.Equal(t, int64(-75000), stats.Balance.Cents)
	assert.Equal(t, "$-750.00", stats.Balance.Format())
}

func TestAggregateCategorySumMatchesTotal(t *testing.T) {
	txs := []Transaction{
		tx(Expense, 1, "A"),
		tx(Expense, 999, "B"),
		tx(Income, 5, "Salary"),
		tx(Expense, 333, "A"),
		tx(Expense, 10, "C"),
	}
	stats := Aggregate(txs)

	var sum int64
	for _, m := range stats.CategoryExpenses {
		sum += m.Cents
	}
	assert.Equal(t, stats.TotalExpense.Cents, sum)
	assert.Equal(t, stats.TotalIncome.Cents-stats.TotalExpense.Cents, stats.Balance.Cents)
	assert.NotContains(t, stats.CategoryExpenses, "Salary")
}

func TestBreakdownOrder(t *testing.T) {
	stats := Statistics{CategoryExpenses: map[string]Money{
		"Bills": {Cents: 100}, "Food": {Cents: 300}, "Auto": {Cents: 100},
	}}
	got := stats.Breakdown()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"Food", "Auto", "Bills"}, []string{got[0].Name, got[1].Name, got[2].Name})
}

func TestCloneDoesNotShareMap(t *testing.T) {
	orig := Aggregate([]Transaction{tx(Expense, 100, "Food")})
	c := orig.Clone()
	c.CategoryExpenses["Food"] = Money{Cents: 1}
	assert.Equal(t, int64(100), orig.CategoryExpenses["Food"].Cents)
}

func TestAggregateAtLargestAcceptedAmount(t *testing.T) {
	largest, err := ParseAmount("1000000000")
	require.NoError(t, err)
	require.Equal(t, MaxAmountCents, largest.Cents)

	cases := []struct {
		name              string
		incomes, expenses int
	}{
		{"two incomes", 2, 0},
		{"two expenses", 0, 2},
		{"mixed", 5, 7},
		{"many per side", 1000, 1000},
	}
	categories := []string{"Food & Dining", "Bills & Utilities", "Shopping"}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var txs []Transaction
			for i := 0; i < tc.incomes; i++ {
				txs = append(txs, tx(Income, largest.Cents, "Salary"))
			}
			for i := 0; i < tc.expenses; i++ {
				txs = append(txs, tx(Expense, largest.Cents, categories[i%len(categories)]))
			}

			stats := Aggregate(txs)

			assert.GreaterOrEqual(t, stats.TotalIncome.Cents, int64(0))
			assert.GreaterOrEqual(t, stats.TotalExpense.Cents, int64(0))
			assert.Equal(t, int64(tc.incomes)*MaxAmountCents, stats.TotalIncome.Cents)
			assert.Equal(t, int64(tc.expenses)*MaxAmountCents, stats.TotalExpense.Cents)
			assert.Equal(t, stats.TotalIncome.Cents-stats.TotalExpense.Cents, stats.Balance.Cents)

			var sum int64
			for name, m := range stats.CategoryExpenses {
				assert.GreaterOrEqual(t, m.Cents, int64(0), name)
				sum += m.Cents
			}
			assert.Equal(t, stats.TotalExpense.Cents, sum)
		})
	}
}

func TestAggregateOfValidatedInputNeverWraps(t *testing.T) {
	in := TransactionInput{Amount: "90000000000000000", Description: "x", Type: "income", Date: "2025-01-01", CategoryID: "7"}
	_, err := in.Fields()
	require.ErrorIs(t, err, ErrAmountTooLarge)

	in.Amount = "1000000000"
	f, err := in.Fields()
	require.NoError(t, err)
	stats := Aggregate([]Transaction{{TransactionFields: f}, {TransactionFields: f}})
	assert.Equal(t, "$2000000000.00", stats.TotalIncome.Format())
}
