package chatbot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

type stubStats struct {
	stats core.Statistics
	err   error
	calls int
}

func (s *stubStats) Statistics(context.Context, *core.Session) (core.Statistics, error) {
	s.calls++
	return s.stats, s.err
}

type stubLister struct {
	txs   []core.Transaction
	err   error
	panic bool
}

func (l *stubLister) List(context.Context, *core.Session) ([]core.Transaction, error) {
	if l.panic {
		panic("boom")
	}
	return l.txs, l.err
}

type stubHistory struct {
	saved []core.ChatMessage
	err   error
}

func (h *stubHistory) RecordChat(_ context.Context, m core.ChatMessage) error {
	if h.err != nil {
		return h.err
	}
	h.saved = append(h.saved, m)
	return nil
}

func (h *stubHistory) ListChat(_ context.Context, ownerID string) ([]core.ChatMessage, error) {
	if h.err != nil {
		return nil, h.err
	}
	var out []core.ChatMessage
	for _, m := range h.saved {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out, nil
}

var session = &core.Session{UserID: "u1"}

func money(units int64) core.Money { return core.Money{Cents: units * 100} }

func scenarioStats() core.Statistics {
	return core.Statistics{
		TotalIncome:      money(1000),
		TotalExpense:     money(250),
		Balance:          money(750),
		CategoryExpenses: map[string]core.Money{"Food": money(250)},
	}
}

func TestClassifyPriority(t *testing.T) {
	cases := map[string]Intent{
		"what's my balance and any advice?": IntentBalance,
		"How much did I spend?":             IntentSpending,
		"show expenses":                     IntentSpending,
		"my income and spending":            IntentSpending,
		"what did I earn":                   IntentIncome,
		"Show recent transactions":          IntentRecent,
		"last one":                          IntentRecent,
		"give me a TIP":                     IntentAdvice,
		"help":                              IntentAdvice,
		"Hello there":                       IntentGreeting,
		"hey":                               IntentGreeting,
		"weather?":                          IntentDefault,
		"":                                  IntentDefault,
	}
	for in, want := range cases {
		assert.Equal(t, want, Classify(in), in)
	}
}

func TestRespondRequiresSession(t *testing.T) {
	stats := &stubStats{stats: scenarioStats()}
	e := New(stats, &stubLister{})

	for _, in := range []string{"balance", "help", "hello", ""} {
		assert.Equal(t, "Please log in to use the chatbot.", e.Respond(context.Background(), nil, in))
	}
	assert.Zero(t, stats.calls, "no rule may run without a session")
}

func TestBalanceReply(t *testing.T) {
	e := New(&stubStats{stats: scenarioStats()}, &stubLister{})
	got := e.Respond(context.Background(), session, "What's my balance?")
	assert.Equal(t, "💰 Your current balance is $750.00\n\n📊 Breakdown:\n• Income: $1000.00\n• Expenses: $250.00", got)
}

func TestNegativeBalanceFormatting(t *testing.T) {
	e := New(&stubStats{stats: core.Statistics{TotalIncome: money(25), TotalExpense: money(100), Balance: money(-75)}}, &stubLister{})
	assert.Contains(t, e.Respond(context.Background(), session, "balance"), "$-75.00")
}

func TestSpendingReply(t *testing.T) {
	st := scenarioStats()
	st.TotalExpense = money(300)
	st.CategoryExpenses["Bills"] = money(50)
	e := New(&stubStats{stats: st}, &stubLister{})

	got := e.Respond(context.Background(), session, "How much did I spend?")
	assert.Contains(t, got, "$300.00")
	food := strings.Index(got, "• Food: $250.00")
	bills := strings.Index(got, "• Bills: $50.00")
	require.True(t, food > 0 && bills > 0, got)
	assert.Less(t, food, bills, "breakdown must be sorted by amount descending")
}

func TestSpendingScenario(t *testing.T) {
	e := New(&stubStats{stats: scenarioStats()}, &stubLister{})
	got := e.Respond(context.Background(), session, "How much did I spend?")
	assert.Contains(t, got, "$250.00")
	assert.Contains(t, got, "Food: $250.00")
}

func TestSpendingWithoutExpenses(t *testing.T) {
	e := New(&stubStats{stats: core.Aggregate(nil)}, &stubLister{})
	got := e.Respond(context.Background(), session, "expenses")
	assert.Equal(t, "💸 You have spent $0.00 in total.\n\nYou have no expense transactions yet.", got)
}

func TestIncomeReply(t *testing.T) {
	e := New(&stubStats{stats: scenarioStats()}, &stubLister{})
	assert.Equal(t, "💵 Your total income is $1000.00", e.Respond(context.Background(), session, "income?"))

	e = New(&stubStats{stats: core.Aggregate(nil)}, &stubLister{})
	assert.Contains(t, e.Respond(context.Background(), session, "income?"), "You have no income transactions yet.")
}

func TestRecentReply(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 7; i++ {
		typ, cat := core.Expense, "1"
		if i == 0 {
			typ, cat = core.Income, "7"
		}
		c, _ := core.CategoryByID(cat)
		txs = append(txs, core.Transaction{TransactionFields: core.TransactionFields{
			Amount: core.Money{Cents: 1250}, Description: "item", Type: typ, Date: core.NewDate(2025, 3, 10-i),
		}.WithCategory(c)})
	}
	e := New(&stubStats{}, &stubLister{txs: txs})

	got := e.Respond(context.Background(), session, "show recent transactions")
	assert.True(t, strings.HasPrefix(got, "📝 Here are your recent transactions:\n\n"))
	assert.Equal(t, 5, strings.Count(got, " - item\n"), "at most five entries")
	assert.Contains(t, got, "💚 +$12.50 - item\n   💼 Salary (2025-03-10)\n\n")
	assert.Contains(t, got, "❤️ -$12.50 - item\n   🍔 Food & Dining (2025-03-09)\n\n")
	assert.NotContains(t, got, "2025-03-05")
}

func TestRecentEmpty(t *testing.T) {
	e := New(&stubStats{}, &stubLister{})
	assert.Equal(t, recentEmpty, e.Respond(context.Background(), session, "last"))
}

func TestAdviceWarnsOverEightyPercent(t *testing.T) {
	e := New(&stubStats{stats: core.Statistics{TotalIncome: money(1000), TotalExpense: money(900), Balance: money(100)}}, &stubLister{})
	got := e.Respond(context.Background(), session, "help")

	assert.Contains(t, got, "⚠️ You're spending 90% of your income. Try to keep it under 80%!")
	assert.Contains(t, got, "💰 Your savings rate: 10%")
	assert.True(t, strings.HasSuffix(got, "• Use the 50/30/20 rule (needs/wants/savings)"))
}

func TestAdviceGuards(t *testing.T) {
	cases := []struct {
		name        string
		stats       core.Statistics
		warn, saves bool
	}{
		{"exactly eighty percent", core.Statistics{TotalIncome: money(1000), TotalExpense: money(800), Balance: money(200)}, false, true},
		{"no income", core.Statistics{TotalExpense: money(50), Balance: money(-50)}, false, false},
		{"no expense", core.Statistics{TotalIncome: money(50), Balance: money(50)}, false, false},
		{"overspent", core.Statistics{TotalIncome: money(100), TotalExpense: money(150), Balance: money(-50)}, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := New(&stubStats{stats: tc.stats}, &stubLister{})
			got := e.Respond(context.Background(), session, "advice")
			assert.Equal(t, tc.warn, strings.Contains(got, "⚠️"), got)
			assert.Equal(t, tc.saves, strings.Contains(got, "savings rate"), got)
		})
	}

	e := New(&stubStats{stats: core.Statistics{TotalIncome: money(100), TotalExpense: money(150), Balance: money(-50)}}, &stubLister{})
	assert.Contains(t, e.Respond(context.Background(), session, "tip"), "savings rate: -50%")
}

func TestPerIntentFallbacks(t *testing.T) {
	failing := &stubStats{err: errors.New("store unavailable")}
	e := New(failing, &stubLister{err: errors.New("store unavailable")})
	ctx := context.Background()

	assert.Equal(t, balanceFallback, e.Respond(ctx, session, "balance"))
	assert.Equal(t, spendingFallback, e.Respond(ctx, session, "spend"))
	assert.Equal(t, incomeFallback, e.Respond(ctx, session, "income"))
	assert.Equal(t, recentFallback, e.Respond(ctx, session, "recent"))
	assert.Equal(t, adviceFallback, e.Respond(ctx, session, "advice"))
}

func TestStaticReplies(t *testing.T) {
	e := New(&stubStats{}, &stubLister{})
	ctx := context.Background()
	assert.True(t, strings.HasPrefix(e.Respond(ctx, session, "hello"), "Hello! 👋"))
	assert.True(t, strings.HasPrefix(e.Respond(ctx, session, "what?"), "I can help you with:"))
}

func TestPanicBecomesGenericApology(t *testing.T) {
	e := New(&stubStats{}, &stubLister{panic: true})
	assert.Equal(t, genericApology, e.Respond(context.Background(), session, "recent"))
}

func TestHistoryIsBestEffort(t *testing.T) {
	h := &stubHistory{}
	e := New(&stubStats{stats: scenarioStats()}, &stubLister{}, WithHistory(h, h))
	e.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	reply := e.Respond(ctx, session, "balance")
	require.Len(t, h.saved, 1)
	assert.Equal(t, "balance", h.saved[0].Message)
	assert.Equal(t, reply, h.saved[0].Response)

	got := e.History(ctx, session)
	require.Len(t, got, 1)
	assert.Empty(t, e.History(ctx, nil))

	h.err = errors.New("write failed")
	assert.Equal(t, reply, e.Respond(ctx, session, "balance"), "history failure must not change the reply")
	assert.NotNil(t, e.History(ctx, session))
	assert.Empty(t, e.History(ctx, session))
}

// blockingRecorder never returns on its own, like a publisher stuck on an
// unreachable broker.
type blockingRecorder struct {
	release chan struct{}
	calls   chan core.ChatMessage
}

func (b *blockingRecorder) RecordChat(_ context.Context, m core.ChatMessage) error {
	b.calls <- m
	<-b.release
	return nil
}

func TestRespondDoesNotWaitForSlowRecorder(t *testing.T) {
	rec := &blockingRecorder{release: make(chan struct{}), calls: make(chan core.ChatMessage, 1)}
	defer close(rec.release)
	e := New(&stubStats{stats: scenarioStats()}, &stubLister{},
		WithHistory(rec, nil), WithRecordTimeout(50*time.Millisecond))

	start := time.Now()
	reply := e.Respond(context.Background(), session, "balance")

	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, reply, "$750.00")
	select {
	case m := <-rec.calls:
		assert.Equal(t, "balance", m.Message)
	case <-time.After(time.Second):
		t.Fatal("recorder was never called")
	}
}

func TestRecordSurvivesRequestCancellation(t *testing.T) {
	h := &stubHistory{}
	e := New(&stubStats{stats: scenarioStats()}, &stubLister{}, WithHistory(h, h))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e.Respond(ctx, session, "hello")
	assert.Len(t, h.saved, 1)
}
