package chatbot

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
)

const maxRecent = 5

const (
	loginRequired = "Please log in to use the chatbot."

	genericApology = "Sorry, I encountered an error. This might be because:\n\n" +
		"• You don't have any transactions yet\n" +
		"• There's a connection issue\n\n" +
		"Try adding some transactions first, then chat with me again! 😊"

	menu = "💰 Check your balance\n" +
		"📊 View spending\n" +
		"💵 See income\n" +
		"📝 Recent transactions\n" +
		"💡 Financial advice"

	greetingText = "Hello! 👋 I'm your finance assistant. I can help you with:\n\n" + menu +
		"\n\nWhat would you like to know?"

	defaultText = "I can help you with:\n\n" + menu + "\n\n" +
		"Try asking:\n" +
		"• What's my balance?\n" +
		"• How much did I spend?\n" +
		"• Show recent transactions\n" +
		"• Give me advice"

	balanceFallback  = "I couldn't fetch your balance. Make sure you have added some transactions first!"
	spendingFallback = "I couldn't fetch your spending data. Try adding some transactions first!"
	incomeFallback   = "I couldn't fetch your income data. Try adding some transactions first!"
	recentFallback   = "I couldn't fetch your recent transactions. Try adding some first!"
	recentEmpty      = "You don't have any transactions yet. Go to the Transactions tab and tap the + button to add one!"

	adviceFallback = "💡 Here are some financial tips:\n\n" +
		"📌 Track your expenses daily\n" +
		"💰 Save at least 20% of your income\n" +
		"📊 Review your spending weekly\n" +
		"🎯 Set financial goals\n" +
		"💳 Avoid unnecessary debt"

	generalTips = "📌 General Tips:\n" +
		"• Track daily expenses\n" +
		"• Set monthly budgets\n" +
		"• Review spending weekly\n" +
		"• Save at least 20% of income\n" +
		"• Avoid impulse purchases\n" +
		"• Use the 50/30/20 rule (needs/wants/savings)"
)

func balanceReply(ctx context.Context, e *Engine, s *core.Session) (string, error) {
	stats, err := e.stats.Statistics(ctx, s)
	if err != nil {
		return balanceFallback, nil
	}
	return fmt.Sprintf("💰 Your current balance is %s\n\n📊 Breakdown:\n• Income: %s\n• Expenses: %s",
		stats.Balance.Format(), stats.TotalIncome.Format(), stats.TotalExpense.Format()), nil
}

func spendingReply(ctx context.Context, e *Engine, s *core.Session) (string, error) {
	stats, err := e.stats.Statistics(ctx, s)
	if err != nil {
		return spendingFallback, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💸 You have spent %s in total.", stats.TotalExpense.Format())

	breakdown := stats.Breakdown()
	if len(breakdown) == 0 {
		b.WriteString("\n\nYou have no expense transactions yet.")
		return b.String(), nil
	}
	b.WriteString("\n\n📊 Breakdown by category:\n")
	for _, c := range breakdown {
		fmt.Fprintf(&b, "• %s: %s\n", c.Name, c.Amount.Format())
	}
	return b.String(), nil
}

func incomeReply(ctx context.Context, e *Engine, s *core.Session) (string, error) {
	stats, err := e.stats.Statistics(ctx, s)
	if err != nil {
		return incomeFallback, nil
	}
	reply := "💵 Your total income is " + stats.TotalIncome.Format()
	if stats.TotalIncome.Cents == 0 {
		reply += "\n\nYou have no income transactions yet. Tap the Transactions tab to add your income!"
	}
	return reply, nil
}

func recentReply(ctx context.Context, e *Engine, s *core.Session) (string, error) {
	txs, err := e.txs.List(ctx, s)
	if err != nil {
		return recentFallback, nil
	}
	if len(txs) == 0 {
		return recentEmpty, nil
	}
	if len(txs) > maxRecent {
		txs = txs[:maxRecent]
	}
	var b strings.Builder
	b.WriteString("📝 Here are your recent transactions:\n\n")
	for _, t := range txs {
		mark, sign := "❤️", "-"
		if t.Type == core.Income {
			mark, sign = "💚", "+"
		}
		fmt.Fprintf(&b, "%s %s%s - %s\n   %s %s (%s)\n\n",
			mark, sign, t.Amount.Format(), t.Description, t.CategoryIcon, t.CategoryName, t.Date)
	}
	return b.String(), nil
}

func adviceReply(ctx context.Context, e *Engine, s *core.Session) (string, error) {
	stats, err := e.stats.Statistics(ctx, s)
	if err != nil {
		return adviceFallback, nil
	}
	income, expense := stats.TotalIncome, stats.TotalExpense

	var b strings.Builder
	b.WriteString("💡 Here are some personalized financial tips:\n\n")
	// expense > 0.8*income, kept in integer cents.
	if income.Cents > 0 && expense.Cents*5 > income.Cents*4 {
		fmt.Fprintf(&b, "⚠️ You're spending %d%% of your income. Try to keep it under 80%%!\n\n",
			core.Percent(expense, income))
	}
	if income.Cents > 0 && expense.Cents > 0 {
		fmt.Fprintf(&b, "💰 Your savings rate: %d%%\n\n", core.Percent(stats.Balance, income))
	}
	b.WriteString(generalTips)
	return b.String(), nil
}

func greetingReply(context.Context, *Engine, *core.Session) (string, error) {
	return greetingText, nil
}

func defaultReply(context.Context, *Engine, *core.Session) (string, error) {
	return defaultText, nil
}
