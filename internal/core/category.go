package core

// Category is a static catalog entry. Transactions keep a copy of the
// name, icon and id taken when they are written.
type Category struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Type  TransactionType `json:"type"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
}

var catalog = []Category{
	{ID: "1", Name: "Food & Dining", Type: Expense, Icon: "🍔", Color: "#ef4444"},
	{ID: "2", Name: "Transportation", Type: Expense, Icon: "🚗", Color: "#f59e0b"},
	{ID: "3", Name: "Entertainment", Type: Expense, Icon: "🎬", Color: "#8b5cf6"},
	{ID: "4", Name: "Shopping", Type: Expense, Icon: "🛍️", Color: "#ec4899"},
	{ID: "5", Name: "Bills", Type: Expense, Icon: "📄", Color: "#6b7280"},
	{ID: "6", Name: "Health", Type: Expense, Icon: "⚕️", Color: "#10b981"},
	{ID: "7", Name: "Salary", Type: Income, Icon: "💼", Color: "#10b981"},
	{ID: "8", Name: "Freelance", Type: Income, Icon: "💻", Color: "#3b82f6"},
	{ID: "9", Name: "Investment", Type: Income, Icon: "📈", Color: "#059669"},
}

// Categories returns a copy of the full catalog in display order.
func Categories() []Category {
	return append([]Category(nil), catalog...)
}

// CategoriesByType returns the catalog entries of type t. An unknown type
// yields an empty slice.
func CategoriesByType(t TransactionType) []Category {
	out := make([]Category, 0, len(catalog))
	for _, c := range catalog {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func CategoryByID(id string) (Category, bool) {
	for _, c := range catalog {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
