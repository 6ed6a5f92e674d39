package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateLayout is the ISO calendar date format used for transaction dates.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// TransactionFields are the user-editable parts of a transaction. The
	// category fields are a copy of the catalog entry at write time.
	TransactionFields struct {
		Amount       Money           `json:"amount"`
		Description  string          `json:"description"`
		Type         TransactionType `json:"type"`
		Date         Date            `json:"date"`
		CategoryID   string          `json:"categoryId"`
		CategoryName string          `json:"categoryName"`
		CategoryIcon string          `json:"categoryIcon"`
	}

	Transaction struct {
		ID      string `json:"id"`
		OwnerID string `json:"ownerId"`
		TransactionFields
		CreatedAt time.Time `json:"createdAt"`
	}

	// TransactionPatch replaces the non-nil fields of a stored transaction.
	// The owner and creation time are never part of a patch.
	TransactionPatch struct {
		Amount      *Money
		Description *string
		Type        *TransactionType
		Date        *Date
		Category    *Category
	}
)

var (
	ErrInvalidAmount        = errors.New("amount must be greater than 0")
	ErrAmountTooLarge       = errors.New("amount must be at most 1000000000.00")
	ErrEmptyDescription     = errors.New("empty description")
	ErrDescriptionTooLong   = errors.New("description too long (max 200 characters)")
	ErrInvalidType          = errors.New("type must be income or expense")
	ErrInvalidDate          = errors.New("invalid date, expected YYYY-MM-DD")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrCategoryTypeMismatch = errors.New("category does not match transaction type")
	ErrMissingFields        = errors.New("please fill in all fields")
	ErrUnauthenticated      = errors.New("not authenticated")
)

// ValidationError marks failures detected before any store or identity call.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseDate parses an ISO YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: parsed}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

func (f TransactionFields) Validate() error {
	if err := f.Amount.Validate(); err != nil {
		return invalid("amount", err)
	}
	if strings.TrimSpace(f.Description) == "" {
		return invalid("description", ErrEmptyDescription)
	}
	if len(f.Description) > 200 {
		return invalid("description", ErrDescriptionTooLong)
	}
	if !f.Type.Valid() {
		return invalid("type", ErrInvalidType)
	}
	if err := f.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if strings.TrimSpace(f.CategoryName) == "" {
		return invalid("category", ErrUnknownCategory)
	}
	return nil
}

// WithCategory copies the catalog entry into the transaction snapshot.
func (f TransactionFields) WithCategory(c Category) TransactionFields {
	f.CategoryID = c.ID
	f.CategoryName = c.Name
	f.CategoryIcon = c.Icon
	return f
}

// Patch returns a patch that replaces every editable field with f.
func (f TransactionFields) Patch() TransactionPatch {
	amount, desc, typ, date := f.Amount, f.Description, f.Type, f.Date
	cat := Category{ID: f.CategoryID, Name: f.CategoryName, Icon: f.CategoryIcon, Type: f.Type}
	return TransactionPatch{
		Amount:      &amount,
		Description: &desc,
		Type:        &typ,
		Date:        &date,
		Category:    &cat,
	}
}

// Apply writes the patch onto t and validates the result.
func (p TransactionPatch) Apply(t *Transaction) error {
	next := t.TransactionFields
	if p.Amount != nil {
		next.Amount = *p.Amount
	}
	if p.Description != nil {
		next.Description = strings.TrimSpace(*p.Description)
	}
	if p.Type != nil {
		next.Type = *p.Type
	}
	if p.Date != nil {
		next.Date = *p.Date
	}
	if p.Category != nil {
		next = next.WithCategory(*p.Category)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("apply patch: %w", err)
	}
	t.TransactionFields = next
	return nil
}

// SortByDateDesc orders transactions newest date first; same-day entries
// keep the most recently created first.
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date.Time) {
			return txs[i].Date.After(txs[j].Date.Time)
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
}
