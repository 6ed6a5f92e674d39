package core

import (
	"errors"
	"strings"
)

const minPasswordLength = 6

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
)

// TransactionInput is the raw add/edit form.
type TransactionInput struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	CategoryID  string `json:"categoryId"`
}

// Fields validates the form and resolves the category snapshot from the
// catalog. Nothing here touches a store.
func (in TransactionInput) Fields() (TransactionFields, error) {
	if strings.TrimSpace(in.Amount) == "" || strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.CategoryID) == "" {
		return TransactionFields{}, invalid("", ErrMissingFields)
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return TransactionFields{}, invalid("amount", err)
	}
	typ := TransactionType(strings.ToLower(strings.TrimSpace(in.Type)))
	if typ == "" {
		typ = Expense
	}
	if !typ.Valid() {
		return TransactionFields{}, invalid("type", ErrInvalidType)
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return TransactionFields{}, invalid("date", err)
	}
	cat, ok := CategoryByID(strings.TrimSpace(in.CategoryID))
	if !ok {
		return TransactionFields{}, invalid("categoryId", ErrUnknownCategory)
	}
	if cat.Type != typ {
		return TransactionFields{}, invalid("categoryId", ErrCategoryTypeMismatch)
	}

	fields := TransactionFields{
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		Type:        typ,
		Date:        date,
	}.WithCategory(cat)
	if err := fields.Validate(); err != nil {
		return TransactionFields{}, err
	}
	return fields, nil
}

// Registration is the sign-up form.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" || r.Password == "" || r.ConfirmPassword == "" {
		return invalid("", ErrMissingFields)
	}
	if r.Password != r.ConfirmPassword {
		return invalid("confirmPassword", ErrPasswordMismatch)
	}
	return ValidatePassword(r.Password)
}

// Credentials is the sign-in form.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" || c.Password == "" {
		return invalid("", ErrMissingFields)
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return invalid("password", ErrPasswordTooShort)
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
