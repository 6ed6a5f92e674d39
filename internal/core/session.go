package core

import "time"

type (
	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Session is the authenticated identity of one caller. It is passed
	// explicitly to every owner-scoped operation.
	Session struct {
		UserID    string    `json:"userId"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		Token     string    `json:"token,omitempty"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	ChatMessage struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"ownerId"`
		Message   string    `json:"message"`
		Response  string    `json:"response"`
		Timestamp time.Time `json:"timestamp"`
	}
)

// Authenticated is safe to call on a nil session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}
