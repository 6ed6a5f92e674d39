package http

import (
	"context"
	"errors"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/identity"
	"fintrack/internal/log"
)

type sessionKey struct{}

func withSession(ctx context.Context, s *core.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// sessionFrom returns the caller's session, or nil for anonymous requests.
func sessionFrom(ctx context.Context) *core.Session {
	s, _ := ctx.Value(sessionKey{}).(*core.Session)
	return s
}

// resolveSession turns the bearer token into a session. No token yields a
// nil session and no error.
func (s *Server) resolveSession(r *http.Request) (*core.Session, error) {
	return s.deps.Identity.CurrentUser(r.Context(), bearerToken(r))
}

// requireSession rejects requests without a valid token with 401.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.resolveSession(r)
		if err != nil || !session.Authenticated() {
			UnauthorizedError("authentication required").Write(w)
			return
		}
		next(w, r.WithContext(s.contextFor(r.Context(), session)))
	}
}

// withOptionalSession attaches a session when the token is valid and lets
// the request through either way.
func (s *Server) withOptionalSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.resolveSession(r)
		if err != nil {
			session = nil
		}
		next(w, r.WithContext(s.contextFor(r.Context(), session)))
	}
}

func (s *Server) contextFor(ctx context.Context, session *core.Session) context.Context {
	if session.Authenticated() {
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldOwnerID, session.UserID))
	}
	return withSession(ctx, session)
}

type sessionResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	User      user   `json:"user"`
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func newSessionResponse(s core.Session) sessionResponse {
	return sessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		User:      userOf(&s),
	}
}

func userOf(s *core.Session) user {
	return user{ID: s.UserID, Username: s.Username, Email: s.Email}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	session, err := s.deps.Identity.SignUp(r.Context(), core.Registration{
		Username:        p.Get("username"),
		Email:           p.Get("email"),
		Password:        p.GetRaw("password"),
		ConfirmPassword: p.GetRaw("confirmPassword"),
	})
	if err != nil {
		writeAuthError(w, r, "register", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(newSessionResponse(session)).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	session, err := s.deps.Identity.SignIn(r.Context(), core.Credentials{
		Email:    p.Get("email"),
		Password: p.GetRaw("password"),
	})
	if err != nil {
		writeAuthError(w, r, "login", err)
		return
	}
	NewResponse().JSON(newSessionResponse(session)).Write(w)
}

// handleLogout revokes the presented token. Logging out without a token is
// a no-op.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		NewResponse().Status(http.StatusNoContent).Write(w)
		return
	}
	if err := s.deps.Identity.SignOut(r.Context(), token); err != nil {
		writeAuthError(w, r, "logout", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(userOf(sessionFrom(r.Context()))).Write(w)
}

func writeAuthError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, identity.ErrEmailInUse):
		ConflictError(err.Error()).Write(w)
	case errors.Is(err, identity.ErrInvalidCredentials), errors.Is(err, identity.ErrInvalidToken):
		UnauthorizedError(err.Error()).Write(w)
	default:
		writeError(w, r, op, err)
	}
}
