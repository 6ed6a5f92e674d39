// Package identity signs users up and in, and turns bearer tokens back into
// sessions. Passwords are stored as bcrypt hashes; sessions are HS256 JWTs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

var (
	ErrEmailInUse         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

const defaultTokenTTL = 24 * time.Hour

type claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

type Provider struct {
	users      store.UserStore
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	revoked    *gocache.Cache
	now        func() time.Time
}

type Option func(*Provider)

// WithTokenTTL sets how long issued sessions stay valid.
func WithTokenTTL(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) { p.bcryptCost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func New(users store.UserStore, secret string, opts ...Option) *Provider {
	p := &Provider{
		users:      users,
		secret:     []byte(secret),
		ttl:        defaultTokenTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.revoked = gocache.New(p.ttl, 10*time.Minute)
	return p
}

// SignUp validates the form, creates the user and returns a fresh session.
func (p *Provider) SignUp(ctx context.Context, r core.Registration) (core.Session, error) {
	if err := r.Validate(); err != nil {
		return core.Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), p.bcryptCost)
	if err != nil {
		return core.Session{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := p.users.CreateUser(ctx, core.User{
		Username:     strings.TrimSpace(r.Username),
		Email:        core.NormalizeEmail(r.Email),
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return core.Session{}, ErrEmailInUse
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "User registered", "user_id", u.ID)
	return p.issue(u)
}

func (p *Provider) SignIn(ctx context.Context, c core.Credentials) (core.Session, error) {
	if err := c.Validate(); err != nil {
		return core.Session{}, err
	}
	u, err := p.users.UserByEmail(ctx, c.Email)
	if errors.Is(err, store.ErrNotFound) {
		return core.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)); err != nil {
		return core.Session{}, ErrInvalidCredentials
	}
	return p.issue(u)
}

// SignOut revokes token until it would have expired anyway.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	c, err := p.parse(token)
	if err != nil {
		return err
	}
	remaining := c.ExpiresAt.Time.Sub(p.now())
	if remaining <= 0 {
		return nil
	}
	p.revoked.Set(c.ID, struct{}{}, remaining)
	slog.InfoContext(ctx, "Session revoked", "user_id", c.Subject)
	return nil
}

// CurrentUser returns the session carried by token. An empty token means
// nobody is signed in and yields a nil session without error.
func (p *Provider) CurrentUser(_ context.Context, token string) (*core.Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	c, err := p.parse(token)
	if err != nil {
		return nil, err
	}
	if _, revoked := p.revoked.Get(c.ID); revoked {
		return nil, ErrInvalidToken
	}
	return &core.Session{
		UserID:    c.Subject,
		Username:  c.Username,
		Email:     c.Email,
		Token:     token,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

func (p *Provider) issue(u core.User) (core.Session, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: u.Username,
		Email:    u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return core.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return core.Session{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Token:     signed,
		ExpiresAt: exp,
	}, nil
}

func (p *Provider) parse(token string) (*claims, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}
