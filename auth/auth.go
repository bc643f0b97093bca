// Package auth implements password sign-in and stateless token sessions
// over the users table, consumed through the query façade.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicdesk/localbase/runtime/client"
	"github.com/clinicdesk/localbase/runtime/types"
)

// User is the authenticated identity handed back to callers.
type User struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name,omitempty"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// Session pairs a signed token with its user.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

var (
	// ErrInvalidCredentials deliberately hides whether the email or the
	// password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNoSession is returned by GetUser before any sign-in.
	ErrNoSession = errors.New("no active session")
	// ErrUserNotFound is returned when a valid token points at a deleted
	// user.
	ErrUserNotFound = errors.New("user not found")
)

const tokenTTL = 7 * 24 * time.Hour

// Auth issues and validates sessions against the users table.
type Auth struct {
	client  *client.Client
	secret  []byte
	session *Session
}

// New creates an Auth over the query client. The secret signs session
// tokens; rotating it invalidates every outstanding session.
func New(c *client.Client, secret string) *Auth {
	return &Auth{client: c, secret: []byte(secret)}
}

// SignInWithPassword verifies the password against the stored hash and
// opens a session.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	row, err := a.lookup(ctx, "email", email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	hash, _ := row["password_hash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	user := userFromRow(row)
	now := time.Now()
	expires := now.Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	a.session = &Session{Token: token, ExpiresAt: expires, User: user}
	return a.session, nil
}

// GetUser returns the current session's user, re-read from storage.
func (a *Auth) GetUser(ctx context.Context) (*User, error) {
	if a.session == nil {
		return nil, ErrNoSession
	}
	return a.GetUserFromToken(ctx, a.session.Token)
}

// GetUserFromToken validates a token and loads its user.
func (a *Auth) GetUserFromToken(ctx context.Context, token string) (*User, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("invalid session token: missing subject")
	}

	row, err := a.lookup(ctx, "id", sub)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return userFromRow(row), nil
}

// SignOut drops the current session. Tokens are stateless, so an issued
// token stays decodable until it expires.
func (a *Auth) SignOut() {
	a.session = nil
}

// Session returns the current session, nil when signed out.
func (a *Auth) Session() *Session {
	return a.session
}

// HashPassword hashes a password for storage in users.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (a *Auth) lookup(ctx context.Context, column, value string) (types.Row, error) {
	res := a.client.From("users").Select("*").Eq(column, value).Single().Execute(ctx)
	if res.Error != nil {
		return nil, errors.New(res.Error.Message)
	}
	row, ok := res.Data.(types.Row)
	if !ok {
		return nil, ErrUserNotFound
	}
	return row, nil
}

func userFromRow(row types.Row) *User {
	u := &User{}
	u.ID, _ = row["id"].(string)
	u.Email, _ = row["email"].(string)
	u.DisplayName, _ = row["display_name"].(string)
	if settings, ok := row["settings"].(map[string]any); ok {
		u.Settings = settings
	}
	return u
}
