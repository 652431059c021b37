// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/archpal/coaching-platform/internal/service"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// SessionKey is the context key for the decoded session state.
	SessionKey ContextKey = "session"

	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "archpal_session"

	// SessionTokenHeader carries a refreshed token for Bearer clients.
	SessionTokenHeader = "X-Session-Token"
)

// ErrInvalidSession is returned for missing, expired or tampered tokens.
var ErrInvalidSession = errors.New("invalid session")

// sessionClaims is the JWT payload of a session token.
type sessionClaims struct {
	service.SessionState
	jwt.RegisteredClaims
}

// SessionCodec signs and verifies session tokens with HS256.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionCodec creates a codec. secure controls the cookie Secure flag.
func NewSessionCodec(secret string, ttl time.Duration, secure bool) *SessionCodec {
	return &SessionCodec{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// Encode returns a signed token for state.
func (c *SessionCodec) Encode(state service.SessionState) (string, error) {
	now := c.now()
	claims := sessionClaims{
		SessionState: state,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   state.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return token, nil
}

// Decode verifies token and returns the session state it carries.
func (c *SessionCodec) Decode(tokenString string) (service.SessionState, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return service.SessionState{}, ErrInvalidSession
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return service.SessionState{}, ErrInvalidSession
	}
	return claims.SessionState, nil
}

// Write stores state in the session cookie and the SessionTokenHeader.
func (c *SessionCodec) Write(w http.ResponseWriter, state service.SessionState) error {
	token, err := c.Encode(state)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(SessionTokenHeader, token)
	return nil
}

// Clear removes the session cookie.
func (c *SessionCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Auth creates session authentication middleware. The token is read from
// the session cookie or an "Authorization: Bearer" header.
func Auth(codec *SessionCodec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				if cookie, err := r.Cookie(SessionCookieName); err == nil {
					tokenString = cookie.Value
				}
			}
			if tokenString == "" {
				writeError(w, http.StatusUnauthorized, "not signed in")
				return
			}

			state, err := codec.Decode(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid session")
				return
			}

			setLoggedUser(r.Context(), state.UserID)
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), state)))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WithSession returns a context carrying state.
func WithSession(ctx context.Context, state service.SessionState) context.Context {
	return context.WithValue(ctx, SessionKey, state)
}

// GetSession gets the session state from context.
func GetSession(ctx context.Context) (service.SessionState, bool) {
	state, ok := ctx.Value(SessionKey).(service.SessionState)
	return state, ok
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	state, _ := GetSession(ctx)
	return state.UserID
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, msg)
}
