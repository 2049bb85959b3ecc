package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSession = errors.New("missing session cookie")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// SessionClaims are the JWT claims carried by the admin session cookie.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (c *SessionClaims) Validate() error {
	if c.Email == "" {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// SessionManager issues and verifies the HS256 session cookie for the single
// admin operator. The cookie is httpOnly; no token ever reaches page scripts.
type SessionManager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewSessionManager(secret []byte, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		secret:     secret,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

func (m *SessionManager) CookieName() string { return m.cookieName }

// Issue signs a session token and wraps it in a cookie.
func (m *SessionManager) Issue(email string, now time.Time) (*http.Cookie, error) {
	claims := &SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Clear returns an expired cookie that removes the session.
func (m *SessionManager) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Verify extracts and validates the session cookie from a request.
func (m *SessionManager) Verify(r *http.Request) (*SessionClaims, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return nil, ErrMissingSession
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidSession
	}
	if !token.Valid {
		return nil, ErrInvalidSession
	}
	if err := claims.Validate(); err != nil {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
