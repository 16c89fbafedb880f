package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultIssuer  = "stacksight"
	minSecretBytes = 32
)

var (
	ErrWeakSecret   = errors.New("session secret too short")
	ErrInvalidToken = errors.New("invalid session token")
)

// Session is the authenticated state of one request.
type Session struct {
	Username  string
	ExpiresAt time.Time
}

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration) (*SessionManager, error) {
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, minSecretBytes)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	return &SessionManager{
		secret: []byte(secret),
		issuer: DefaultIssuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue signs a token for username.
func (m *SessionManager) Issue(username string) (string, Session, error) {
	if username == "" {
		return "", Session{}, errors.New("issue session: empty username")
	}
	now := m.now()
	expires := now.Add(m.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session: %w", err)
	}
	return token, Session{Username: username, ExpiresAt: expires.Truncate(time.Second)}, nil
}

// Verify parses token and returns the session it carries.
func (m *SessionManager) Verify(token string) (Session, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Session{}, ErrInvalidToken
	}
	return Session{Username: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}
