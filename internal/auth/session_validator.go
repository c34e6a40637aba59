package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSessionSigningKey = errors.New("session validator: signing key required")
	ErrMissingSessionIssuer     = errors.New("session validator: issuer required")
	ErrMissingSessionCookieName = errors.New("session validator: cookie name required")
	ErrMissingSessionToken      = errors.New("session validator: token required")
	ErrInvalidSessionToken      = errors.New("session validator: invalid token")
	ErrExpiredSessionToken      = errors.New("session validator: token expired")
	ErrMissingSessionSubject    = errors.New("session validator: subject required")
	ErrSessionSubjectMismatch   = errors.New("session validator: subject does not match reviewer id")
)

// ReviewerClaims is the JWT payload carried by the reviewer session cookie.
type ReviewerClaims struct {
	ReviewerID    string   `json:"reviewer_id"`
	ReviewerEmail string   `json:"reviewer_email,omitempty"`
	ReviewerName  string   `json:"reviewer_name,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// SessionValidatorConfig describes how to validate reviewer session JWTs.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator validates HS256 reviewer session JWTs.
type SessionValidator struct {
	signingSecret []byte
	issuer        string
	cookieName    string
	clock         func() time.Time
}

// NewSessionValidator constructs a validator with the provided configuration.
func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingSessionIssuer
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		cookieName:    cookieName,
		clock:         clock,
	}, nil
}

// CookieName returns the cookie name configured for session lookups.
func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// Reviewer returns the reviewer the claims were issued to.
func (c ReviewerClaims) Reviewer() Reviewer {
	return Reviewer{
		ID:    c.ReviewerID,
		Email: c.ReviewerEmail,
		Name:  c.ReviewerName,
		Roles: append([]string(nil), c.Roles...),
	}
}

// ValidateToken validates the supplied JWT string and returns the reviewer it names.
// The subject and reviewer_id claims must agree.
func (v *SessionValidator) ValidateToken(tokenString string) (Reviewer, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return Reviewer{}, ErrMissingSessionToken
	}

	claims := &ReviewerClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidSessionToken, t.Method.Alg())
			}
			return v.signingSecret, nil
		},
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Reviewer{}, ErrExpiredSessionToken
		}
		return Reviewer{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return Reviewer{}, ErrInvalidSessionToken
	}
	if claims.Issuer != v.issuer {
		return Reviewer{}, ErrInvalidSessionToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" || strings.TrimSpace(claims.ReviewerID) == "" {
		return Reviewer{}, ErrMissingSessionSubject
	}
	if subject != claims.ReviewerID {
		return Reviewer{}, fmt.Errorf("%w: subject %q, reviewer_id %q", ErrSessionSubjectMismatch, subject, claims.ReviewerID)
	}
	return claims.Reviewer(), nil
}

// ValidateRequest extracts the configured cookie from the request and validates it.
func (v *SessionValidator) ValidateRequest(r *http.Request) (Reviewer, error) {
	if r == nil {
		return Reviewer{}, ErrMissingSessionToken
	}
	cookie, err := r.Cookie(v.cookieName)
	if err != nil || cookie == nil {
		return Reviewer{}, ErrMissingSessionToken
	}
	return v.ValidateToken(cookie.Value)
}
