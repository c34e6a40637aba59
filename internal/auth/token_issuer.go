package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultSessionTTL = 12 * time.Hour
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingIssuer        = errors.New("issuer must be provided")
	errMissingReviewerID    = errors.New("reviewer id must be provided")
)

// Reviewer identifies the person a session is issued to.
type Reviewer struct {
	ID    string
	Email string
	Name  string
	Roles []string
}

// SessionIssuerConfig configures the reviewer session issuer.
type SessionIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	TTL           time.Duration
	Clock         func() time.Time
}

// SessionIssuer signs reviewer session JWTs that SessionValidator accepts.
type SessionIssuer struct {
	signingSecret []byte
	issuer        string
	ttl           time.Duration
	clock         func() time.Time
}

// NewSessionIssuer constructs a SessionIssuer with sane defaults.
func NewSessionIssuer(cfg SessionIssuerConfig) (*SessionIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errMissingIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// Issue produces a signed JWT and its expiry (seconds) for the reviewer.
func (i *SessionIssuer) Issue(reviewer Reviewer) (string, int64, error) {
	reviewerID := strings.TrimSpace(reviewer.ID)
	if reviewerID == "" {
		return "", 0, errMissingReviewerID
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl).UTC()

	claims := ReviewerClaims{
		ReviewerID:    reviewerID,
		ReviewerEmail: reviewer.Email,
		ReviewerName:  reviewer.Name,
		Roles:         append([]string(nil), reviewer.Roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewerID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}
