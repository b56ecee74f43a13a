package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "spcs"
	defaultSessionTTL = 7 * 24 * time.Hour
)

var errMissingSecret = errors.New("auth: signing secret is not configured")

// Claims represents JWT claims shared by citizen and officer sessions.
type Claims struct {
	Kind     Kind   `json:"kind"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Station  string `json:"station,omitempty"`
	Version  int64  `json:"ver,omitempty"`
	jwt.RegisteredClaims
}

// Sessions mints and validates signed session tokens. Officer tokens are
// additionally checked against the stored session version so that a single
// counter bump revokes every outstanding token.
type Sessions struct {
	officers func(ctx context.Context) OfficerStore
	secret   []byte
	issuer   string
	ttl      time.Duration
	now      func() time.Time
}

// SessionOption configures Sessions behavior.
type SessionOption func(*Sessions) error

// WithSecret sets the HS256 signing secret.
func WithSecret(secret string) SessionOption {
	return func(s *Sessions) error {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return errMissingSecret
		}
		s.secret = []byte(secret)
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) SessionOption {
	return func(s *Sessions) error {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
		return nil
	}
}

// WithSessionTTL configures token lifetime.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *Sessions) error {
		if ttl > 0 {
			s.ttl = ttl
		}
		return nil
	}
}

// WithSessionClock overrides time source (useful for tests).
func WithSessionClock(fn func() time.Time) SessionOption {
	return func(s *Sessions) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewSessions constructs the issuer/verifier. A secret is mandatory.
func NewSessions(store Store, opts ...SessionOption) (*Sessions, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	s := &Sessions{
		officers: store.Officers,
		issuer:   defaultIssuer,
		ttl:      defaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if len(s.secret) == 0 {
		return nil, errMissingSecret
	}
	return s, nil
}

// TTL reports the lifetime of issued tokens.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue signs a token for the principal. Officer tokens embed the station and
// the session version current at issue time.
func (s *Sessions) Issue(p Principal) (string, time.Time, error) {
	if strings.TrimSpace(p.ID) == "" {
		return "", time.Time{}, errors.New("auth: principal id is required")
	}
	if p.Kind != KindCitizen && p.Kind != KindOfficer {
		return "", time.Time{}, fmt.Errorf("auth: unknown principal kind %q", p.Kind)
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Kind:     p.Kind,
		Username: p.Username,
		Email:    p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if p.Kind == KindOfficer {
		claims.Station = p.Station
		claims.Version = p.Version
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates the token and returns the principal it represents. For
// officer tokens one store read compares the embedded version with the
// current one and refreshes the station.
func (s *Sessions) Verify(ctx context.Context, token string) (Principal, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Principal{}, err
	}
	return s.principal(ctx, claims)
}

// VerifyKind verifies the token and requires the given principal kind.
func (s *Sessions) VerifyKind(ctx context.Context, token string, kind Kind) (Principal, error) {
	claims, err := s.parse(token)
	if err != nil {
		return Principal{}, err
	}
	if claims.Kind != kind {
		return Principal{}, ErrWrongKind
	}
	return s.principal(ctx, claims)
}

func (s *Sessions) principal(ctx context.Context, claims *Claims) (Principal, error) {
	p := Principal{
		ID:       claims.Subject,
		Kind:     claims.Kind,
		Username: claims.Username,
		Email:    claims.Email,
	}
	switch claims.Kind {
	case KindCitizen:
		return p, nil
	case KindOfficer:
		if claims.Version <= 0 {
			return Principal{}, ErrSessionExpired
		}
		state, err := s.officers(ctx).SessionState(ctx, claims.Subject)
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrSessionExpired
		}
		if err != nil {
			return Principal{}, err
		}
		if state.Version != claims.Version {
			return Principal{}, ErrSessionExpired
		}
		p.Station = state.Station
		p.Version = state.Version
		return p, nil
	default:
		return Principal{}, ErrMalformed
	}
}

func (s *Sessions) parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformed
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrSignatureInvalid
	default:
		return nil, ErrMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}
