// Package otp issues and checks short-lived one-time verification codes.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"spcs.org/internal/obs"
)

const (
	// CodeTTL is how long an issued code stays valid.
	CodeTTL = 5 * time.Minute
	// DefaultSweepInterval is how often expired entries are purged.
	DefaultSweepInterval = time.Minute
)

var (
	ErrInvalidInput   = errors.New("otp: invalid input")
	ErrInvalidSession = errors.New("otp: invalid or expired session")
	ErrExpired        = errors.New("otp: code expired")
	ErrCodeMismatch   = errors.New("otp: invalid code")
	ErrUnavailable    = errors.New("otp: delivery unavailable")
	ErrSendFailed     = errors.New("otp: failed to send code")
)

// Challenge is returned to the caller after a code was issued.
type Challenge struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"-"`
	ExpiresIn int    `json:"expiresIn"`
	Simulated bool   `json:"simulated,omitempty"`
}

// Service issues codes, delivers them and verifies them exactly once.
type Service struct {
	store       Store
	sender      Sender
	development bool
	now         func() time.Time
	interval    time.Duration
}

// Option configures Service behavior.
type Option func(*Service) error

// WithStore replaces the default in-memory store.
func WithStore(store Store) Option {
	return func(s *Service) error {
		if store == nil {
			return errors.New("otp: store is nil")
		}
		s.store = store
		return nil
	}
}

// WithSender configures outbound delivery.
func WithSender(sender Sender) Option {
	return func(s *Service) error {
		s.sender = sender
		return nil
	}
}

// WithDevelopment makes an unconfigured sender log codes instead of failing.
func WithDevelopment(dev bool) Option {
	return func(s *Service) error {
		s.development = dev
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithSweepInterval sets the expiry sweep period.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) error {
		if d > 0 {
			s.interval = d
		}
		return nil
	}
}

func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		store:    NewMemoryStore(),
		now:      time.Now,
		interval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create stores a fresh challenge for destination without delivering it.
func (s *Service) Create(ctx context.Context, destination, email, purpose string) (Challenge, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return Challenge{}, ErrInvalidInput
	}
	if purpose = strings.TrimSpace(purpose); purpose == "" {
		purpose = "login"
	}
	code, err := generateCode()
	if err != nil {
		return Challenge{}, fmt.Errorf("generate code: %w", err)
	}
	id := uuid.NewString()
	entry := Entry{
		Destination: destination,
		Email:       email,
		Code:        code,
		Purpose:     purpose,
		ExpiresAt:   s.now().Add(CodeTTL),
	}
	if err := s.store.Put(ctx, id, entry); err != nil {
		return Challenge{}, err
	}
	obs.OTPEvent("issued")
	return Challenge{SessionID: id, Code: code, ExpiresIn: int(CodeTTL / time.Second)}, nil
}

// Send issues a challenge and delivers the code by text message. Without a
// sender the code is only logged in development and refused otherwise.
func (s *Service) Send(ctx context.Context, destination, email, purpose string) (Challenge, error) {
	if s.sender == nil && !s.development {
		return Challenge{}, ErrUnavailable
	}
	ch, err := s.Create(ctx, destination, email, purpose)
	if err != nil {
		return Challenge{}, err
	}
	if s.sender == nil {
		obs.Warn("otp_simulated", map[string]any{"destination": maskDestination(destination), "code": ch.Code})
		ch.Simulated = true
		return ch, nil
	}
	body := fmt.Sprintf("Your SPCS verification code is %s. It expires in 5 minutes.", ch.Code)
	if err := s.sender.Send(ctx, destination, body); err != nil {
		_, _ = s.store.Delete(ctx, ch.SessionID)
		obs.OTPEvent("send_failed")
		obs.Error("otp_send_failed", map[string]any{"error": err})
		return Challenge{}, ErrSendFailed
	}
	return ch, nil
}

func maskDestination(destination string) string {
	if len(destination) <= 4 {
		return destination
	}
	return strings.Repeat("*", len(destination)-4) + destination[len(destination)-4:]
}

// Verify consumes the challenge when code matches. Expired entries are
// removed; a wrong code leaves the entry for another attempt. Of several
// concurrent matching calls only the one whose delete removed the entry
// succeeds.
func (s *Service) Verify(ctx context.Context, sessionID, code string) error {
	sessionID = strings.TrimSpace(sessionID)
	code = strings.TrimSpace(code)
	if sessionID == "" || code == "" {
		return ErrInvalidInput
	}
	entry, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			obs.OTPEvent("invalid_session")
		}
		return err
	}
	if !entry.ExpiresAt.After(s.now()) {
		_, _ = s.store.Delete(ctx, sessionID)
		obs.OTPEvent("expired")
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) != 1 {
		obs.OTPEvent("mismatch")
		return ErrCodeMismatch
	}
	removed, err := s.store.Delete(ctx, sessionID)
	if err != nil {
		return err
	}
	if !removed {
		obs.OTPEvent("invalid_session")
		return ErrInvalidSession
	}
	obs.OTPEvent("verified")
	return nil
}

// Sweep purges expired entries once.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.store.Sweep(ctx, s.now())
}

// Run sweeps expired entries every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				obs.Warn("otp_sweep_failed", map[string]any{"error": err})
				continue
			}
			if n > 0 {
				obs.Info("otp_sweep", map[string]any{"removed": n})
			}
		}
	}
}
