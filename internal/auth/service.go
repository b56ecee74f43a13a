package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service provides registration, login and credential management for both
// principal kinds. Tokens are minted through Sessions.
type Service struct {
	store    Store
	sessions *Sessions
	now      func() time.Time
}

// Session is a freshly issued bearer token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CitizenRegistration carries the fields accepted at citizen sign-up.
type CitizenRegistration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// OfficerRegistration carries the fields accepted at officer sign-up.
type OfficerRegistration struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Station  string `json:"station"`
	Rank     string `json:"rank"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service instance.
func NewService(store Store, sessions *Sessions, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if sessions == nil {
		return nil, errors.New("auth: sessions are required")
	}
	s := &Service{store: store, sessions: sessions, now: time.Now}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Sessions exposes the token verifier used by the service.
func (s *Service) Sessions() *Sessions { return s.sessions }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) issue(p Principal) (Session, error) {
	token, exp, err := s.sessions.Issue(p)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp}, nil
}

// RegisterCitizen creates a citizen account and signs it in.
func (s *Service) RegisterCitizen(ctx context.Context, reg CitizenRegistration) (*Citizen, Session, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = normalizeEmail(reg.Email)
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return nil, Session{}, ErrInvalidInput
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, Session{}, fmt.Errorf("hash password: %w", err)
	}
	c := &Citizen{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		Phone:        NormalizePhone(reg.Phone),
	}
	if err := s.store.Citizens(ctx).Create(ctx, c); err != nil {
		return nil, Session{}, err
	}
	sess, err := s.issue(CitizenPrincipal(c))
	if err != nil {
		return nil, Session{}, err
	}
	return c, sess, nil
}

// LoginCitizen checks credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) LoginCitizen(ctx context.Context, email, password string) (*Citizen, Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, Session{}, ErrInvalidInput
	}
	c, err := s.store.Citizens(ctx).FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return nil, Session{}, err
	}
	if err := VerifyPassword(c.PasswordHash, password); err != nil {
		return nil, Session{}, err
	}
	sess, err := s.issue(CitizenPrincipal(c))
	if err != nil {
		return nil, Session{}, err
	}
	return c, sess, nil
}

// RegisterOfficer creates an officer bound to a station and signs it in.
func (s *Service) RegisterOfficer(ctx context.Context, reg OfficerRegistration) (*Officer, Session, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = normalizeEmail(reg.Email)
	reg.Station = strings.TrimSpace(reg.Station)
	if reg.Username == "" || reg.Email == "" || reg.Password == "" || reg.Station == "" {
		return nil, Session{}, ErrInvalidInput
	}
	hash, err := HashPassword(reg.Password)
	if err != nil {
		return nil, Session{}, fmt.Errorf("hash password: %w", err)
	}
	o := &Officer{
		Username:       reg.Username,
		Name:           strings.TrimSpace(reg.Name),
		Email:          reg.Email,
		PasswordHash:   hash,
		Station:        reg.Station,
		Rank:           strings.TrimSpace(reg.Rank),
		Phone:          NormalizePhone(reg.Phone),
		City:           strings.TrimSpace(reg.City),
		Status:         OfficerActive,
		SessionVersion: 1,
	}
	if err := s.store.Officers(ctx).Create(ctx, o); err != nil {
		return nil, Session{}, err
	}
	sess, err := s.issue(OfficerPrincipal(o))
	if err != nil {
		return nil, Session{}, err
	}
	return o, sess, nil
}

// LoginOfficer checks credentials and the claimed station, then records the
// login metadata.
func (s *Service) LoginOfficer(ctx context.Context, email, password, station string, rec LoginRecord) (*Officer, Session, error) {
	email = normalizeEmail(email)
	station = strings.TrimSpace(station)
	if email == "" || password == "" || station == "" {
		return nil, Session{}, ErrInvalidInput
	}
	officers := s.store.Officers(ctx)
	o, err := officers.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return nil, Session{}, err
	}
	if err := VerifyPassword(o.PasswordHash, password); err != nil {
		return nil, Session{}, err
	}
	if !strings.EqualFold(o.Station, station) {
		return nil, Session{}, ErrStationMismatch
	}
	if rec.At.IsZero() {
		rec.At = s.now().UTC()
	}
	if err := officers.RecordLogin(ctx, o.ID, rec); err != nil {
		return nil, Session{}, fmt.Errorf("record login: %w", err)
	}
	at := rec.At
	o.LastLoginAt = &at
	o.LastLoginIP = rec.IP
	o.LastLoginAgent = rec.UserAgent
	sess, err := s.issue(OfficerPrincipal(o))
	if err != nil {
		return nil, Session{}, err
	}
	return o, sess, nil
}

// Citizen loads a citizen profile.
func (s *Service) Citizen(ctx context.Context, id string) (*Citizen, error) {
	return s.store.Citizens(ctx).Find(ctx, id)
}

// CitizenByEmail looks a citizen up by login email.
func (s *Service) CitizenByEmail(ctx context.Context, email string) (*Citizen, error) {
	return s.store.Citizens(ctx).FindByEmail(ctx, normalizeEmail(email))
}

// Officer loads an officer profile with its login history.
func (s *Service) Officer(ctx context.Context, id string) (*Officer, error) {
	return s.store.Officers(ctx).Find(ctx, id)
}

// OfficersAt lists colleagues stationed at station.
func (s *Service) OfficersAt(ctx context.Context, station string) ([]*Officer, error) {
	return s.store.Officers(ctx).ListByStation(ctx, station)
}

// UpdateCitizenProfile applies the allow-listed fields of patch.
func (s *Service) UpdateCitizenProfile(ctx context.Context, id string, patch CitizenPatch) (*Citizen, error) {
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return nil, ErrInvalidInput
		}
		patch.Email = &email
	}
	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if name == "" {
			return nil, ErrInvalidInput
		}
		patch.Username = &name
	}
	if patch.Phone != nil {
		phone := NormalizePhone(*patch.Phone)
		patch.Phone = &phone
	}
	return s.store.Citizens(ctx).UpdateProfile(ctx, id, patch)
}

// UpdateOfficerProfile applies the allow-listed fields of patch.
func (s *Service) UpdateOfficerProfile(ctx context.Context, id string, patch OfficerPatch) (*Officer, error) {
	if patch.Status != nil && !ValidOfficerStatus(*patch.Status) {
		return nil, ErrInvalidInput
	}
	if patch.Phone != nil {
		phone := NormalizePhone(*patch.Phone)
		patch.Phone = &phone
	}
	return s.store.Officers(ctx).UpdateProfile(ctx, id, patch)
}

// VerifyCitizenPassword confirms the citizen knows the current password.
func (s *Service) VerifyCitizenPassword(ctx context.Context, id, password string) error {
	c, err := s.store.Citizens(ctx).Find(ctx, id)
	if err != nil {
		return err
	}
	return VerifyPassword(c.PasswordHash, password)
}

// ChangeCitizenPassword replaces the password after checking the current one.
func (s *Service) ChangeCitizenPassword(ctx context.Context, id, current, next string) error {
	if current == "" || next == "" {
		return ErrInvalidInput
	}
	if err := s.VerifyCitizenPassword(ctx, id, current); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.Citizens(ctx).UpdatePassword(ctx, id, hash)
}

// ChangeOfficerPassword replaces the password after checking the current one.
func (s *Service) ChangeOfficerPassword(ctx context.Context, id, current, next string) error {
	if current == "" || next == "" {
		return ErrInvalidInput
	}
	officers := s.store.Officers(ctx)
	o, err := officers.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := VerifyPassword(o.PasswordHash, current); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return officers.UpdatePassword(ctx, id, hash)
}

// DeleteCitizen removes the citizen record. Dependent complaints and
// notifications are removed by the caller.
func (s *Service) DeleteCitizen(ctx context.Context, id string) error {
	return s.store.Citizens(ctx).Delete(ctx, id)
}

// SetTwoFactor toggles the officer's two-factor flag.
func (s *Service) SetTwoFactor(ctx context.Context, id string, enabled bool) (*Officer, error) {
	return s.store.Officers(ctx).SetTwoFactor(ctx, id, enabled)
}

// RequestStationUpdate files a station data correction request.
func (s *Service) RequestStationUpdate(ctx context.Context, officerID, stationName, message string) (*StationUpdateRequest, error) {
	stationName = strings.TrimSpace(stationName)
	if stationName == "" {
		return nil, ErrInvalidInput
	}
	req := &StationUpdateRequest{
		OfficerID:   officerID,
		StationName: stationName,
		Message:     strings.TrimSpace(message),
	}
	if err := s.store.StationRequests(ctx).Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// LogoutAll bumps the officer's session version by one, invalidating every
// token issued before the call.
func (s *Service) LogoutAll(ctx context.Context, officerID string) (int64, error) {
	return s.store.Officers(ctx).BumpSessionVersion(ctx, officerID)
}
