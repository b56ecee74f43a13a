package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Citizens(ctx context.Context) CitizenStore
	Officers(ctx context.Context) OfficerStore
	StationRequests(ctx context.Context) StationRequestStore
}

// CitizenStore manages citizen credentials and profiles.
type CitizenStore interface {
	Create(ctx context.Context, c *Citizen) error
	Find(ctx context.Context, id string) (*Citizen, error)
	FindByEmail(ctx context.Context, email string) (*Citizen, error)
	UpdateProfile(ctx context.Context, id string, patch CitizenPatch) (*Citizen, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
}

// OfficerStore manages officer credentials, profiles and session versions.
type OfficerStore interface {
	Create(ctx context.Context, o *Officer) error
	Find(ctx context.Context, id string) (*Officer, error)
	FindByEmail(ctx context.Context, email string) (*Officer, error)
	ListByStation(ctx context.Context, station string) ([]*Officer, error)
	UpdateProfile(ctx context.Context, id string, patch OfficerPatch) (*Officer, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	RecordLogin(ctx context.Context, id string, rec LoginRecord) error
	SessionState(ctx context.Context, id string) (SessionState, error)
	BumpSessionVersion(ctx context.Context, id string) (int64, error)
	SetTwoFactor(ctx context.Context, id string, enabled bool) (*Officer, error)
}

// StationRequestStore records officer requests to amend station data.
type StationRequestStore interface {
	Create(ctx context.Context, req *StationUpdateRequest) error
}
