package auth

import (
	"strings"
	"time"
)

// Kind discriminates the two principal populations.
type Kind string

const (
	KindCitizen Kind = "citizen"
	KindOfficer Kind = "officer"
)

// ParseKind accepts the canonical kind names plus the legacy "user" and
// "police" aliases still sent by older clients.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "citizen", "user":
		return KindCitizen, true
	case "officer", "police":
		return KindOfficer, true
	}
	return "", false
}

// Citizen files complaints and receives notifications about them.
type Citizen struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Officer statuses.
const (
	OfficerActive  = "Active"
	OfficerOffline = "Offline"
	OfficerOnDuty  = "On Duty"
)

// ValidOfficerStatus reports whether s is an accepted duty status.
func ValidOfficerStatus(s string) bool {
	switch s {
	case OfficerActive, OfficerOffline, OfficerOnDuty:
		return true
	}
	return false
}

// MaxLoginHistory bounds the per-officer login log.
const MaxLoginHistory = 20

// LoginRecord captures where an officer signed in from.
type LoginRecord struct {
	At        time.Time `json:"at"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
}

// Officer works a single station, or every station when Station is "All Stations".
type Officer struct {
	ID               string        `json:"id"`
	Username         string        `json:"username"`
	Name             string        `json:"name,omitempty"`
	Email            string        `json:"email"`
	PasswordHash     string        `json:"-"`
	Station          string        `json:"station"`
	Rank             string        `json:"rank,omitempty"`
	Phone            string        `json:"phone,omitempty"`
	City             string        `json:"city,omitempty"`
	Status           string        `json:"status"`
	AvatarURL        string        `json:"avatarUrl,omitempty"`
	BadgeURL         string        `json:"badgeUrl,omitempty"`
	TwoFactorEnabled bool          `json:"twoFactorEnabled"`
	SessionVersion   int64         `json:"-"`
	LastLoginAt      *time.Time    `json:"lastLoginAt,omitempty"`
	LastLoginIP      string        `json:"lastLoginIp,omitempty"`
	LastLoginAgent   string        `json:"lastLoginAgent,omitempty"`
	LoginHistory     []LoginRecord `json:"loginHistory,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// SessionState is the slice of officer state consulted on every officer request.
type SessionState struct {
	Version int64
	Station string
}

// CitizenPatch lists the profile fields a citizen may change. Nil means untouched.
type CitizenPatch struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	AvatarURL *string `json:"avatarUrl"`
}

// OfficerPatch lists the profile fields an officer may change. Nil means untouched.
type OfficerPatch struct {
	Name      *string `json:"name"`
	Rank      *string `json:"rank"`
	Phone     *string `json:"phone"`
	City      *string `json:"city"`
	AvatarURL *string `json:"avatarUrl"`
	Status    *string `json:"status"`
}

// StationUpdateRequest asks administrators to correct station reference data.
type StationUpdateRequest struct {
	ID          string    `json:"id"`
	OfficerID   string    `json:"officerId"`
	StationName string    `json:"stationName"`
	Message     string    `json:"message,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Principal is the verified identity attached to a request.
type Principal struct {
	ID       string
	Kind     Kind
	Username string
	Email    string
	Station  string
	Version  int64
}

// IsOfficer reports whether the principal is an officer.
func (p Principal) IsOfficer() bool { return p.Kind == KindOfficer }

// CitizenPrincipal and OfficerPrincipal project stored records into principals.
func CitizenPrincipal(c *Citizen) Principal {
	return Principal{ID: c.ID, Kind: KindCitizen, Username: c.Username, Email: c.Email}
}

func OfficerPrincipal(o *Officer) Principal {
	return Principal{
		ID:       o.ID,
		Kind:     KindOfficer,
		Username: o.Username,
		Email:    o.Email,
		Station:  o.Station,
		Version:  o.SessionVersion,
	}
}
