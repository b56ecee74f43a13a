package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"spcs.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Citizens(context.Context) CitizenStore { return &citizenStore{db: s.db} }
func (s *PGStore) Officers(context.Context) OfficerStore { return &officerStore{db: s.db} }
func (s *PGStore) StationRequests(context.Context) StationRequestStore {
	return &stationRequestStore{db: s.db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// assignments renders "col=$n" pairs for a partial update, starting at
// placeholder index start.
func assignments(cols []string, start int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s=$%d", c, start+i)
	}
	return strings.Join(parts, ", ")
}

// Citizen store ------------------------------------------------------------
type citizenStore struct{ db *sql.DB }

const citizenColumns = `id, username, email, password_hash, phone, address, avatar_url, created_at, updated_at`

func scanCitizen(row interface{ Scan(...any) error }) (*Citizen, error) {
	var c Citizen
	if err := row.Scan(&c.ID, &c.Username, &c.Email, &c.PasswordHash, &c.Phone, &c.Address,
		&c.AvatarURL, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *citizenStore) Create(ctx context.Context, c *Citizen) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`insert into citizens(id, username, email, password_hash, phone, address, avatar_url, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.Username, c.Email, c.PasswordHash, c.Phone, c.Address, c.AvatarURL, c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *citizenStore) Find(ctx context.Context, id string) (*Citizen, error) {
	return scanCitizen(s.db.QueryRowContext(ctx,
		`select `+citizenColumns+` from citizens where id=$1`, id))
}

func (s *citizenStore) FindByEmail(ctx context.Context, email string) (*Citizen, error) {
	return scanCitizen(s.db.QueryRowContext(ctx,
		`select `+citizenColumns+` from citizens where email=$1`, email))
}

func (s *citizenStore) UpdateProfile(ctx context.Context, id string, patch CitizenPatch) (*Citizen, error) {
	var (
		cols []string
		args = []any{id}
	)
	add := func(col string, v *string) {
		if v != nil {
			cols = append(cols, col)
			args = append(args, *v)
		}
	}
	add("username", patch.Username)
	add("email", patch.Email)
	add("phone", patch.Phone)
	add("address", patch.Address)
	add("avatar_url", patch.AvatarURL)
	if len(cols) == 0 {
		return s.Find(ctx, id)
	}
	query := `update citizens set ` + assignments(cols, 2) + `, updated_at=now() where id=$1 returning ` + citizenColumns
	c, err := scanCitizen(s.db.QueryRowContext(ctx, query, args...))
	if isUniqueViolation(err) {
		return nil, ErrAlreadyExists
	}
	return c, err
}

func (s *citizenStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update citizens set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	return expectOneRow(res, err)
}

func (s *citizenStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from citizens where id=$1`, id)
	return expectOneRow(res, err)
}

func expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Officer store ------------------------------------------------------------
type officerStore struct{ db *sql.DB }

const officerColumns = `id, username, name, email, password_hash, station, rank, phone, city, status,
	avatar_url, badge_url, two_factor_enabled, session_version,
	last_login_at, last_login_ip, last_login_agent, created_at, updated_at`

func scanOfficer(row interface{ Scan(...any) error }) (*Officer, error) {
	var (
		o         Officer
		lastLogin sql.NullTime
	)
	if err := row.Scan(&o.ID, &o.Username, &o.Name, &o.Email, &o.PasswordHash, &o.Station, &o.Rank,
		&o.Phone, &o.City, &o.Status, &o.AvatarURL, &o.BadgeURL, &o.TwoFactorEnabled, &o.SessionVersion,
		&lastLogin, &o.LastLoginIP, &o.LastLoginAgent, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		o.LastLoginAt = &t
	}
	return &o, nil
}

func (s *officerStore) Create(ctx context.Context, o *Officer) error {
	if o.ID == "" {
		o.ID = ids.New()
	}
	if o.Status == "" {
		o.Status = OfficerActive
	}
	if o.SessionVersion <= 0 {
		o.SessionVersion = 1
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx,
		`insert into officers(id, username, name, email, password_hash, station, rank, phone, city, status,
		 session_version, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		o.ID, o.Username, o.Name, o.Email, o.PasswordHash, o.Station, o.Rank, o.Phone, o.City, o.Status,
		o.SessionVersion, o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *officerStore) Find(ctx context.Context, id string) (*Officer, error) {
	o, err := scanOfficer(s.db.QueryRowContext(ctx,
		`select `+officerColumns+` from officers where id=$1`, id))
	if err != nil {
		return nil, err
	}
	history, err := s.loginHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	o.LoginHistory = history
	return o, nil
}

func (s *officerStore) FindByEmail(ctx context.Context, email string) (*Officer, error) {
	return scanOfficer(s.db.QueryRowContext(ctx,
		`select `+officerColumns+` from officers where email=$1`, email))
}

func (s *officerStore) ListByStation(ctx context.Context, station string) ([]*Officer, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+officerColumns+` from officers where station=$1 order by username`, station)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Officer
	for rows.Next() {
		o, err := scanOfficer(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (s *officerStore) UpdateProfile(ctx context.Context, id string, patch OfficerPatch) (*Officer, error) {
	if patch.Status != nil && !ValidOfficerStatus(*patch.Status) {
		return nil, ErrInvalidInput
	}
	var (
		cols []string
		args = []any{id}
	)
	add := func(col string, v *string) {
		if v != nil {
			cols = append(cols, col)
			args = append(args, *v)
		}
	}
	add("name", patch.Name)
	add("rank", patch.Rank)
	add("phone", patch.Phone)
	add("city", patch.City)
	add("avatar_url", patch.AvatarURL)
	add("status", patch.Status)
	if len(cols) == 0 {
		return s.Find(ctx, id)
	}
	query := `update officers set ` + assignments(cols, 2) + `, updated_at=now() where id=$1 returning ` + officerColumns
	return scanOfficer(s.db.QueryRowContext(ctx, query, args...))
}

func (s *officerStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update officers set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	return expectOneRow(res, err)
}

func (s *officerStore) RecordLogin(ctx context.Context, id string, rec LoginRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update officers set last_login_at=$2, last_login_ip=$3, last_login_agent=$4 where id=$1`,
		id, rec.At, rec.IP, rec.UserAgent)
	if err := expectOneRow(res, err); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into officer_logins(officer_id, at, ip, user_agent) values($1,$2,$3,$4)`,
		id, rec.At, rec.IP, rec.UserAgent); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		delete from officer_logins
		where officer_id=$1 and id not in (
			select id from officer_logins where officer_id=$1 order by at desc, id desc limit $2
		)`, id, MaxLoginHistory); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *officerStore) loginHistory(ctx context.Context, id string) ([]LoginRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`select at, ip, user_agent from officer_logins where officer_id=$1 order by at desc, id desc limit $2`,
		id, MaxLoginHistory)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []LoginRecord
	for rows.Next() {
		var rec LoginRecord
		if err := rows.Scan(&rec.At, &rec.IP, &rec.UserAgent); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *officerStore) SessionState(ctx context.Context, id string) (SessionState, error) {
	var st SessionState
	err := s.db.QueryRowContext(ctx,
		`select session_version, station from officers where id=$1`, id).Scan(&st.Version, &st.Station)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionState{}, ErrNotFound
	}
	return st, err
}

func (s *officerStore) BumpSessionVersion(ctx context.Context, id string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx,
		`update officers set session_version = greatest(session_version, 1) + 1, updated_at=now()
		 where id=$1 returning session_version`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return v, err
}

func (s *officerStore) SetTwoFactor(ctx context.Context, id string, enabled bool) (*Officer, error) {
	return scanOfficer(s.db.QueryRowContext(ctx,
		`update officers set two_factor_enabled=$2, updated_at=now() where id=$1 returning `+officerColumns,
		id, enabled))
}

// Station request store ----------------------------------------------------
type stationRequestStore struct{ db *sql.DB }

func (s *stationRequestStore) Create(ctx context.Context, req *StationUpdateRequest) error {
	if req.ID == "" {
		req.ID = ids.New()
	}
	if req.Status == "" {
		req.Status = "Pending"
	}
	req.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`insert into station_update_requests(id, officer_id, station_name, message, status, created_at)
		 values($1,$2,$3,$4,$5,$6)`,
		req.ID, req.OfficerID, req.StationName, req.Message, req.Status, req.CreatedAt)
	return err
}
