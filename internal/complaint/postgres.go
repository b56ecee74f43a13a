package complaint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"spcs.org/internal/geo"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const complaintColumns = `id, owner_id, title, type, description, category, contact, photo_url,
	location_lat, location_lng, location_address, status, station, station_id, nearest_distance_km,
	assigned_to, assigned_officer, assigned_at, last_updated_by, last_updated_at, created_at, updated_at`

// stationFilter matches the all-stations pseudo station and the empty scope
// against every row.
const stationFilter = `($%d = '' or $%[1]d = '` + geo.AllStations + `' or station = $%[1]d)`

func scanComplaint(row interface{ Scan(...any) error }) (*Complaint, error) {
	var (
		c                  Complaint
		lat, lng, dist     sql.NullFloat64
		address            string
		assignedAt, lastAt sql.NullTime
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Type, &c.Description, &c.Category, &c.Contact, &c.PhotoURL,
		&lat, &lng, &address, &c.Status, &c.Station, &c.StationID, &dist,
		&c.AssignedTo, &c.AssignedOfficer, &assignedAt, &c.LastUpdatedBy, &lastAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lat.Valid || lng.Valid || address != "" {
		c.Location = &geo.Location{Address: address}
		if lat.Valid {
			c.Location.Lat = &lat.Float64
		}
		if lng.Valid {
			c.Location.Lng = &lng.Float64
		}
	}
	if dist.Valid {
		c.NearestDistanceKm = &dist.Float64
	}
	if assignedAt.Valid {
		c.AssignedAt = &assignedAt.Time
	}
	if lastAt.Valid {
		c.LastUpdatedAt = &lastAt.Time
	}
	return &c, nil
}

func locationArgs(loc *geo.Location) (lat, lng sql.NullFloat64, address string) {
	if loc == nil {
		return
	}
	if loc.Lat != nil {
		lat = sql.NullFloat64{Float64: *loc.Lat, Valid: true}
	}
	if loc.Lng != nil {
		lng = sql.NullFloat64{Float64: *loc.Lng, Valid: true}
	}
	return lat, lng, loc.Address
}

func (s *PGStore) Create(ctx context.Context, c *Complaint) error {
	lat, lng, address := locationArgs(c.Location)
	var dist sql.NullFloat64
	if c.NearestDistanceKm != nil {
		dist = sql.NullFloat64{Float64: *c.NearestDistanceKm, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into complaints(id, owner_id, title, type, description, category, contact, photo_url,
			location_lat, location_lng, location_address, status, station, station_id, nearest_distance_km,
			created_at, updated_at)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		c.ID, c.OwnerID, c.Title, c.Type, c.Description, c.Category, c.Contact, c.PhotoURL,
		lat, lng, address, string(c.Status), c.Station, c.StationID, dist,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*Complaint, error) {
	return scanComplaint(s.db.QueryRowContext(ctx,
		`select `+complaintColumns+` from complaints where id=$1`, id))
}

func (s *PGStore) UpdateOwnerFields(ctx context.Context, id, ownerID string, patch Patch) (*Complaint, error) {
	var (
		sets []string
		args = []any{id, ownerID}
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	str := func(col string, v *string) {
		if v != nil {
			add(col, *v)
		}
	}
	str("title", patch.Title)
	str("type", patch.Type)
	str("description", patch.Description)
	str("category", patch.Category)
	str("contact", patch.Contact)
	str("photo_url", patch.PhotoURL)
	if patch.Location != nil {
		lat, lng, address := locationArgs(patch.Location)
		add("location_lat", lat)
		add("location_lng", lng)
		add("location_address", address)
	}
	if len(sets) == 0 {
		return nil, ErrInvalidInput
	}
	query := `update complaints set ` + strings.Join(sets, ", ") + `, updated_at=now()
		where id=$1 and owner_id=$2 returning ` + complaintColumns
	return scanComplaint(s.db.QueryRowContext(ctx, query, args...))
}

func (s *PGStore) Assign(ctx context.Context, id, station, officerID, officerName string, at time.Time) (*Complaint, error) {
	query := `update complaints
		set assigned_to=$2, assigned_officer=$3, assigned_at=$4, status=$5, updated_at=$4
		where id=$1 and ` + fmt.Sprintf(stationFilter, 6) + `
		returning ` + complaintColumns
	return scanComplaint(s.db.QueryRowContext(ctx, query,
		id, officerID, officerName, at, string(StatusInProgress), station))
}

func (s *PGStore) SetStatus(ctx context.Context, id, station string, status Status, officerID string, at time.Time) (*Complaint, error) {
	query := `update complaints
		set status=$2, last_updated_by=$3, last_updated_at=$4, updated_at=$4
		where id=$1 and ` + fmt.Sprintf(stationFilter, 5) + `
		returning ` + complaintColumns
	return scanComplaint(s.db.QueryRowContext(ctx, query, id, string(status), officerID, at, station))
}

// where renders the scope as a SQL predicate with placeholders numbered from 1.
func (sc Scope) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if sc.OwnerID != "" {
		args = append(args, sc.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if sc.Station != "" && sc.Station != geo.AllStations {
		args = append(args, sc.Station)
		conds = append(conds, fmt.Sprintf("station=$%d", len(args)))
	}
	if sc.Status != "" {
		args = append(args, string(sc.Status))
		conds = append(conds, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(conds) == 0 {
		return "true", nil
	}
	return strings.Join(conds, " and "), args
}

func (s *PGStore) List(ctx context.Context, scope Scope, page Page) ([]Complaint, int, error) {
	where, args := scope.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from complaints where `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := fmt.Sprintf(`select %s from complaints where %s order by created_at desc, id desc limit $%d offset $%d`,
		complaintColumns, where, n+1, n+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *c)
	}
	return res, total, rows.Err()
}

func (s *PGStore) CountByStatus(ctx context.Context, scope Scope) (map[Status]int, error) {
	where, args := scope.where()
	rows, err := s.db.QueryContext(ctx,
		`select status, count(*) from complaints where `+where+` group by status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Status]int)
	for rows.Next() {
		var (
			st Status
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteForOwner(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `delete from complaints where owner_id=$1`, ownerID)
	return err
}
