package notify

import (
	"context"
	"database/sql"
	"errors"

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

const notificationColumns = `id, user_id, complaint_id, type, message, read, created_at`

type scanner interface{ Scan(...any) error }

func scanNotification(row scanner) (*Notification, error) {
	var n Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.ComplaintID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *PGStore) CreateForUser(ctx context.Context, n *Notification) error {
	_, err := s.db.ExecContext(ctx,
		`insert into notifications(id, user_id, complaint_id, type, message, read, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		n.ID, n.UserID, n.ComplaintID, n.Type, n.Message, n.Read, n.CreatedAt)
	return err
}

func (s *PGStore) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+notificationColumns+` from notifications where user_id=$1 order by created_at desc, id desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *n)
	}
	return res, rows.Err()
}

func (s *PGStore) MarkUserRead(ctx context.Context, userID, id string) (*Notification, error) {
	return scanNotification(s.db.QueryRowContext(ctx,
		`update notifications set read=true where id=$1 and user_id=$2 returning `+notificationColumns, id, userID))
}

func (s *PGStore) MarkAllUserRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `update notifications set read=true where user_id=$1 and not read`, userID)
	return err
}

func (s *PGStore) DeleteForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from notifications where user_id=$1`, userID)
	return err
}

const stationNotificationColumns = `id, station, complaint_id, message, read, created_at`

func scanStationNotification(row scanner) (*StationNotification, error) {
	var n StationNotification
	if err := row.Scan(&n.ID, &n.Station, &n.ComplaintID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *PGStore) CreateForStation(ctx context.Context, n *StationNotification) error {
	_, err := s.db.ExecContext(ctx,
		`insert into station_notifications(id, station, complaint_id, message, read, created_at)
		 values($1,$2,$3,$4,$5,$6)`,
		n.ID, n.Station, n.ComplaintID, n.Message, n.Read, n.CreatedAt)
	return err
}

// stationScope matches every station for the all-stations pseudo station.
const stationScope = `($1 = '` + geo.AllStations + `' or station = $1)`

func (s *PGStore) ListForStation(ctx context.Context, station string, limit int) ([]StationNotification, error) {
	if limit <= 0 {
		limit = StationListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+stationNotificationColumns+` from station_notifications
		 where `+stationScope+` order by created_at desc, id desc limit $2`, station, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []StationNotification
	for rows.Next() {
		n, err := scanStationNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *n)
	}
	return res, rows.Err()
}

func (s *PGStore) MarkStationRead(ctx context.Context, station, id string) (*StationNotification, error) {
	return scanStationNotification(s.db.QueryRowContext(ctx,
		`update station_notifications set read=true where `+stationScope+` and id=$2 returning `+stationNotificationColumns,
		station, id))
}

func (s *PGStore) MarkAllStationRead(ctx context.Context, station string) error {
	_, err := s.db.ExecContext(ctx,
		`update station_notifications set read=true where `+stationScope+` and not read`, station)
	return err
}
