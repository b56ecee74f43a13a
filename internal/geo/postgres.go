package geo

import (
	"context"
	"database/sql"

	"spcs.org/internal/ids"
)

var _ StationStore = (*PGStationStore)(nil)

// PGStationStore implements StationStore using PostgreSQL.
type PGStationStore struct {
	db *sql.DB
}

func NewPGStationStore(db *sql.DB) *PGStationStore {
	return &PGStationStore{db: db}
}

func (s *PGStationStore) List(ctx context.Context) ([]Station, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, code, address, zone, division, lat, lng from stations order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Station
	for rows.Next() {
		var st Station
		if err := rows.Scan(&st.ID, &st.Name, &st.Code, &st.Address, &st.Zone, &st.Division, &st.Lat, &st.Lng); err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, rows.Err()
}

func (s *PGStationStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from stations`).Scan(&n)
	return n, err
}

func (s *PGStationStore) BulkUpsert(ctx context.Context, stations []Station) (UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var res UpsertResult
	for _, st := range stations {
		var inserted bool
		err := tx.QueryRowContext(ctx, `
			insert into stations(id, name, code, address, zone, division, lat, lng, created_at, updated_at)
			values($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
			on conflict (name) do update set
				code=excluded.code, address=excluded.address, zone=excluded.zone,
				division=excluded.division, lat=excluded.lat, lng=excluded.lng, updated_at=now()
			returning (xmax = 0)`,
			ids.New(), st.Name, st.Code, st.Address, st.Zone, st.Division, st.Lat, st.Lng,
		).Scan(&inserted)
		if err != nil {
			return UpsertResult{}, err
		}
		if inserted {
			res.Upserts++
		} else {
			res.Modified++
		}
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, err
	}
	return res, nil
}
