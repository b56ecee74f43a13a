package complaint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var pgColumns = []string{"id", "owner_id", "title", "type", "description", "category", "contact", "photo_url",
	"location_lat", "location_lng", "location_address", "status", "station", "station_id", "nearest_distance_km",
	"assigned_to", "assigned_officer", "assigned_at", "last_updated_by", "last_updated_at", "created_at", "updated_at"}

func newMock(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func TestPGGetNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("from complaints where id=").WithArgs("c1").WillReturnRows(sqlmock.NewRows(pgColumns))

	if _, err := store.Get(context.Background(), "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGGetMapsNullableColumns(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from complaints where id=").WithArgs("c1").WillReturnRows(sqlmock.NewRows(pgColumns).
		AddRow("c1", "u1", "Stolen bike", "Theft", "d", "", "", "",
			19.06, 72.99, "Sector 17", "Pending", "Vashi", "st1", 0.4,
			"", "", nil, "", nil, now, now))
	mock.ExpectQuery("from complaints where id=").WithArgs("c2").WillReturnRows(sqlmock.NewRows(pgColumns).
		AddRow("c2", "u1", "Noise", "Nuisance", "d", "", "", "",
			nil, nil, "", "Pending", "Unassigned", "", nil,
			"", "", nil, "", nil, now, now))

	c, err := store.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Location == nil || c.Location.Lat == nil || *c.Location.Lat != 19.06 || c.Location.Address != "Sector 17" {
		t.Fatalf("unexpected location: %+v", c.Location)
	}
	if c.NearestDistanceKm == nil || *c.NearestDistanceKm != 0.4 || c.AssignedAt != nil {
		t.Fatalf("unexpected nullable fields: %+v", c)
	}

	c, err = store.Get(context.Background(), "c2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.Location != nil || c.NearestDistanceKm != nil {
		t.Fatalf("expected empty location and distance, got %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGAssignOutOfScope(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery("update complaints").
		WithArgs("c1", "o1", "Shinde", at, "In Progress", "Nerul").
		WillReturnRows(sqlmock.NewRows(pgColumns))

	if _, err := store.Assign(context.Background(), "c1", "Nerul", "o1", "Shinde", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGSetStatus(t *testing.T) {
	store, mock := newMock(t)
	at := time.Now().UTC()
	mock.ExpectQuery(`update complaints\s+set status=\$2`).
		WithArgs("c1", "Solved", "o1", at, "All Stations").
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow("c1", "u1", "Stolen bike", "Theft", "d", "", "", "",
			nil, nil, "", "Solved", "Vashi", "", nil,
			"o1", "Shinde", at, "o1", at, at, at))

	c, err := store.SetStatus(context.Background(), "c1", "All Stations", StatusSolved, "o1", at)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if c.Status != StatusSolved || c.LastUpdatedAt == nil || !c.LastUpdatedAt.Equal(at) {
		t.Fatalf("unexpected complaint: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGUpdateOwnerFieldsBuildsSetList(t *testing.T) {
	store, mock := newMock(t)
	title, contact := "New title", "98200"
	now := time.Now().UTC()
	mock.ExpectQuery(`update complaints set title=\$3, contact=\$4, updated_at=now\(\)\s+where id=\$1 and owner_id=\$2`).
		WithArgs("c1", "u1", title, contact).
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow("c1", "u1", title, "Theft", "d", "", contact, "",
			nil, nil, "", "Pending", "Vashi", "", nil,
			"", "", nil, "", nil, now, now))

	c, err := store.UpdateOwnerFields(context.Background(), "c1", "u1", Patch{Title: &title, Contact: &contact})
	if err != nil || c.Title != title || c.Contact != contact {
		t.Fatalf("update: %+v %v", c, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGListAppliesScopeAndPage(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`select count\(\*\) from complaints where station=\$1 and status=\$2`).
		WithArgs("Vashi", "Pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`order by created_at desc, id desc limit \$3 offset \$4`).
		WithArgs("Vashi", "Pending", int64(2), int64(2)).
		WillReturnRows(sqlmock.NewRows(pgColumns).AddRow("c1", "u1", "a", "Theft", "d", "", "", "",
			nil, nil, "", "Pending", "Vashi", "", nil,
			"", "", nil, "", nil, now, now))

	items, total, err := store.List(context.Background(), Scope{Station: "Vashi", Status: StatusPending}, Page{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 1 || items[0].ID != "c1" {
		t.Fatalf("unexpected list: total=%d items=%+v", total, items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGCountByStatusAllStations(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery(`select status, count\(\*\) from complaints where true group by status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("Pending", 4).AddRow("Solved", 1))

	counts, err := store.CountByStatus(context.Background(), Scope{Station: "All Stations"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[StatusPending] != 4 || counts[StatusSolved] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
