package geo

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStationStoreBulkUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStationStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery("insert into stations").
		WithArgs(sqlmock.AnyArg(), "Vashi", "", "", "", "", 19.0634, 72.9981).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	mock.ExpectQuery("insert into stations").
		WithArgs(sqlmock.AnyArg(), "Uran", "", "", "", "", 18.88, 72.94).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectCommit()

	res, err := store.BulkUpsert(context.Background(), []Station{
		{Name: "Vashi", Lat: 19.0634, Lng: 72.9981},
		{Name: "Uran", Lat: 18.88, Lng: 72.94},
	})
	if err != nil {
		t.Fatalf("BulkUpsert: %v", err)
	}
	if res.Upserts != 1 || res.Modified != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStationStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStationStore(db)

	mock.ExpectQuery("select id, name, code, address, zone, division, lat, lng from stations order by name").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "code", "address", "zone", "division", "lat", "lng"}).
			AddRow("s1", "APMC", "", "", "", "", 19.0609, 72.9989).
			AddRow("s2", "Vashi", "VSH", "", "Zone 1", "", 19.0634, 72.9981))
	mock.ExpectQuery("select count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[1].Code != "VSH" {
		t.Fatalf("unexpected list %+v", list)
	}
	if n, err := store.Count(context.Background()); err != nil || n != 2 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}
}
