package store

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hujanlab/rainforecast/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func obs(station string, date time.Time, tavg, rr float64) models.Observation {
	return models.Observation{
		StationID: station,
		Date:      date,
		Tavg:      sql.NullFloat64{Float64: tavg, Valid: true},
		RR:        sql.NullFloat64{Float64: rr, Valid: true},
	}
}

func TestSaveAndLoadObservations(t *testing.T) {
	store := setupTestStore(t)

	d1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	batch := []models.Observation{
		obs("96001", d2, 27.1, 0),
		obs("96001", d1, 26.8, 12.4),
	}

	if err := store.SaveObservations(batch); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.LoadObservations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d observations, want 2", len(got))
	}
	if !got[0].Date.Equal(d1) {
		t.Errorf("first loaded date = %v, want %v", got[0].Date, d1)
	}
	if got[0].RR.Float64 != 12.4 {
		t.Errorf("RR = %v, want 12.4", got[0].RR.Float64)
	}
	if got[0].SS.Valid {
		t.Error("missing ss came back valid")
	}
}

func TestSaveObservationsUpserts(t *testing.T) {
	store := setupTestStore(t)

	d := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.SaveObservations([]models.Observation{obs("96001", d, 26.8, 12.4)}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveObservations([]models.Observation{obs("96001", d, 27.5, 3.0)}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	got, err := store.LoadObservations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d observations after upsert, want 1", len(got))
	}
	if got[0].Tavg.Float64 != 27.5 {
		t.Errorf("Tavg = %v, want the newer 27.5", got[0].Tavg.Float64)
	}
}

func TestDateRangeAndStations(t *testing.T) {
	store := setupTestStore(t)

	if _, _, ok, err := store.DateRange(); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	d1 := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 2, 15, 0, 0, 0, 0, time.UTC)
	if err := store.SaveObservations([]models.Observation{
		obs("96001", d1, 26, 0),
		obs("96002", d2, 27, 5),
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, last, ok, err := store.DateRange()
	if err != nil || !ok {
		t.Fatalf("date range: ok=%v err=%v", ok, err)
	}
	if !first.Equal(d1) || !last.Equal(d2) {
		t.Errorf("range = %v..%v, want %v..%v", first, last, d1, d2)
	}

	stations, err := store.Stations()
	if err != nil {
		t.Fatalf("stations: %v", err)
	}
	if len(stations) != 2 || stations[0] != "96001" || stations[1] != "96002" {
		t.Errorf("stations = %v, want [96001 96002]", stations)
	}

	n, err := store.CountObservations()
	if err != nil || n != 2 {
		t.Errorf("count = %d (err %v), want 2", n, err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
