// Package store persists cleaned observations in sqlite so retraining and
// profile rebuilds do not require re-fetching the source CSV.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hujanlab/rainforecast/internal/models"
)

const dateLayout = "2006-01-02"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveObservations upserts a cleaned batch. Re-ingesting the same source is
// idempotent; a newer file for the same station-days wins.
func (s *Store) SaveObservations(observations []models.Observation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO observations (station_id, date, tn, tx, tavg, rh_avg, rr, ss, ff_x, ff_avg, ddd_x, ddd_car)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id, date) DO UPDATE SET
			tn = excluded.tn,
			tx = excluded.tx,
			tavg = excluded.tavg,
			rh_avg = excluded.rh_avg,
			rr = excluded.rr,
			ss = excluded.ss,
			ff_x = excluded.ff_x,
			ff_avg = excluded.ff_avg,
			ddd_x = excluded.ddd_x,
			ddd_car = excluded.ddd_car
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, obs := range observations {
		if _, err := stmt.Exec(
			obs.StationID, obs.Date.Format(dateLayout),
			obs.Tn, obs.Tx, obs.Tavg, obs.RHAvg, obs.RR,
			obs.SS, obs.FFX, obs.FFAvg, obs.DDDX, obs.DDDCar,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert observation %s/%s: %w", obs.StationID, obs.Date.Format(dateLayout), err)
		}
	}

	return tx.Commit()
}

// LoadObservations returns every stored observation in date order, the input
// the feature engineer expects.
func (s *Store) LoadObservations() ([]models.Observation, error) {
	rows, err := s.db.Query(`
		SELECT station_id, date, tn, tx, tavg, rh_avg, rr, ss, ff_x, ff_avg, ddd_x, ddd_car
		FROM observations
		ORDER BY date ASC, station_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var obs models.Observation
		var date string
		if err := rows.Scan(
			&obs.StationID, &date, &obs.Tn, &obs.Tx, &obs.Tavg, &obs.RHAvg, &obs.RR,
			&obs.SS, &obs.FFX, &obs.FFAvg, &obs.DDDX, &obs.DDDCar,
		); err != nil {
			return nil, err
		}
		obs.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

func (s *Store) CountObservations() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM observations").Scan(&n)
	return n, err
}

// DateRange returns the first and last stored observation dates. ok is false
// on an empty store.
func (s *Store) DateRange() (first, last time.Time, ok bool, err error) {
	var lo, hi sql.NullString
	err = s.db.QueryRow("SELECT MIN(date), MAX(date) FROM observations").Scan(&lo, &hi)
	if err != nil || !lo.Valid {
		return time.Time{}, time.Time{}, false, err
	}
	if first, err = time.Parse(dateLayout, lo.String); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if last, err = time.Parse(dateLayout, hi.String); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return first, last, true, nil
}

func (s *Store) Stations() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT station_id FROM observations ORDER BY station_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
