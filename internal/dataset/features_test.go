package dataset

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/hujanlab/rainforecast/internal/models"
)

func dayObs(station string, day int, rr sql.NullFloat64) models.Observation {
	return models.Observation{
		StationID: station,
		Date:      time.Date(2020, 1, day, 0, 0, 0, 0, time.UTC),
		RR:        rr,
	}
}

func valid(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func TestEngineerFeaturesCalendar(t *testing.T) {
	obs := []models.Observation{dayObs("96001", 15, valid(0))}
	rows := EngineerFeatures(obs)

	r := rows[0]
	if r.Year != 2020 || r.Month != 1 || r.DayOfYear != 15 {
		t.Errorf("calendar = %d-%d doy %d", r.Year, r.Month, r.DayOfYear)
	}
	if s := r.MonthSin*r.MonthSin + r.MonthCos*r.MonthCos; math.Abs(s-1) > 1e-9 {
		t.Errorf("month sin^2+cos^2 = %v, want 1", s)
	}
	if s := r.DoySin*r.DoySin + r.DoyCos*r.DoyCos; math.Abs(s-1) > 1e-9 {
		t.Errorf("doy sin^2+cos^2 = %v, want 1", s)
	}
}

func TestDecemberJanuaryAdjacency(t *testing.T) {
	dec := EngineerFeatures([]models.Observation{{
		StationID: "s", Date: time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC),
	}})[0]
	jan := EngineerFeatures([]models.Observation{{
		StationID: "s", Date: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}})[0]
	jul := EngineerFeatures([]models.Observation{{
		StationID: "s", Date: time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC),
	}})[0]

	nearby := math.Hypot(dec.MonthSin-jan.MonthSin, dec.MonthCos-jan.MonthCos)
	distant := math.Hypot(jan.MonthSin-jul.MonthSin, jan.MonthCos-jul.MonthCos)
	if nearby >= distant {
		t.Errorf("Dec-Jan distance %v not smaller than Jan-Jul %v", nearby, distant)
	}
}

func TestRollingMeanIsCausal(t *testing.T) {
	obs := []models.Observation{
		dayObs("96001", 1, valid(9)),
		dayObs("96001", 2, valid(24)),
		dayObs("96001", 3, valid(0)),
		dayObs("96001", 4, valid(0)),
	}
	rows := EngineerFeatures(obs)

	if rows[0].RRRoll7.Valid {
		t.Errorf("first row has a rolling mean: %+v", rows[0].RRRoll7)
	}
	wants := []float64{9, 16.5, 11}
	for i, want := range wants {
		got := rows[i+1].RRRoll7
		if !got.Valid || math.Abs(got.Float64-want) > 1e-9 {
			t.Errorf("row %d RR_roll7 = %+v, want %v", i+1, got, want)
		}
	}

	wantRainy := []bool{true, true, false, false}
	for i, want := range wantRainy {
		if rows[i].Rainy != want {
			t.Errorf("row %d rainy = %v, want %v", i, rows[i].Rainy, want)
		}
	}
}

func TestRollingWindowCapsAtSevenDays(t *testing.T) {
	var obs []models.Observation
	for d := 1; d <= 10; d++ {
		obs = append(obs, dayObs("96001", d, valid(float64(d))))
	}
	rows := EngineerFeatures(obs)

	// Day 10 sees days 3..9: mean 6.
	got := rows[9].RRRoll7
	if !got.Valid || math.Abs(got.Float64-6) > 1e-9 {
		t.Errorf("day 10 RR_roll7 = %+v, want 6", got)
	}
}

func TestRollingMeanPerStation(t *testing.T) {
	obs := []models.Observation{
		dayObs("A", 1, valid(100)),
		dayObs("B", 1, valid(2)),
		dayObs("A", 2, valid(0)),
		dayObs("B", 2, valid(0)),
	}
	rows := EngineerFeatures(obs)

	if got := rows[2].RRRoll7; !got.Valid || got.Float64 != 100 {
		t.Errorf("station A day 2 = %+v, want 100", got)
	}
	if got := rows[3].RRRoll7; !got.Valid || got.Float64 != 2 {
		t.Errorf("station B day 2 = %+v, want 2", got)
	}
}

func TestRollingMeanSkipsMissing(t *testing.T) {
	obs := []models.Observation{
		dayObs("96001", 1, sql.NullFloat64{}),
		dayObs("96001", 2, valid(10)),
		dayObs("96001", 3, valid(20)),
	}
	rows := EngineerFeatures(obs)

	if rows[1].RRRoll7.Valid {
		t.Errorf("window of one missing value = %+v, want invalid", rows[1].RRRoll7)
	}
	if got := rows[2].RRRoll7; !got.Valid || got.Float64 != 10 {
		t.Errorf("row 3 RR_roll7 = %+v, want 10 (missing skipped)", got)
	}
}

func TestMissingRainfallIsDry(t *testing.T) {
	rows := EngineerFeatures([]models.Observation{dayObs("96001", 1, sql.NullFloat64{})})
	if rows[0].Rainy {
		t.Error("missing rainfall labeled rainy")
	}
}
