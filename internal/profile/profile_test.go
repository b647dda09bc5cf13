package profile

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/hujanlab/rainforecast/internal/models"
)

func row(month, day int, tavg, rr float64) models.FeatureRow {
	date := time.Date(2020, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	r := models.FeatureRow{
		Observation: models.Observation{
			StationID: "96001",
			Date:      date,
			Tavg:      sql.NullFloat64{Float64: tavg, Valid: true},
			RR:        sql.NullFloat64{Float64: rr, Valid: true},
		},
		Year:  date.Year(),
		Month: month,
	}
	r.Rainy = r.IsRainy()
	return r
}

func TestBuildCoversAllMonths(t *testing.T) {
	var rows []models.FeatureRow
	for d := 1; d <= 10; d++ {
		rows = append(rows, row(1, d, 26, 0))
	}
	p := NewBuilder().Build(rows)
	if len(p) != 12 {
		t.Fatalf("profile has %d months, want 12", len(p))
	}
}

func TestMonthMedianAndRainAggregates(t *testing.T) {
	rows := []models.FeatureRow{
		row(3, 1, 24, 10),
		row(3, 2, 26, 20),
		row(3, 3, 28, 0),
		row(3, 4, 30, 0),
		row(3, 5, 32, 0),
	}
	p := NewBuilder().Build(rows)
	m := p[3]

	if m.Tavg != 28 {
		t.Errorf("Tavg median = %v, want 28", m.Tavg)
	}
	if math.Abs(m.RainProb-0.4) > 1e-9 {
		t.Errorf("rain prob = %v, want 0.4", m.RainProb)
	}
	if math.Abs(m.AvgRainMM-15) > 1e-9 {
		t.Errorf("avg rain = %v, want 15 over rainy days only", m.AvgRainMM)
	}
}

func TestSparseMonthFallsBackToWholeDataset(t *testing.T) {
	var rows []models.FeatureRow
	for d := 1; d <= 20; d++ {
		rows = append(rows, row(6, d, 30, 0))
	}
	// Only two February rows, below the floor of five.
	rows = append(rows, row(2, 1, 20, 50), row(2, 2, 22, 60))

	p := NewBuilder().Build(rows)

	if p[2].Tavg != 30 {
		t.Errorf("sparse February Tavg = %v, want the whole-dataset median 30", p[2].Tavg)
	}
	if p[6].Tavg != 30 {
		t.Errorf("June Tavg = %v, want 30", p[6].Tavg)
	}
}

func TestRollingMedianFallsBackToRawField(t *testing.T) {
	rows := []models.FeatureRow{
		row(5, 1, 26, 4),
		row(5, 2, 27, 6),
		row(5, 3, 28, 8),
		row(5, 4, 29, 2),
		row(5, 5, 30, 0),
	}
	p := NewBuilder().Build(rows)

	if p[5].RRRoll7 != 4 {
		t.Errorf("RR_roll7 = %v, want the raw RR median 4", p[5].RRRoll7)
	}
	if p[5].TavgRoll7 != p[5].Tavg {
		t.Errorf("Tavg_roll7 = %v, want the Tavg median %v", p[5].TavgRoll7, p[5].Tavg)
	}
}

func TestMissingValuesExcludedFromMedians(t *testing.T) {
	rows := []models.FeatureRow{
		row(7, 1, 26, 0),
		row(7, 2, 28, 0),
		row(7, 3, 30, 0),
		row(7, 4, 0, 0),
		row(7, 5, 0, 0),
	}
	rows[3].Tavg = sql.NullFloat64{}
	rows[4].Tavg = sql.NullFloat64{}

	p := NewBuilder().Build(rows)
	if p[7].Tavg != 28 {
		t.Errorf("Tavg median = %v, want 28 over the three observed values", p[7].Tavg)
	}
}
