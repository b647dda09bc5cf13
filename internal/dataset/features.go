package dataset

import (
	"database/sql"
	"math"

	"github.com/hujanlab/rainforecast/internal/models"
)

const rollingWindow = 7

// EngineerFeatures derives the model features for a cleaned dataset. The
// input is not mutated. Cyclical encodings keep December and January adjacent
// instead of maximally distant; rolling means are computed per station over
// the window of strictly earlier rows, so a day's own rainfall can never leak
// into its own rolling feature.
func EngineerFeatures(observations []models.Observation) []models.FeatureRow {
	rows := make([]models.FeatureRow, len(observations))

	type history struct {
		rr, tavg, rh []sql.NullFloat64
	}
	byStation := make(map[string]*history)

	for i, obs := range observations {
		row := models.FeatureRow{Observation: obs}

		row.Year = obs.Date.Year()
		row.Month = int(obs.Date.Month())
		row.DayOfYear = obs.Date.YearDay()

		row.MonthSin = math.Sin(2 * math.Pi * float64(row.Month) / 12)
		row.MonthCos = math.Cos(2 * math.Pi * float64(row.Month) / 12)
		row.DoySin = math.Sin(2 * math.Pi * float64(row.DayOfYear) / 365)
		row.DoyCos = math.Cos(2 * math.Pi * float64(row.DayOfYear) / 365)

		h := byStation[obs.StationID]
		if h == nil {
			h = &history{}
			byStation[obs.StationID] = h
		}
		row.RRRoll7 = trailingMean(h.rr)
		row.TavgRoll7 = trailingMean(h.tavg)
		row.RHAvgRoll7 = trailingMean(h.rh)

		h.rr = pushWindow(h.rr, obs.RR)
		h.tavg = pushWindow(h.tavg, obs.Tavg)
		h.rh = pushWindow(h.rh, obs.RHAvg)

		row.Rainy = obs.IsRainy()
		rows[i] = row
	}

	return rows
}

// trailingMean averages the observed values in the lagged window. A window
// with no observed values yields missing.
func trailingMean(window []sql.NullFloat64) sql.NullFloat64 {
	var sum float64
	var n int
	for _, v := range window {
		if v.Valid {
			sum += v.Float64
			n++
		}
	}
	if n == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: sum / float64(n), Valid: true}
}

func pushWindow(window []sql.NullFloat64, v sql.NullFloat64) []sql.NullFloat64 {
	window = append(window, v)
	if len(window) > rollingWindow {
		window = window[1:]
	}
	return window
}
