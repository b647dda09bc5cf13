// Package estimate synthesizes plausible feature values for a future date
// from the monthly historical baseline, deterministically jittered so every
// date gets a distinct but stable forecast.
package estimate

import (
	"math"
	"math/rand"
	"time"

	"github.com/hujanlab/rainforecast/internal/models"
)

// defaultBase stands in for the monthly baseline when no profile exists, a
// generic humid-tropics day.
var defaultBase = map[string]float64{
	"Tn": 22.0, "Tx": 32.0, "Tavg": 27.0, "RH_avg": 82.0,
	"ss": 5.0, "ff_x": 6.0, "ff_avg": 4.0,
	"RR_roll7": 5.0, "Tavg_roll7": 27.0, "RH_avg_roll7": 82.0,
}

// Estimator derives model inputs for arbitrary dates from monthly profiles.
type Estimator struct {
	Profiles map[int]models.MonthStats
}

func New(profiles map[int]models.MonthStats) *Estimator {
	return &Estimator{Profiles: profiles}
}

// Synthesize produces the physical feature values for a date: the month's
// medians perturbed by seeded Gaussian noise. The seed is derived from the
// date alone, so repeated calls for the same date agree exactly.
func (e *Estimator) Synthesize(date time.Time) map[string]float64 {
	base := e.baseFor(int(date.Month()))

	seed := int64(date.Year()*10000 + int(date.Month())*100 + date.Day())
	rng := rand.New(rand.NewSource(seed))

	jitter := func(val, sigma, lo, hi float64) float64 {
		v := val + rng.NormFloat64()*sigma
		v = math.Max(lo, v)
		v = math.Min(hi, v)
		return math.Round(v*10) / 10
	}

	// Clamp order matters: Tn and Tx bound against the already jittered
	// Tavg, ff_avg against ff_x.
	base["Tavg"] = jitter(base["Tavg"], 1.2, -5, 50)
	base["Tn"] = jitter(base["Tn"], 1.0, -5, base["Tavg"])
	base["Tx"] = jitter(base["Tx"], 1.5, base["Tavg"], 55)
	base["RH_avg"] = jitter(base["RH_avg"], 4.0, 30, 100)
	base["ss"] = jitter(base["ss"], 1.5, 0, 12)
	base["ff_x"] = jitter(base["ff_x"], 1.0, 0, 30)
	base["ff_avg"] = jitter(base["ff_avg"], 0.8, 0, base["ff_x"])

	// Rolling averages are smoother, so their noise is smaller.
	base["RR_roll7"] = jitter(base["RR_roll7"], 1.5, 0, math.Inf(1))
	base["Tavg_roll7"] = jitter(base["Tavg_roll7"], 0.8, -5, 50)
	base["RH_avg_roll7"] = jitter(base["RH_avg_roll7"], 2.5, 30, 100)

	return base
}

func (e *Estimator) baseFor(month int) map[string]float64 {
	s, ok := e.Profiles[month]
	if !ok {
		out := make(map[string]float64, len(defaultBase))
		for k, v := range defaultBase {
			out[k] = v
		}
		return out
	}
	return map[string]float64{
		"Tn": s.Tn, "Tx": s.Tx, "Tavg": s.Tavg, "RH_avg": s.RHAvg,
		"ss": s.SS, "ff_x": s.FFX, "ff_avg": s.FFAvg,
		"RR_roll7": s.RRRoll7, "Tavg_roll7": s.TavgRoll7, "RH_avg_roll7": s.RHAvgRoll7,
	}
}

// BuildRow extends synthesized physical features with the cyclical calendar
// encodings, yielding the full predictor input for a date.
func BuildRow(date time.Time, feats map[string]float64) map[string]float64 {
	row := make(map[string]float64, len(feats)+4)
	for k, v := range feats {
		row[k] = v
	}
	month := float64(date.Month())
	doy := float64(date.YearDay())
	row["month_sin"] = math.Sin(2 * math.Pi * month / 12)
	row["month_cos"] = math.Cos(2 * math.Pi * month / 12)
	row["doy_sin"] = math.Sin(2 * math.Pi * doy / 365)
	row["doy_cos"] = math.Cos(2 * math.Pi * doy / 365)
	return row
}
