// Package profile precomputes per-calendar-month statistical baselines from
// historical feature rows. The baselines feed smart-mode inference when no
// live observation exists for a target date.
package profile

import (
	"database/sql"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/hujanlab/rainforecast/internal/models"
)

// DefaultMinMonthRows is the sparse-month floor: months with fewer same-month
// rows than this fall back to whole-dataset statistics, preventing degenerate
// single-row medians.
const DefaultMinMonthRows = 5

type Builder struct {
	MinMonthRows int
}

func NewBuilder() *Builder {
	return &Builder{MinMonthRows: DefaultMinMonthRows}
}

// Build returns a profile entry for every month 1-12. A field with no
// observed values in the selected subset yields zero; profile lookups never
// fail.
func (b *Builder) Build(rows []models.FeatureRow) map[int]models.MonthStats {
	floor := b.MinMonthRows
	if floor <= 0 {
		floor = DefaultMinMonthRows
	}

	profile := make(map[int]models.MonthStats, 12)
	for month := 1; month <= 12; month++ {
		subset := selectMonth(rows, month)
		if len(subset) < floor {
			subset = rows
		}
		profile[month] = monthStats(subset)
	}
	return profile
}

func selectMonth(rows []models.FeatureRow, month int) []models.FeatureRow {
	var subset []models.FeatureRow
	for _, r := range rows {
		if r.Month == month {
			subset = append(subset, r)
		}
	}
	return subset
}

func monthStats(subset []models.FeatureRow) models.MonthStats {
	med := func(pick func(models.FeatureRow) sql.NullFloat64) float64 {
		var vals []float64
		for _, r := range subset {
			if v := pick(r); v.Valid {
				vals = append(vals, v.Float64)
			}
		}
		if len(vals) == 0 {
			return 0
		}
		sort.Float64s(vals)
		return stat.Quantile(0.5, stat.Empirical, vals, nil)
	}

	stats := models.MonthStats{
		Tn:         med(func(r models.FeatureRow) sql.NullFloat64 { return r.Tn }),
		Tx:         med(func(r models.FeatureRow) sql.NullFloat64 { return r.Tx }),
		Tavg:       med(func(r models.FeatureRow) sql.NullFloat64 { return r.Tavg }),
		RHAvg:      med(func(r models.FeatureRow) sql.NullFloat64 { return r.RHAvg }),
		SS:         med(func(r models.FeatureRow) sql.NullFloat64 { return r.SS }),
		FFX:        med(func(r models.FeatureRow) sql.NullFloat64 { return r.FFX }),
		FFAvg:      med(func(r models.FeatureRow) sql.NullFloat64 { return r.FFAvg }),
		RRRoll7:    med(func(r models.FeatureRow) sql.NullFloat64 { return r.RRRoll7 }),
		TavgRoll7:  med(func(r models.FeatureRow) sql.NullFloat64 { return r.TavgRoll7 }),
		RHAvgRoll7: med(func(r models.FeatureRow) sql.NullFloat64 { return r.RHAvgRoll7 }),
	}

	// Rolling medians fall back to the raw-field medians when the rolling
	// columns carry no data (first rows of a sparse dataset).
	if !anyValid(subset, func(r models.FeatureRow) sql.NullFloat64 { return r.RRRoll7 }) {
		stats.RRRoll7 = med(func(r models.FeatureRow) sql.NullFloat64 { return r.RR })
	}
	if !anyValid(subset, func(r models.FeatureRow) sql.NullFloat64 { return r.TavgRoll7 }) {
		stats.TavgRoll7 = stats.Tavg
	}
	if !anyValid(subset, func(r models.FeatureRow) sql.NullFloat64 { return r.RHAvgRoll7 }) {
		stats.RHAvgRoll7 = stats.RHAvg
	}

	// Rain probability and rainy-day volume are direct aggregates, not
	// medians.
	var rainy int
	var rainSum float64
	for _, r := range subset {
		if r.IsRainy() {
			rainy++
			rainSum += r.RR.Float64
		}
	}
	if len(subset) > 0 {
		stats.RainProb = float64(rainy) / float64(len(subset))
	}
	if rainy > 0 {
		stats.AvgRainMM = rainSum / float64(rainy)
	}

	return stats
}

func anyValid(subset []models.FeatureRow, pick func(models.FeatureRow) sql.NullFloat64) bool {
	for _, r := range subset {
		if pick(r).Valid {
			return true
		}
	}
	return false
}
