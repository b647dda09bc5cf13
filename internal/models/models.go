package models

import (
	"database/sql"
	"time"
)

// RainThresholdMM is the domain-wide wet/dry boundary: a day with more than
// this much rainfall counts as rainy. The label, the monthly rain
// probability, and the verdict logic all share this constant.
const RainThresholdMM = 0.5

// Observation is one cleaned station-day record. Fields that failed coercion
// or fell outside their physical range are invalid (missing), never clamped
// to a boundary.
type Observation struct {
	Date      time.Time
	StationID string
	Tn        sql.NullFloat64 // min temperature, °C
	Tx        sql.NullFloat64 // max temperature, °C
	Tavg      sql.NullFloat64 // mean temperature, °C
	RHAvg     sql.NullFloat64 // mean relative humidity, %
	RR        sql.NullFloat64 // rainfall, mm
	SS        sql.NullFloat64 // sunshine duration, hours
	FFX       sql.NullFloat64 // max wind speed, m/s
	FFAvg     sql.NullFloat64 // mean wind speed, m/s
	DDDX      sql.NullFloat64 // wind direction at max speed, degrees
	DDDCar    sql.NullString  // cardinal wind direction text
}

// IsRainy reports whether the observation recorded rainfall above the
// domain threshold. Missing rainfall counts as dry.
func (o Observation) IsRainy() bool {
	return o.RR.Valid && o.RR.Float64 > RainThresholdMM
}

// FeatureRow is an Observation extended with the derived model features.
type FeatureRow struct {
	Observation

	Year      int
	Month     int
	DayOfYear int

	MonthSin float64
	MonthCos float64
	DoySin   float64
	DoyCos   float64

	RRRoll7    sql.NullFloat64
	TavgRoll7  sql.NullFloat64
	RHAvgRoll7 sql.NullFloat64

	Rainy bool
}

// FeatureColumns is the fixed ordered feature list shared by the trainer and
// the predictor. Only columns with at least one observed value participate in
// training, so partial inputs need no reconfiguration.
var FeatureColumns = []string{
	"Tn", "Tx", "Tavg", "RH_avg", "ss", "ff_x", "ff_avg",
	"month_sin", "month_cos", "doy_sin", "doy_cos",
	"RR_roll7", "Tavg_roll7", "RH_avg_roll7",
}

// Feature returns the named feature value and whether it is present.
func (r FeatureRow) Feature(name string) (float64, bool) {
	switch name {
	case "Tn":
		return r.Tn.Float64, r.Tn.Valid
	case "Tx":
		return r.Tx.Float64, r.Tx.Valid
	case "Tavg":
		return r.Tavg.Float64, r.Tavg.Valid
	case "RH_avg":
		return r.RHAvg.Float64, r.RHAvg.Valid
	case "ss":
		return r.SS.Float64, r.SS.Valid
	case "ff_x":
		return r.FFX.Float64, r.FFX.Valid
	case "ff_avg":
		return r.FFAvg.Float64, r.FFAvg.Valid
	case "month_sin":
		return r.MonthSin, true
	case "month_cos":
		return r.MonthCos, true
	case "doy_sin":
		return r.DoySin, true
	case "doy_cos":
		return r.DoyCos, true
	case "RR_roll7":
		return r.RRRoll7.Float64, r.RRRoll7.Valid
	case "Tavg_roll7":
		return r.TavgRoll7.Float64, r.TavgRoll7.Valid
	case "RH_avg_roll7":
		return r.RHAvgRoll7.Float64, r.RHAvgRoll7.Valid
	}
	return 0, false
}

// CleanReport aggregates row-level defects recovered during cleaning. These
// are observability counts, never errors.
type CleanReport struct {
	RowsIn       int            `json:"rows_in"`
	RowsKept     int            `json:"rows_kept"`
	DroppedDates int            `json:"dropped_dates"`
	Nulled       map[string]int `json:"nulled,omitempty"`
}

// MonthStats is the historical baseline for one calendar month: the median of
// each physical feature plus direct rain aggregates.
type MonthStats struct {
	Tn         float64 `json:"Tn"`
	Tx         float64 `json:"Tx"`
	Tavg       float64 `json:"Tavg"`
	RHAvg      float64 `json:"RH_avg"`
	SS         float64 `json:"ss"`
	FFX        float64 `json:"ff_x"`
	FFAvg      float64 `json:"ff_avg"`
	RRRoll7    float64 `json:"RR_roll7"`
	TavgRoll7  float64 `json:"Tavg_roll7"`
	RHAvgRoll7 float64 `json:"RH_avg_roll7"`
	RainProb   float64 `json:"rain_prob"`
	AvgRainMM  float64 `json:"avg_rain_mm"`
}

// TrainMetrics reports held-out evaluation of a training run. MAE and R2 are
// invalid when too few rainy rows existed to train the regressor.
type TrainMetrics struct {
	Accuracy         float64         `json:"accuracy"`
	ROCAUC           float64         `json:"roc_auc"`
	MAE              sql.NullFloat64 `json:"-"`
	R2               sql.NullFloat64 `json:"-"`
	Features         []string        `json:"features"`
	Rows             int             `json:"rows"`
	RainyRows        int             `json:"rainy_rows"`
	RegressorTrained bool            `json:"regressor_trained"`
}

// Prediction is the two-stage model output for a single feature row.
// VolumeMM is only populated when rain is likelier than not and a regressor
// artifact exists.
type Prediction struct {
	Probability float64
	VolumeMM    sql.NullFloat64
}

// RainWindow is the heuristic intraday estimate of when rain is likely.
// All three hours are invalid when no rain is expected.
type RainWindow struct {
	Start       sql.NullInt64
	End         sql.NullInt64
	Peak        sql.NullInt64
	Description string
}
