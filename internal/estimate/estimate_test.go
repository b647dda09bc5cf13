package estimate

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/hujanlab/rainforecast/internal/models"
)

func testProfiles() map[int]models.MonthStats {
	out := make(map[int]models.MonthStats)
	for m := 1; m <= 12; m++ {
		out[m] = models.MonthStats{
			Tn: 22, Tx: 32, Tavg: 27, RHAvg: 82, SS: 5, FFX: 6, FFAvg: 4,
			RRRoll7: 5, TavgRoll7: 27, RHAvgRoll7: 82,
			RainProb: 0.4, AvgRainMM: 7,
		}
	}
	return out
}

func TestSynthesizeDeterministic(t *testing.T) {
	e := New(testProfiles())
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	a := e.Synthesize(date)
	b := e.Synthesize(date)
	for k, v := range a {
		if b[k] != v {
			t.Errorf("%s differs between runs: %v vs %v", k, v, b[k])
		}
	}

	c := e.Synthesize(date.AddDate(0, 0, 1))
	same := true
	for k, v := range a {
		if c[k] != v {
			same = false
		}
	}
	if same {
		t.Error("consecutive dates produced identical features")
	}
}

func TestSynthesizePhysicalOrdering(t *testing.T) {
	e := New(testProfiles())
	for day := 1; day <= 28; day++ {
		f := e.Synthesize(time.Date(2024, 7, day, 0, 0, 0, 0, time.UTC))
		if f["Tn"] > f["Tavg"] {
			t.Errorf("day %d: Tn %v > Tavg %v", day, f["Tn"], f["Tavg"])
		}
		if f["Tx"] < f["Tavg"] {
			t.Errorf("day %d: Tx %v < Tavg %v", day, f["Tx"], f["Tavg"])
		}
		if f["ff_avg"] > f["ff_x"] {
			t.Errorf("day %d: ff_avg %v > ff_x %v", day, f["ff_avg"], f["ff_x"])
		}
		if f["RH_avg"] < 30 || f["RH_avg"] > 100 {
			t.Errorf("day %d: RH_avg %v out of range", day, f["RH_avg"])
		}
		if f["RR_roll7"] < 0 {
			t.Errorf("day %d: RR_roll7 %v negative", day, f["RR_roll7"])
		}
		// One decimal place.
		for k, v := range f {
			if math.Abs(v*10-math.Round(v*10)) > 1e-9 {
				t.Errorf("day %d: %s = %v not rounded to one decimal", day, k, v)
			}
		}
	}
}

func TestSynthesizeWithoutProfiles(t *testing.T) {
	e := New(nil)
	f := e.Synthesize(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if len(f) != 10 {
		t.Errorf("got %d features, want 10", len(f))
	}
	// Falling back repeatedly must not mutate the shared defaults.
	g := New(nil).Synthesize(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	for k, v := range f {
		if g[k] != v {
			t.Errorf("%s not reproducible on default base: %v vs %v", k, v, g[k])
		}
	}
}

func TestBuildRowCyclicalIdentity(t *testing.T) {
	date := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	row := BuildRow(date, map[string]float64{"Tavg": 27})

	if s := row["month_sin"]*row["month_sin"] + row["month_cos"]*row["month_cos"]; math.Abs(s-1) > 1e-9 {
		t.Errorf("month sin^2+cos^2 = %v, want 1", s)
	}
	if s := row["doy_sin"]*row["doy_sin"] + row["doy_cos"]*row["doy_cos"]; math.Abs(s-1) > 1e-9 {
		t.Errorf("doy sin^2+cos^2 = %v, want 1", s)
	}
	if row["Tavg"] != 27 {
		t.Error("BuildRow dropped a physical feature")
	}
}

func mm(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func TestWindow(t *testing.T) {
	tests := []struct {
		name   string
		p      models.Prediction
		month  int
		start  int64
		end    int64
		peak   int64
		norain bool
	}{
		{"low probability", models.Prediction{Probability: 0.2, VolumeMM: mm(60)}, 1, 0, 0, 0, true},
		{"heavy dry season", models.Prediction{Probability: 0.6, VolumeMM: mm(45)}, 7, 13, 18, 14, false},
		{"heavy wet season", models.Prediction{Probability: 0.6, VolumeMM: mm(45)}, 12, 12, 19, 14, false},
		{"heavy wet season high prob", models.Prediction{Probability: 0.8, VolumeMM: mm(45)}, 12, 10, 19, 14, false},
		{"moderate", models.Prediction{Probability: 0.6, VolumeMM: mm(20)}, 7, 13, 17, 15, false},
		{"light afternoon shower", models.Prediction{Probability: 0.4, VolumeMM: mm(3)}, 7, 14, 16, 15, false},
		{"no volume", models.Prediction{Probability: 0.6}, 7, 14, 16, 15, false},
		{"wet season early start", models.Prediction{Probability: 0.75, VolumeMM: mm(3)}, 2, 12, 16, 15, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := Window(tc.p, tc.month)
			if tc.norain {
				if w.Start.Valid || w.End.Valid || w.Peak.Valid {
					t.Fatalf("expected no window, got %+v", w)
				}
				return
			}
			if !w.Start.Valid || w.Start.Int64 != tc.start {
				t.Errorf("start = %+v, want %d", w.Start, tc.start)
			}
			if !w.End.Valid || w.End.Int64 != tc.end {
				t.Errorf("end = %+v, want %d", w.End, tc.end)
			}
			if !w.Peak.Valid || w.Peak.Int64 != tc.peak {
				t.Errorf("peak = %+v, want %d", w.Peak, tc.peak)
			}
			if w.Description == "" {
				t.Error("empty description")
			}
		})
	}
}

func TestClassifyVerdict(t *testing.T) {
	tests := []struct {
		prob  float64
		label string
	}{
		{0.9, "Heavy rain"},
		{0.75, "Heavy rain"},
		{0.6, "Rain"},
		{0.5, "Rain"},
		{0.35, "Possible rain"},
		{0.1, "Clear"},
	}
	for _, tc := range tests {
		if got := ClassifyVerdict(tc.prob); got.Label != tc.label {
			t.Errorf("ClassifyVerdict(%v) = %q, want %q", tc.prob, got.Label, tc.label)
		}
	}
}

func TestIntensity(t *testing.T) {
	tests := []struct {
		name string
		p    models.Prediction
		want string
	}{
		{"very heavy", models.Prediction{Probability: 0.9, VolumeMM: mm(60)}, "Very heavy"},
		{"heavy", models.Prediction{Probability: 0.8, VolumeMM: mm(30)}, "Heavy"},
		{"moderate", models.Prediction{Probability: 0.7, VolumeMM: mm(10)}, "Moderate"},
		{"light without volume", models.Prediction{Probability: 0.6}, "Light"},
		{"none", models.Prediction{Probability: 0.2}, "None"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Intensity(tc.p); got != tc.want {
				t.Errorf("Intensity = %q, want %q", got, tc.want)
			}
		})
	}
}
