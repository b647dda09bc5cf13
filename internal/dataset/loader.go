package dataset

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hujanlab/rainforecast/internal/metrics"
	"github.com/hujanlab/rainforecast/internal/models"
)

// RequiredColumns must all be present (after header trimming) or loading
// fails with a ValidationError naming the absentees.
var RequiredColumns = []string{"date", "Tn", "Tx", "Tavg", "RH_avg", "RR", "station_id"}

// NumericColumns are coerced to float64; cells that fail coercion become
// missing, not errors.
var NumericColumns = []string{"Tn", "Tx", "Tavg", "RH_avg", "RR", "ss", "ff_x", "ddd_x", "ff_avg"}

// ValidRanges holds the physically plausible interval per column. A value
// outside its range is untrustworthy sensor output and becomes missing,
// never truncated to the boundary.
var ValidRanges = map[string][2]float64{
	"Tn":     {-10, 50},
	"Tx":     {-10, 60},
	"Tavg":   {-10, 55},
	"RH_avg": {0, 100},
	"RR":     {0, 1000},
	"ss":     {0, 24},
	"ff_x":   {0, 100},
	"ff_avg": {0, 100},
	"ddd_x":  {0, 360},
}

// ValidationError reports structurally invalid input: a source that cannot
// be read as a table, or one missing required columns.
type ValidationError struct {
	MissingColumns []string
	Err            error
}

func (e *ValidationError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("dataset missing required columns: %s", strings.Join(e.MissingColumns, ", "))
	}
	return fmt.Sprintf("read dataset: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// dayFirstFormats are tried in order before the permissive fallback parser.
var dayFirstFormats = []string{
	"02-01-2006",
	"02/01/2006",
	"2-1-2006",
	"2/1/2006",
	"2006-01-02",
}

// LoadFile reads and cleans a weather CSV from disk.
func LoadFile(path string) ([]models.Observation, models.CleanReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.CleanReport{}, &ValidationError{Err: err}
	}
	defer f.Close()
	return Load(f)
}

// Load parses, validates and cleans a weather CSV. Row-level defects (bad
// dates, non-numeric cells, out-of-range values) are recovered by dropping
// the row or nulling the cell; only structural problems are errors. An input
// whose every row is invalid yields an empty dataset, not an error.
func Load(r io.Reader) ([]models.Observation, models.CleanReport, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, models.CleanReport{}, &ValidationError{Err: err}
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, models.CleanReport{}, &ValidationError{MissingColumns: missing}
	}

	report := models.CleanReport{Nulled: make(map[string]int)}
	var observations []models.Observation

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, models.CleanReport{}, &ValidationError{Err: err}
		}
		report.RowsIn++

		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		date, ok := parseDayFirstDate(cell("date"))
		if !ok {
			report.DroppedDates++
			continue
		}

		obs := models.Observation{
			Date:      date,
			StationID: SanitizeStationID(cell("station_id")),
		}

		for _, name := range NumericColumns {
			if _, present := cols[name]; !present {
				continue
			}
			v, valid := parseNumeric(cell(name))
			if valid {
				if r, bounded := ValidRanges[name]; bounded && (v < r[0] || v > r[1]) {
					report.Nulled[name]++
					valid = false
				}
			}
			setField(&obs, name, v, valid)
		}

		if idx, present := cols["ddd_car"]; present && idx < len(record) {
			car := strings.ToUpper(strings.TrimSpace(record[idx]))
			obs.DDDCar = sql.NullString{String: car, Valid: car != ""}
		}

		observations = append(observations, obs)
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Date.Before(observations[j].Date)
	})
	report.RowsKept = len(observations)

	if report.DroppedDates > 0 {
		slog.Warn("dropped rows with unparseable dates", "count", report.DroppedDates)
	}
	metrics.RowsDropped.Add(float64(report.DroppedDates))
	for col, n := range report.Nulled {
		slog.Warn("nulled out-of-range values", "column", col, "count", n)
		metrics.ValuesNulled.WithLabelValues(col).Add(float64(n))
	}
	metrics.RowsIngested.Add(float64(report.RowsKept))

	return observations, report, nil
}

// SanitizeStationID strips every character that is not alphanumeric,
// underscore, or hyphen. Identifier fields arrive as free text and may carry
// control characters or injection payloads.
func SanitizeStationID(id string) string {
	id = strings.TrimSpace(id)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, id)
}

// Stations returns the sorted distinct station identifiers in the dataset.
func Stations(observations []models.Observation) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, obs := range observations {
		if !seen[obs.StationID] {
			seen[obs.StationID] = true
			ids = append(ids, obs.StationID)
		}
	}
	sort.Strings(ids)
	return ids
}

func parseNumeric(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDayFirstDate tries the known day-first layouts, then falls back to a
// permissive day-first split on "-", "/" or ".".
func parseDayFirstDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	sep := ""
	for _, c := range []string{"-", "/", "."} {
		if strings.Contains(s, c) {
			sep = c
			break
		}
	}
	if sep == "" {
		return time.Time{}, false
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	// A four-digit leading value means the row is year-first despite the
	// day-first hint.
	if day > 31 && year <= 31 {
		day, year = year, day
	}
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func setField(obs *models.Observation, name string, v float64, valid bool) {
	nv := sql.NullFloat64{Float64: v, Valid: valid}
	if !valid {
		nv.Float64 = 0
	}
	switch name {
	case "Tn":
		obs.Tn = nv
	case "Tx":
		obs.Tx = nv
	case "Tavg":
		obs.Tavg = nv
	case "RH_avg":
		obs.RHAvg = nv
	case "RR":
		obs.RR = nv
	case "ss":
		obs.SS = nv
	case "ff_x":
		obs.FFX = nv
	case "ff_avg":
		obs.FFAvg = nv
	case "ddd_x":
		obs.DDDX = nv
	}
}
