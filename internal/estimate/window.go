package estimate

import (
	"database/sql"
	"fmt"

	"github.com/hujanlab/rainforecast/internal/models"
)

// wetSeason reports whether the month falls in the November to April wet
// season, when rain can arrive earlier in the day.
func wetSeason(month int) bool {
	switch month {
	case 11, 12, 1, 2, 3, 4:
		return true
	}
	return false
}

// Window estimates the likely rain hours for a day from the predicted
// probability and volume. Afternoon convective rain dominates; heavier days
// start earlier and last longer.
func Window(p models.Prediction, month int) models.RainWindow {
	if p.Probability < 0.3 {
		return models.RainWindow{Description: "No rain expected"}
	}

	wet := wetSeason(month)
	mm := p.VolumeMM

	var start, end, peak int
	switch {
	case mm.Valid && mm.Float64 > 40:
		start, peak = 13, 14
		end = 18
		if wet {
			start, end = 12, 19
		}
	case mm.Valid && mm.Float64 > 15:
		start, end, peak = 13, 17, 15
	default:
		start, end, peak = 14, 16, 15
	}

	if wet && p.Probability > 0.7 {
		start = max(9, start-2)
	}

	return models.RainWindow{
		Start:       sql.NullInt64{Int64: int64(start), Valid: true},
		End:         sql.NullInt64{Int64: int64(end), Valid: true},
		Peak:        sql.NullInt64{Int64: int64(peak), Valid: true},
		Description: fmt.Sprintf("Rain expected around %02d:00 to %02d:00", start, end),
	}
}
