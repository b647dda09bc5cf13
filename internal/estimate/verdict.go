package estimate

import "github.com/hujanlab/rainforecast/internal/models"

// Verdict is the headline classification shown to users.
type Verdict struct {
	Label  string `json:"label"`
	Advice string `json:"advice"`
}

func ClassifyVerdict(prob float64) Verdict {
	switch {
	case prob >= 0.75:
		return Verdict{"Heavy rain", "Heavy rain is very likely. Avoid travel if you can."}
	case prob >= 0.5:
		return Verdict{"Rain", "Bring an umbrella before heading out."}
	case prob >= 0.3:
		return Verdict{"Possible rain", "Light rain is possible."}
	}
	return Verdict{"Clear", "Clear weather. Enjoy your day."}
}

// Intensity buckets the predicted volume into a descriptive label. Without a
// volume, a likely-rain day still reads as light rain.
func Intensity(p models.Prediction) string {
	mm := p.VolumeMM
	switch {
	case mm.Valid && mm.Float64 > 50:
		return "Very heavy"
	case mm.Valid && mm.Float64 > 20:
		return "Heavy"
	case mm.Valid && mm.Float64 > 5:
		return "Moderate"
	case p.Probability > 0.5:
		return "Light"
	}
	return "None"
}
