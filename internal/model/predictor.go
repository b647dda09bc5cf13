package model

import (
	"database/sql"
	"math"

	"github.com/hujanlab/rainforecast/internal/metrics"
	"github.com/hujanlab/rainforecast/internal/models"
)

// Predictor runs trained artifacts against a single day's feature values.
type Predictor struct {
	Store Store
}

func NewPredictor(store Store) *Predictor {
	return &Predictor{Store: store}
}

// Predict maps the provided feature values through the stored classifier and,
// above the rain threshold, the volume regressor. Features the model was
// trained on but absent from row are treated as missing and imputed.
func (p *Predictor) Predict(row map[string]float64) (models.Prediction, error) {
	a, err := p.Store.Load()
	if err != nil {
		return models.Prediction{}, err
	}

	x := vectorize(row, a.Classifier.Features)
	prob := a.Classifier.Model.PredictProba(a.Classifier.Pre.Transform(x))

	pred := models.Prediction{Probability: prob}
	if prob > 0.5 {
		metrics.PredictionsTotal.WithLabelValues("rain").Inc()
		if a.Regressor != nil {
			xr := vectorize(row, a.Regressor.Features)
			mm := a.Regressor.Model.Predict(a.Regressor.Pre.Transform(xr))
			if mm < 0 {
				mm = 0
			}
			pred.VolumeMM = sql.NullFloat64{Float64: mm, Valid: true}
		}
	} else {
		metrics.PredictionsTotal.WithLabelValues("dry").Inc()
	}
	return pred, nil
}

func vectorize(row map[string]float64, features []string) []float64 {
	x := make([]float64, len(features))
	for i, name := range features {
		if v, ok := row[name]; ok && !math.IsNaN(v) {
			x[i] = v
		} else {
			x[i] = math.NaN()
		}
	}
	return x
}
