package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Preprocessor is the shared pipeline preamble: median imputation of missing
// values followed by standardization. Fitted statistics are persisted inside
// the model artifact so prediction applies the exact training-time transform.
type Preprocessor struct {
	Medians []float64
	Means   []float64
	Scales  []float64
}

func fitPreprocessor(X [][]float64) Preprocessor {
	if len(X) == 0 {
		return Preprocessor{}
	}
	cols := len(X[0])
	p := Preprocessor{
		Medians: make([]float64, cols),
		Means:   make([]float64, cols),
		Scales:  make([]float64, cols),
	}

	for j := 0; j < cols; j++ {
		var observed []float64
		for i := range X {
			if !math.IsNaN(X[i][j]) {
				observed = append(observed, X[i][j])
			}
		}
		if len(observed) > 0 {
			sort.Float64s(observed)
			p.Medians[j] = stat.Quantile(0.5, stat.Empirical, observed, nil)
		}
	}

	for j := 0; j < cols; j++ {
		var sum float64
		for i := range X {
			sum += imputed(X[i][j], p.Medians[j])
		}
		mean := sum / float64(len(X))

		var ss float64
		for i := range X {
			d := imputed(X[i][j], p.Medians[j]) - mean
			ss += d * d
		}
		scale := math.Sqrt(ss / float64(len(X)))
		if scale == 0 {
			scale = 1
		}
		p.Means[j] = mean
		p.Scales[j] = scale
	}

	return p
}

// Transform imputes and standardizes a single row.
func (p Preprocessor) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (imputed(v, p.Medians[j]) - p.Means[j]) / p.Scales[j]
	}
	return out
}

func (p Preprocessor) transformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = p.Transform(X[i])
	}
	return out
}

func imputed(v, median float64) float64 {
	if math.IsNaN(v) {
		return median
	}
	return v
}
