package model

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/hujanlab/rainforecast/internal/metrics"
	"github.com/hujanlab/rainforecast/internal/models"
)

// ErrNotTrained is returned when predictions are requested before any
// training run has produced artifacts.
var ErrNotTrained = errors.New("model: not trained")

// InsufficientFeaturesError reports a dataset with too few usable feature
// columns to fit a model.
type InsufficientFeaturesError struct {
	Found []string
}

func (e *InsufficientFeaturesError) Error() string {
	return fmt.Sprintf("model: only %d usable feature columns (%v), need at least %d",
		len(e.Found), e.Found, minFeatureColumns)
}

const (
	minFeatureColumns = 6
	minRainyRows      = 50
	testFraction      = 0.2
	trainSeed         = 42
)

// Trainer fits the classifier and, when enough rainy days exist, the volume
// regressor, and persists both through its Store.
type Trainer struct {
	Store Store
	Log   *slog.Logger
}

func NewTrainer(store Store, log *slog.Logger) *Trainer {
	return &Trainer{Store: store, Log: log}
}

// Train fits on the full feature set and reports holdout metrics from a
// stratified 80/20 split. The persisted artifacts are refit on all rows.
func (t *Trainer) Train(rows []models.FeatureRow) (models.TrainMetrics, error) {
	start := time.Now()
	m, err := t.train(rows)
	if err != nil {
		metrics.TrainingsTotal.WithLabelValues("error").Inc()
		return m, err
	}
	metrics.TrainingsTotal.WithLabelValues("ok").Inc()
	metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	return m, nil
}

func (t *Trainer) train(rows []models.FeatureRow) (models.TrainMetrics, error) {
	var m models.TrainMetrics
	if len(rows) == 0 {
		return m, errors.New("model: no rows to train on")
	}

	features := AvailableFeatures(rows)
	if len(features) < minFeatureColumns {
		return m, &InsufficientFeaturesError{Found: features}
	}
	m.Features = features
	m.Rows = len(rows)

	X := buildMatrix(rows, features)
	y := make([]float64, len(rows))
	for i, r := range rows {
		if r.Rainy {
			y[i] = 1
			m.RainyRows++
		}
	}

	pre := fitPreprocessor(X)
	Xs := pre.transformAll(X)

	trainIdx, testIdx := stratifiedSplit(y, testFraction, trainSeed)
	if len(testIdx) == 0 || len(trainIdx) == 0 {
		return m, errors.New("model: dataset too small for a holdout split")
	}

	gbmCfg := gbmConfig{
		nTrees:       200,
		maxDepth:     4,
		learningRate: 0.05,
		subsample:    0.8,
		seed:         trainSeed,
	}

	holdout := fitGBM(subset(Xs, trainIdx), subsetF(y, trainIdx), gbmCfg)
	scores := make([]float64, len(testIdx))
	truth := make([]bool, len(testIdx))
	correct := 0
	for i, ti := range testIdx {
		p := holdout.PredictProba(Xs[ti])
		scores[i] = p
		truth[i] = y[ti] == 1
		if (p >= 0.5) == truth[i] {
			correct++
		}
	}
	m.Accuracy = float64(correct) / float64(len(testIdx))
	m.ROCAUC = rocAUC(scores, truth)

	clf := fitGBM(Xs, y, gbmCfg)
	artifacts := Artifacts{
		Classifier: &ClassifierArtifact{Features: features, Pre: pre, Model: clf},
	}

	var rainyIdx []int
	for i, v := range y {
		if v == 1 {
			rainyIdx = append(rainyIdx, i)
		}
	}
	if len(rainyIdx) > minRainyRows {
		vol := make([]float64, len(rainyIdx))
		Xr := make([][]float64, len(rainyIdx))
		for i, ri := range rainyIdx {
			Xr[i] = X[ri]
			vol[i] = rows[ri].RR.Float64
		}
		preR := fitPreprocessor(Xr)
		Xrs := preR.transformAll(Xr)

		trainR, testR := plainSplit(len(rainyIdx), testFraction, trainSeed)
		forestCfg := forestConfig{nTrees: 200, maxDepth: 8, minLeaf: 5, seed: trainSeed}
		if len(testR) > 0 && len(trainR) > 0 {
			holdoutReg := fitForest(subset(Xrs, trainR), subsetF(vol, trainR), forestCfg)
			est := make([]float64, len(testR))
			actual := make([]float64, len(testR))
			var absErr float64
			for i, ti := range testR {
				est[i] = holdoutReg.Predict(Xrs[ti])
				actual[i] = vol[ti]
				absErr += math.Abs(est[i] - actual[i])
			}
			m.MAE = sql.NullFloat64{Float64: absErr / float64(len(testR)), Valid: true}
			r2 := stat.RSquaredFrom(est, actual, nil)
			if !math.IsNaN(r2) && !math.IsInf(r2, 0) {
				m.R2 = sql.NullFloat64{Float64: r2, Valid: true}
			}
		}

		reg := fitForest(Xrs, vol, forestCfg)
		artifacts.Regressor = &RegressorArtifact{Features: features, Pre: preR, Model: reg}
		m.RegressorTrained = true
	} else if t.Log != nil {
		t.Log.Warn("too few rainy rows for the volume regressor",
			"rainy_rows", len(rainyIdx), "required", minRainyRows+1)
	}

	if err := t.Store.Save(artifacts); err != nil {
		return m, err
	}
	if t.Log != nil {
		t.Log.Info("training complete",
			"rows", m.Rows, "rainy_rows", m.RainyRows,
			"accuracy", m.Accuracy, "roc_auc", m.ROCAUC,
			"regressor", m.RegressorTrained)
	}
	return m, nil
}

// AvailableFeatures returns the feature columns with at least one valid value
// across the dataset, in canonical order.
func AvailableFeatures(rows []models.FeatureRow) []string {
	var out []string
	for _, name := range models.FeatureColumns {
		for i := range rows {
			if _, ok := rows[i].Feature(name); ok {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// buildMatrix materializes rows into a dense matrix with NaN standing in for
// missing values, later imputed by the preprocessor.
func buildMatrix(rows []models.FeatureRow, features []string) [][]float64 {
	X := make([][]float64, len(rows))
	for i := range rows {
		x := make([]float64, len(features))
		for j, name := range features {
			if v, ok := rows[i].Feature(name); ok {
				x[j] = v
			} else {
				x[j] = math.NaN()
			}
		}
		X[i] = x
	}
	return X
}

// stratifiedSplit shuffles each class independently so the holdout keeps the
// base rain rate.
func stratifiedSplit(y []float64, frac float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	var pos, neg []int
	for i, v := range y {
		if v == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	for _, class := range [][]int{neg, pos} {
		rng.Shuffle(len(class), func(a, b int) { class[a], class[b] = class[b], class[a] })
		cut := int(math.Round(frac * float64(len(class))))
		test = append(test, class[:cut]...)
		train = append(train, class[cut:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func plainSplit(n int, frac float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)
	cut := int(math.Round(frac * float64(n)))
	test = append(test, perm[:cut]...)
	train = append(train, perm[cut:]...)
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func subset(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func subsetF(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

// rocAUC computes the area under the ROC curve. Degenerate one-class holdouts
// score 0.5.
func rocAUC(scores []float64, truth []bool) float64 {
	var pos int
	for _, t := range truth {
		if t {
			pos++
		}
	}
	if pos == 0 || pos == len(truth) {
		return 0.5
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	sorted := make([]float64, len(scores))
	classes := make([]bool, len(scores))
	for i, j := range order {
		sorted[i] = scores[j]
		classes[i] = truth[j]
	}

	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
