package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rainforecast_rows_ingested_total",
			Help: "Cleaned observation rows accepted into the dataset",
		},
	)

	RowsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rainforecast_rows_dropped_total",
			Help: "Rows dropped during cleaning for unparseable dates",
		},
	)

	ValuesNulled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforecast_values_nulled_total",
			Help: "Cell values nulled for falling outside physical ranges",
		},
		[]string{"column"},
	)

	TrainingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforecast_trainings_total",
			Help: "Model training attempts",
		},
		[]string{"status"},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rainforecast_training_duration_seconds",
			Help:    "Wall-clock duration of model training",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rainforecast_predictions_total",
			Help: "Prediction requests served",
		},
		[]string{"outcome"},
	)
)
