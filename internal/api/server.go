// Package api exposes the pipeline over a JSON HTTP surface: ingesting
// datasets, training, prediction, and the monthly profile.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hujanlab/rainforecast/internal/dataset"
	"github.com/hujanlab/rainforecast/internal/ingest"
	"github.com/hujanlab/rainforecast/internal/model"
	"github.com/hujanlab/rainforecast/internal/models"
	"github.com/hujanlab/rainforecast/internal/profile"
	"github.com/hujanlab/rainforecast/internal/store"
)

type Server struct {
	store   *store.Store
	models  model.Store
	fetcher *ingest.Fetcher
	log     *slog.Logger
	port    string

	mu       sync.RWMutex
	profiles map[int]models.MonthStats
}

func NewServer(st *store.Store, ms model.Store, port string, log *slog.Logger) *Server {
	return &Server{
		store:   st,
		models:  ms,
		fetcher: ingest.NewFetcher(),
		log:     log,
		port:    port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/dataset", s.handleDataset)
	mux.HandleFunc("/api/train", s.handleTrain)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/model", s.handleModel)
	mux.HandleFunc("/api/profile", s.handleProfile)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.log.Info("http server listening", "port", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// profilesForPredict returns the monthly baseline, rebuilding it from stored
// observations on first use.
func (s *Server) profilesForPredict() (map[int]models.MonthStats, error) {
	s.mu.RLock()
	p := s.profiles
	s.mu.RUnlock()
	if p != nil {
		return p, nil
	}
	return s.rebuildProfiles()
}

func (s *Server) rebuildProfiles() (map[int]models.MonthStats, error) {
	observations, err := s.store.LoadObservations()
	if err != nil {
		return nil, err
	}

	// An empty store yields an empty profile so the estimator falls back to
	// its generic baseline instead of zero-valued medians.
	p := map[int]models.MonthStats{}
	if len(observations) > 0 {
		rows := dataset.EngineerFeatures(observations)
		p = profile.NewBuilder().Build(rows)
	}

	s.mu.Lock()
	s.profiles = p
	s.mu.Unlock()
	return p, nil
}
