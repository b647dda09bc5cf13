package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hujanlab/rainforecast/internal/dataset"
	"github.com/hujanlab/rainforecast/internal/estimate"
	"github.com/hujanlab/rainforecast/internal/model"
	"github.com/hujanlab/rainforecast/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type datasetRequest struct {
	Source string `json:"source"`
}

type datasetResponse struct {
	Report   models.CleanReport `json:"report"`
	Stations []string           `json:"stations"`
}

// handleDataset cleans and stores a CSV dataset, then rebuilds the monthly
// profile so subsequent predictions see the new data. The dataset arrives
// either inline as a text/csv body or as a JSON source reference for the
// server to fetch.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var observations []models.Observation
	var report models.CleanReport
	var err error
	var source string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/csv") {
		source = "inline"
		observations, report, err = dataset.Load(r.Body)
	} else {
		var req datasetRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil || req.Source == "" {
			http.Error(w, "source is required", http.StatusBadRequest)
			return
		}
		source = req.Source
		observations, report, err = s.fetcher.Fetch(req.Source)
	}
	if err != nil {
		var verr *dataset.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if err := s.store.SaveObservations(observations); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := s.rebuildProfiles(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("dataset ingested", "source", source,
		"rows_kept", report.RowsKept, "rows_dropped", report.DroppedDates)
	writeJSON(w, datasetResponse{Report: report, Stations: dataset.Stations(observations)})
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	observations, err := s.store.LoadObservations()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(observations) == 0 {
		http.Error(w, "no dataset ingested", http.StatusConflict)
		return
	}

	rows := dataset.EngineerFeatures(observations)
	trainer := model.NewTrainer(s.models, s.log)
	metrics, err := trainer.Train(rows)
	if err != nil {
		var ife *model.InsufficientFeaturesError
		if errors.As(err, &ife) {
			http.Error(w, ife.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := s.rebuildProfiles(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, metrics)
}

type predictRequest struct {
	Features map[string]float64 `json:"features"`
}

type predictResponse struct {
	Date        string             `json:"date,omitempty"`
	Probability float64            `json:"probability"`
	VolumeMM    *float64           `json:"volume_mm,omitempty"`
	Verdict     estimate.Verdict   `json:"verdict"`
	Intensity   string             `json:"intensity"`
	Window      rainWindowJSON     `json:"window"`
	Features    map[string]float64 `json:"features,omitempty"`
}

type rainWindowJSON struct {
	Start       *int64 `json:"start,omitempty"`
	End         *int64 `json:"end,omitempty"`
	Peak        *int64 `json:"peak,omitempty"`
	Description string `json:"description"`
}

// handlePredict serves two modes. GET with ?date= synthesizes features from
// the monthly profile; POST takes explicit feature values.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.predictByDate(w, r)
	case http.MethodPost:
		s.predictManual(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) predictByDate(w http.ResponseWriter, r *http.Request) {
	date := time.Now().AddDate(0, 0, 1)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	profiles, err := s.profilesForPredict()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	feats := estimate.New(profiles).Synthesize(date)
	row := estimate.BuildRow(date, feats)

	resp, ok := s.runPrediction(w, row, int(date.Month()))
	if !ok {
		return
	}
	resp.Date = date.Format("2006-01-02")
	resp.Features = feats
	writeJSON(w, resp)
}

func (s *Server) predictManual(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Features) == 0 {
		http.Error(w, "features are required", http.StatusBadRequest)
		return
	}

	month := int(time.Now().Month())
	if m, ok := req.Features["month"]; ok && m >= 1 && m <= 12 {
		month = int(m)
	}

	resp, ok := s.runPrediction(w, req.Features, month)
	if !ok {
		return
	}
	writeJSON(w, resp)
}

func (s *Server) runPrediction(w http.ResponseWriter, row map[string]float64, month int) (predictResponse, bool) {
	pred, err := model.NewPredictor(s.models).Predict(row)
	if err != nil {
		if errors.Is(err, model.ErrNotTrained) {
			http.Error(w, "model not trained", http.StatusConflict)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return predictResponse{}, false
	}

	window := estimate.Window(pred, month)
	resp := predictResponse{
		Probability: pred.Probability,
		Verdict:     estimate.ClassifyVerdict(pred.Probability),
		Intensity:   estimate.Intensity(pred),
		Window: rainWindowJSON{
			Start:       nullInt(window.Start),
			End:         nullInt(window.End),
			Peak:        nullInt(window.Peak),
			Description: window.Description,
		},
	}
	if pred.VolumeMM.Valid {
		v := pred.VolumeMM.Float64
		resp.VolumeMM = &v
	}
	return resp, true
}

type modelResponse struct {
	Trained  bool   `json:"trained"`
	Checksum string `json:"checksum,omitempty"`
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	resp := modelResponse{Trained: s.models.IsTrained()}
	if resp.Trained {
		sum, err := s.models.Checksum()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Checksum = sum
	}
	writeJSON(w, resp)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profilesForPredict()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, profiles)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}
