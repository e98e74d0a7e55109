package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/wonny/momentum-lab/internal/report"
	"github.com/wonny/momentum-lab/pkg/logger"
)

// RunHandler serves persisted backtest run tables
// ⭐ SSOT: 실행 결과 조회는 이 핸들러에서만 (읽기 전용)
type RunHandler struct {
	root   string
	logger *logger.Logger
}

// NewRunHandler creates a handler over the run directories under root
func NewRunHandler(root string, log *logger.Logger) *RunHandler {
	return &RunHandler{
		root:   root,
		logger: log,
	}
}

// ListRuns returns the run directories, newest first
// GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := report.ListRuns(h.root)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetMetrics returns the metrics table of one run
// GET /api/runs/{id}/metrics
func (h *RunHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.serveTable(w, r, report.MetricsFile, func(f io.Reader) (interface{}, error) {
		rows, err := report.ReadMetrics(f)
		if err != nil {
			return nil, err
		}
		metrics := make(map[string]float64, len(rows))
		for _, row := range rows {
			metrics[row.Metric] = row.Value
		}
		return metrics, nil
	})
}

// GetEquity returns the equity curve of one run
// GET /api/runs/{id}/equity
func (h *RunHandler) GetEquity(w http.ResponseWriter, r *http.Request) {
	h.serveTable(w, r, report.EquityFile, func(f io.Reader) (interface{}, error) {
		return report.ReadEquity(f)
	})
}

// GetTrades returns the trade log of one run
// GET /api/runs/{id}/trades
func (h *RunHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	h.serveTable(w, r, report.TradesFile, func(f io.Reader) (interface{}, error) {
		return report.ReadTrades(f)
	})
}

// serveTable opens one table of a run and renders it as JSON
func (h *RunHandler) serveTable(w http.ResponseWriter, r *http.Request, name string, read func(io.Reader) (interface{}, error)) {
	id := mux.Vars(r)["id"]
	if id == "" || filepath.Base(id) != id {
		respondError(w, http.StatusBadRequest, "Invalid run id")
		return
	}

	file, err := os.Open(filepath.Join(h.root, id, name))
	if errors.Is(err, os.ErrNotExist) {
		respondError(w, http.StatusNotFound, "Run or table not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", id).Error("Failed to open run table")
		respondError(w, http.StatusInternalServerError, "Failed to open run table")
		return
	}
	defer file.Close()

	data, err := read(file)
	if err != nil {
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"run_id": id,
			"table":  name,
		}).Error("Failed to read run table")
		respondError(w, http.StatusInternalServerError, "Failed to read run table")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": id,
		"table":  name,
		"data":   data,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
