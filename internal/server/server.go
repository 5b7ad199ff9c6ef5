// Package server exposes the rule engine over HTTP: POST /scan runs a scan
// against an uploaded bytecode set and config, GET /findings/{scanId}
// replays persisted results, and /metrics serves Prometheus counters.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aalsanie/shamash-sub001/internal/config"
	"github.com/aalsanie/shamash-sub001/internal/history"
	"github.com/aalsanie/shamash-sub001/internal/pipeline"
	"github.com/aalsanie/shamash-sub001/pkg/factmodel"
	"github.com/aalsanie/shamash-sub001/pkg/shamashlog"
)

var (
	scansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shamash_scans_total",
		Help: "Total number of scans run by this server.",
	})
	scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "shamash_scan_duration_seconds",
		Help: "Wall-clock duration of a scan, from unit extraction through aggregation.",
	})
	findingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shamash_findings_total",
		Help: "Total findings emitted, by severity.",
	}, []string{"severity"})
)

func init() {
	prometheus.MustRegister(scansTotal, scanDuration, findingsTotal)
}

// Server hosts the scan API and metrics endpoint.
type Server struct {
	store *history.Store
	mux   *mux.Router
}

// New builds a Server backed by store (may be nil to disable persistence).
func New(store *history.Store) *Server {
	s := &Server{store: store, mux: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/scan", s.handleScan).Methods(http.MethodPost)
	s.mux.HandleFunc("/scans", s.handleListScans).Methods(http.MethodGet)
	s.mux.HandleFunc("/findings/{scanId}", s.handleFindings).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// Handler returns the fully wrapped HTTP handler, logging every request the
// way the teacher wraps its router with handlers.CombinedLoggingHandler.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(shamashlog.InfoWriter, s.mux)
}

type scanRequest struct {
	ConfigYAML string              `json:"configYaml"`
	Units      []scanRequestUnit   `json:"units"`
}

type scanRequestUnit struct {
	OriginID   string `json:"originId"`
	OriginPath string `json:"originPath"`
	EntryPath  string `json:"entryPath"`
	BytesB64   []byte `json:"bytesBase64"`
}

type scanResponse struct {
	ScanID      int64    `json:"scanId,omitempty"`
	FindingCount int     `json:"findingCount"`
	ScoreValue  int      `json:"scoreValue"`
	ScoreBand   string   `json:"scoreBand"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	units := make([]factmodel.BytecodeUnit, 0, len(req.Units))
	for _, u := range req.Units {
		units = append(units, factmodel.BytecodeUnit{
			OriginID: u.OriginID,
			Location: factmodel.SourceLocation{
				OriginKind: factmodel.OriginOther,
				OriginPath: u.OriginPath,
				EntryPath:  u.EntryPath,
			},
			Bytes: u.BytesB64,
		})
	}

	started := time.Now()
	result, err := pipeline.Run(r.Context(), units, []byte(req.ConfigYAML), nil, started)
	finished := time.Now()
	scanDuration.Observe(finished.Sub(started).Seconds())
	scansTotal.Inc()

	if err != nil {
		resp := scanResponse{Diagnostics: diagnosticStrings(result.Diagnostics)}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(resp)
		return
	}

	for _, f := range result.Findings {
		findingsTotal.WithLabelValues(string(f.Severity)).Inc()
	}

	var scanID int64
	if s.store != nil {
		scanID, err = s.store.RecordScan(started, finished, "", len(result.Index.Classes), len(result.Index.Edges), result.Findings, result.Score)
		if err != nil {
			shamashlog.Errorf("recording scan history: %v", err)
		}
	}

	resp := scanResponse{
		ScanID:       scanID,
		FindingCount: len(result.Findings),
		ScoreValue:   result.Score.Value,
		ScoreBand:    string(result.Score.Band),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "scan history not configured", http.StatusNotImplemented)
		return
	}
	scans, err := s.store.RecentScans(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(scans)
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "scan history not configured", http.StatusNotImplemented)
		return
	}
	idStr := mux.Vars(r)["scanId"]
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid scanId", http.StatusBadRequest)
		return
	}
	findings, err := s.store.FindingsForScan(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(findings)
}

func diagnosticStrings(diags []config.Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Error())
	}
	return out
}
