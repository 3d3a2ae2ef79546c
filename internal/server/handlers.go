package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/chenyongxin/mytools/internal/store"
)

// defaultPageSize bounds list responses when the client doesn't ask for a
// specific count.
const defaultPageSize = 50

// apiRoutes wires the read-only catalog REST API.
func apiRoutes(db store.Store) http.Handler {
	r := chi.NewRouter()
	r.Get("/runs", handleListRuns(db))
	r.Get("/runs/{run}", handleGetRun(db))
	r.Get("/runs/{run}/artifacts", handleGetRunArtifacts(db))
	r.Get("/artifacts", handleListArtifacts(db))
	return r
}

type runsResponse struct {
	Runs          []store.Run `json:"runs"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

type artifactsResponse struct {
	Artifacts     []store.Artifact `json:"artifacts"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func handleListRuns(db store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := pageCount(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		runs, token, err := db.QueryRuns(r.Context(), r.URL.Query().Get("filter"), r.URL.Query().Get("page_token"), count)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if runs == nil {
			runs = []store.Run{}
		}
		writeJSON(w, runsResponse{Runs: runs, NextPageToken: token})
	}
}

func handleGetRun(db store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := db.GetRuns(r.Context(), chi.URLParam(r, "run"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if len(runs) == 0 {
			writeError(w, http.StatusNotFound, nil)
			return
		}
		writeJSON(w, runs[0])
	}
}

func handleGetRunArtifacts(db store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifacts, err := db.GetArtifacts(r.Context(), chi.URLParam(r, "run"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if artifacts == nil {
			artifacts = []store.Artifact{}
		}
		writeJSON(w, artifactsResponse{Artifacts: artifacts})
	}
}

func handleListArtifacts(db store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run := r.URL.Query().Get("run")
		if run == "" {
			writeError(w, http.StatusBadRequest, nil)
			return
		}
		count, err := pageCount(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		artifacts, token, err := db.QueryArtifacts(r.Context(), run, r.URL.Query().Get("page_token"), count)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if artifacts == nil {
			artifacts = []store.Artifact{}
		}
		writeJSON(w, artifactsResponse{Artifacts: artifacts, NextPageToken: token})
	}
}

// handleHealthz reports the health of the server by pinging the catalog
// database, bounded by the configured timeout.
func handleHealthz(db store.Store, timeout time.Duration, log Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Error(err, "health check failed")
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func pageCount(r *http.Request) (int, error) {
	s := r.URL.Query().Get("count")
	if s == "" {
		return defaultPageSize, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	// a non-positive count would make the query unbounded
	if n < 1 {
		n = defaultPageSize
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "unable to encode response body")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := http.StatusText(code)
	if err != nil {
		msg = err.Error()
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeStoreError maps catalog errors onto HTTP status codes, keeping page
// token misuse a client error.
func writeStoreError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "invalid page token") {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

// requestMetrics instruments the HTTP mux with request count and latency
// measurements.
type requestMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

func newRequestMetrics(mp metric.MeterProvider) (*requestMetrics, error) {
	meter := mp.Meter("mytools/server")
	requests, err := meter.Int64Counter("http_server_requests_total",
		metric.WithDescription("count of handled HTTP requests"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("http_server_request_duration_seconds",
		metric.WithDescription("HTTP request handling latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &requestMetrics{requests: requests, latency: latency}, nil
}

func (m *requestMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("path", r.URL.Path),
			attribute.Int("code", ww.Status()),
		)
		m.requests.Add(r.Context(), 1, attrs)
		m.latency.Record(r.Context(), time.Since(start).Seconds(), attrs)
	})
}
