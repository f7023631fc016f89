package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mercator-hq/playback/pkg/telemetry/health"
	"mercator-hq/playback/pkg/telemetry/logging"
)

// setupRoutes builds the router. Proxy requests are diverted before chi
// matches any route.
func (s *Server) setupRoutes() http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)
	router.Use(s.proxyFirst)

	router.Get("/healthz", s.handleHealth)
	router.Get("/recordings", s.handleRecordings)
	if s.opts.Health != nil {
		router.Get("/readyz", s.opts.Health.ReadinessHandler())
	}
	if b := s.opts.Build; b.Version != "" {
		router.Get("/version", health.VersionHandler(b.Version, b.Commit, b.BuildTime))
	}
	if s.opts.Metrics != nil {
		router.Method(http.MethodGet, s.opts.MetricsPath, s.opts.Metrics.Handler())
	}
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found",
			"no route; send proxy requests with an absolute URI or the "+s.targetHeader()+" header")
	})

	return router
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ctx := logging.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logging.FromContext(ctx, s.logger).Log(ctx, level, "request completed",
			"method", r.Method,
			"url", r.URL.String(),
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type healthResponse struct {
	Status     string    `json:"status"`
	Mode       string    `json:"mode"`
	Recordings int       `json:"recordings"`
	Timestamp  time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Mode:      s.config.Mode,
		Timestamp: time.Now().UTC(),
	}
	if store := s.store(); store != nil {
		resp.Recordings = store.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecordingSummary is one entry of the /recordings listing.
type RecordingSummary struct {
	Identity string `json:"identity"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Status   int    `json:"status"`
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	summaries := []RecordingSummary{}
	if store := s.store(); store != nil {
		descriptors := store.Descriptors()
		responses := store.Responses()
		for id, d := range descriptors {
			summary := RecordingSummary{Identity: string(id), Method: d.Method, URL: d.URL}
			if res := responses[id]; res != nil {
				summary.Status = res.Status
			}
			summaries = append(summaries, summary)
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].URL != summaries[j].URL {
			return summaries[i].URL < summaries[j].URL
		}
		return summaries[i].Identity < summaries[j].Identity
	})
	writeJSON(w, http.StatusOK, summaries)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
