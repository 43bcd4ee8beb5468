package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rtzll/vidscope/internal/store"
)

// APIServer exposes the App over HTTP.
type APIServer struct {
	app *App
	log *logrus.Entry
	mux *http.ServeMux
}

// NewAPIServer registers all routes.
func NewAPIServer(app *App, log *logrus.Entry) *APIServer {
	s := &APIServer{
		app: app,
		log: log.WithField("component", "api"),
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /api/v1/videos", s.handleProcessVideo)
	s.mux.HandleFunc("GET /api/v1/videos", s.handleListVideos)
	s.mux.HandleFunc("GET /api/v1/videos/{id}", s.handleGetVideo)
	s.mux.HandleFunc("DELETE /api/v1/videos/{id}", s.handleDeleteVideo)
	s.mux.HandleFunc("GET /api/v1/segments/{id}", s.handleGetSegment)
	s.mux.HandleFunc("DELETE /api/v1/segments/{id}", s.handleDeleteSegment)
	s.mux.HandleFunc("POST /api/v1/reports/generate", s.handleGenerateReport)
	s.mux.HandleFunc("GET /api/v1/reports", s.handleListReports)
	s.mux.HandleFunc("GET /api/v1/reports/{id}", s.handleGetReport)
	s.mux.HandleFunc("DELETE /api/v1/reports/{id}", s.handleDeleteReport)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the routes wrapped in request logging.
func (s *APIServer) Handler() http.Handler {
	return s.withRequestLogging(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *APIServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type processRequest struct {
	URL string `json:"url"`
}

type generateRequest struct {
	VideoID            uint   `json:"video_id"`
	FormatType         string `json:"format_type"`
	CustomInstructions string `json:"custom_instructions"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *APIServer) handleProcessVideo(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result := s.app.Process(r.Context(), req.URL)
	if !result.Success {
		writeFailure(w, result.Cause, result.Error)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *APIServer) handleListVideos(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	videos, err := s.app.Videos(r.Context(), skip, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(videos))
}

func (s *APIServer) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	video, err := s.app.Video(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (s *APIServer) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteVideo(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	segment, err := s.app.Segment(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, segment)
}

func (s *APIServer) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteSegment(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.VideoID == 0 {
		writeError(w, http.StatusBadRequest, "video_id is required")
		return
	}

	result := s.app.Generate(r.Context(), req.VideoID, req.FormatType, req.CustomInstructions)
	if !result.Success {
		writeFailure(w, result.Cause, result.Error)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *APIServer) handleListReports(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := store.ReportFilter{
		FormatType: r.URL.Query().Get("format_type"),
		Skip:       skip,
		Limit:      limit,
	}
	if v := r.URL.Query().Get("video_id"); v != "" {
		id, err := ParseID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid video_id")
			return
		}
		filter.VideoID = id
	}

	reports, err := s.app.Reports(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reports))
}

func (s *APIServer) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	report, err := s.app.Report(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *APIServer) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteReport(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *APIServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := HTTPStatus(err)
	if code == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeError(w, code, PublicMessage(err))
}

// writeFailure reports a failed pipeline result. The cause picks the status
// code; the result message is shown for domain errors.
func writeFailure(w http.ResponseWriter, cause error, message string) {
	code := HTTPStatus(cause)
	if cause == nil || code == http.StatusInternalServerError {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeError(w, code, message)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

func pagination(r *http.Request) (skip, limit int, err error) {
	q := r.URL.Query()
	limit = store.MaxPageSize
	if v := q.Get("skip"); v != "" {
		if skip, err = strconv.Atoi(v); err != nil || skip < 0 {
			return 0, 0, fmt.Errorf("invalid skip %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 || limit > store.MaxPageSize {
			return 0, 0, fmt.Errorf("limit must be between 1 and %d", store.MaxPageSize)
		}
	}
	return skip, limit, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *APIServer) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := RequestID(r)
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()

		WithRequest(s.log, r, reqID).WithFields(logrus.Fields{
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request")
	})
}
