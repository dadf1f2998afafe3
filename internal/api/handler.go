package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/teamfit/server/internal/agent/model"
	errx "github.com/teamfit/server/internal/core/error"
	"github.com/teamfit/server/internal/metrics"
	logx "github.com/teamfit/server/pkg/logger"
)

const (
	headerRequestID = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

type ctxKey struct{}

// TurnSubmitter runs one supervisor turn.
type TurnSubmitter interface {
	Submit(ctx context.Context, req model.TurnRequest) (*model.ConversationState, error)
}

// HistoryReader reads per-thread history.
type HistoryReader interface {
	Entries(ctx context.Context, threadID string) ([]model.HistoryEntry, error)
	ReportSources(ctx context.Context, threadID string) ([]model.ReportSource, error)
}

// MeetingSummarizer condenses a meeting transcript.
type MeetingSummarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Config wires the transport.
type Config struct {
	Supervisor      TurnSubmitter
	History         HistoryReader
	DownloadRoot    string
	DefaultThreadID string
	AllowedOrigins  []string
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	// Summarizer serves /meeting/summarize when set.
	Summarizer MeetingSummarizer
}

// Handler handles the HTTP API of the supervisor.
type Handler struct {
	cfg Config
}

func NewHandler(cfg Config) *Handler {
	if cfg.DefaultThreadID == "" {
		cfg.DefaultThreadID = model.DefaultThreadID
	}
	if cfg.DownloadRoot == "" {
		cfg.DownloadRoot = "."
	}
	return &Handler{cfg: cfg}
}

// RegisterRoutes registers the API routes with a gorilla/mux router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Root).Methods(http.MethodGet)
	r.HandleFunc("/chat", h.Chat).Methods(http.MethodPost)
	r.HandleFunc("/history", h.History).Methods(http.MethodGet)
	r.HandleFunc("/reports", h.Reports).Methods(http.MethodGet)
	r.HandleFunc("/reports/download", h.Download).Methods(http.MethodPost, http.MethodGet)
	if h.cfg.Summarizer != nil {
		r.HandleFunc("/meeting/summarize", h.MeetingSummarize).Methods(http.MethodPost)
	}
	if h.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Router returns the complete HTTP handler: routes, request ids, access
// logging and CORS.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, accessLogMiddleware)
	h.RegisterRoutes(r)

	origins := h.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{headerRequestID, "Content-Disposition"},
		AllowCredentials: !containsWildcard(origins),
	}).Handler(r)
}

// Root handles GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "supervisor API is running"})
}

// Chat handles POST /chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, r, errx.New(err, http.StatusBadRequest, "invalid request body"))
		return
	}
	if strings.TrimSpace(req.InputQuery) == "" {
		h.writeError(w, r, errx.New(errx.ErrEmptyInput, http.StatusBadRequest, "input_query is required"))
		return
	}

	state, err := h.cfg.Supervisor.Submit(r.Context(), model.TurnRequest{
		InputQuery:     req.InputQuery,
		ThreadID:       req.ThreadID,
		ProjectName:    req.ProjectName,
		ProjectContext: req.ProjectContext,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ChatResponse{Messages: toMessageDTOs(state.Messages)})
}

// MeetingSummarize handles POST /meeting/summarize. The transcript comes from
// the form field text or a JSON body {"text": ...}.
func (h *Handler) MeetingSummarize(w http.ResponseWriter, r *http.Request) {
	text, err := meetingText(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(text) == "" {
		h.writeError(w, r, errx.New(errx.ErrEmptyInput, http.StatusBadRequest, "text is required"))
		return
	}

	summary, err := h.cfg.Summarizer.Summarize(r.Context(), text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, MeetingSummaryResponse{
		Status:       "success",
		OriginalText: text,
		Summary:      summary,
	})
}

func meetingText(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	ctype, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ctype == "application/json" {
		var req MeetingSummaryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", errx.New(err, http.StatusBadRequest, "invalid request body")
		}
		return req.Text, nil
	}
	if ctype == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return "", errx.New(err, http.StatusBadRequest, "invalid form body")
		}
	} else if err := r.ParseForm(); err != nil {
		return "", errx.New(err, http.StatusBadRequest, "invalid form body")
	}
	return r.PostFormValue("text"), nil
}

// History handles GET /history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cfg.History.Entries(r.Context(), h.threadID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, HistoryItem{Query: e.Query, Messages: toMessageDTOs(e.Messages)})
	}
	h.writeJSON(w, http.StatusOK, HistoryResponse{Histories: items})
}

// Reports handles GET /reports
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	sources, err := h.cfg.History.ReportSources(r.Context(), h.threadID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ReportListResponse{Sources: sources})
}

// Download handles POST /reports/download?source=
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	// the raw query keeps the token encoded; ResolveDownloadPath decodes once
	token := rawQueryParam(r, "source")
	path, err := ResolveDownloadPath(h.cfg.DownloadRoot, token)
	if err != nil {
		h.cfg.Metrics.IncDownload(strconv.Itoa(errx.StatusOf(err)))
		logx.Warn().Err(err).Str("source", token).Msg("download rejected")
		h.writeError(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	name := filepath.Base(path)
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.cfg.Metrics.IncDownload(strconv.Itoa(http.StatusOK))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *Handler) threadID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("thread_id")); id != "" {
		return id
	}
	return h.cfg.DefaultThreadID
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.StatusOf(err)
	detail := err.Error()
	var appErr *errx.AppError
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		detail = appErr.Message
	}
	switch {
	case errors.Is(err, errx.ErrPathEscape):
		detail = "접근이 허용되지 않은 파일입니다."
	case errors.Is(err, errx.ErrNotFound) && status == http.StatusNotFound:
		detail = "파일을 찾을 수 없습니다."
	}
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("request failed")
	}
	h.writeJSON(w, status, ErrorResponse{Detail: detail, RequestID: requestIDFrom(r.Context())})
}

func rawQueryParam(r *http.Request, key string) string {
	for _, kv := range strings.Split(r.URL.RawQuery, "&") {
		k, v, _ := strings.Cut(kv, "=")
		if k == key {
			return strings.ReplaceAll(v, "+", " ")
		}
	}
	return ""
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logx.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
