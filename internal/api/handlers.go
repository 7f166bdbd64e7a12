package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fundquant/internal/analysis"
	"fundquant/internal/domain"
	"fundquant/internal/fetch"
	"fundquant/internal/strategy"
)

// MaxHistoryDays caps the days query parameter.
const MaxHistoryDays = 1000

// Quotes is the part of the fetch service the HTTP API serves.
type Quotes interface {
	Lookup(ctx context.Context, ds domain.Dataset, code string) (domain.Quote, error)
	Search(ctx context.Context, ds domain.Dataset, keyword string, limit int) ([]domain.Quote, error)
	History(ctx context.Context, code string, lookbackDays int) (domain.Series, error)
	CacheInfo(ds domain.Dataset) (fetch.CacheInfo, error)
	Clear(ds domain.Dataset)
}

// Analyzer runs analyses and single backtests.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error)
	Backtest(ctx context.Context, code string, lookbackDays int, kind strategy.Kind, p *strategy.Params) (*strategy.Result, error)
}

// Handlers serves the JSON API.
type Handlers struct {
	quotes   Quotes
	analyzer Analyzer
	datasets []domain.Dataset
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// NewHandlers creates the HTTP handlers. gatherer may be nil to leave
// /metrics unregistered.
func NewHandlers(quotes Quotes, analyzer Analyzer, datasets []domain.Dataset, gatherer prometheus.Gatherer, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		quotes:   quotes,
		analyzer: analyzer,
		datasets: datasets,
		gatherer: gatherer,
		log:      log.With("component", "api"),
	}
}

// RegisterRoutes registers all API routes on the given mux. Dataset routes
// use literal dataset segments so they never overlap the per-code routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	for _, ds := range h.datasets {
		prefix := "/api/" + string(ds)
		mux.HandleFunc("GET "+prefix+"/quote/{code}", h.withDataset(ds, h.handleQuote))
		mux.HandleFunc("GET "+prefix+"/search", h.withDataset(ds, h.handleSearch))
		mux.HandleFunc("GET "+prefix+"/cache", h.withDataset(ds, h.handleCacheInfo))
		mux.HandleFunc("DELETE "+prefix+"/cache", h.withDataset(ds, h.handleCacheClear))
	}
	mux.HandleFunc("GET /api/history/{code}", h.handleHistory)
	mux.HandleFunc("GET /api/analysis/{code}", h.handleAnalysis)
	mux.HandleFunc("GET /api/backtest/{code}", h.handleBacktest)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns an http.Handler with CORS middleware.
func (h *Handlers) Handler() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

type datasetHandler func(w http.ResponseWriter, r *http.Request, ds domain.Dataset)

func (h *Handlers) withDataset(ds domain.Dataset, fn datasetHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { fn(w, r, ds) }
}

func (h *Handlers) handleQuote(w http.ResponseWriter, r *http.Request, ds domain.Dataset) {
	q, err := h.quotes.Lookup(r.Context(), ds, r.PathValue("code"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, QuoteResponse{Dataset: ds, Quote: q})
}

func (h *Handlers) handleSearch(w http.ResponseWriter, r *http.Request, ds domain.Dataset) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing q parameter")
		return
	}
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	res, err := h.quotes.Search(r.Context(), ds, query, limit)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if res == nil {
		res = []domain.Quote{}
	}
	writeJSON(w, SearchResponse{Dataset: ds, Query: query, Results: res})
}

func (h *Handlers) handleCacheInfo(w http.ResponseWriter, r *http.Request, ds domain.Dataset) {
	info, err := h.quotes.CacheInfo(ds)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, info)
}

func (h *Handlers) handleCacheClear(w http.ResponseWriter, r *http.Request, ds domain.Dataset) {
	h.quotes.Clear(ds)
	h.handleCacheInfo(w, r, ds)
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	days, err := intParam(r, "days", analysis.DefaultLookbackDays)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	s, err := h.quotes.History(r.Context(), code, days)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, HistoryResponse{
		Code:   code,
		Market: string(fetch.MarketOf(code)),
		Bars:   HistoryBars(s.Bars()),
	})
}

func (h *Handlers) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", analysis.DefaultLookbackDays)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	req := analysis.Request{
		Dataset:      domain.Dataset(r.URL.Query().Get("dataset")),
		Code:         r.PathValue("code"),
		LookbackDays: days,
	}
	for _, name := range r.URL.Query()["strategy"] {
		k, err := strategy.ParseKind(name)
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		req.Strategies = append(req.Strategies, k)
	}
	rep, err := h.analyzer.Analyze(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(rep.Text))
		return
	}
	writeJSON(w, rep)
}

func (h *Handlers) handleBacktest(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", analysis.DefaultLookbackDays)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	kind := strategy.KindMACross
	if name := r.URL.Query().Get("strategy"); name != "" {
		if kind, err = strategy.ParseKind(name); err != nil {
			h.writeErr(w, r, err)
			return
		}
	}
	res, err := h.analyzer.Backtest(r.Context(), r.PathValue("code"), days, kind, nil)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, res)
}

// intParam parses a positive integer query parameter, capped at
// MaxHistoryDays.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, domain.InvalidParam(name, "must be a positive integer, got %q", v)
	}
	return min(n, MaxHistoryDays), nil
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, domain.ErrProviderFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.log.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: http.StatusText(status), Message: domain.UserMessage(err)})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: http.StatusText(status), Message: msg})
}
