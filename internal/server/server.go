package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"fundamentusapi/internal/fundamentus"
	"fundamentusapi/internal/query"
)

const (
	maxPageSize = 1000

	unavailableDetail = "Data currently unavailable. Please try again later."
)

// Querier is the read surface the handlers need.
type Querier interface {
	Lookup(ctx context.Context, ticker string) (fundamentus.IndicatorSet, error)
	ListAll(ctx context.Context) (fundamentus.TickerTable, error)
	Invalidate()
}

// Route describes a registered endpoint.
type Route struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Server exposes ticker queries over HTTP.
type Server struct {
	q      Querier
	mux    *http.ServeMux
	routes []Route
}

// New creates a Server with all routes registered.
func New(q Querier) *Server {
	s := &Server{q: q, mux: http.NewServeMux()}

	s.handle("GET /{$}", "/", "list_routes", s.listRoutes)
	s.handle("GET /healthz", "/healthz", "healthz", s.healthz)
	s.handle("GET /ticker/{ticker}", "/ticker/{ticker}", "get_ticker", s.getTicker)
	s.handle("GET /tickers", "/tickers", "get_all_tickers", s.getTickers)
	s.handle("POST /cache/invalidate", "/cache/invalidate", "invalidate_cache", s.invalidate)

	return s
}

func (s *Server) handle(pattern, path, name string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
	s.routes = append(s.routes, Route{Path: path, Name: name})
}

// Handler returns the routes wrapped with request ID, access logging and
// panic recovery.
func (s *Server) Handler() http.Handler {
	return withRequestID(withAccessLog(recoverPanic(s.mux)))
}

// Routes returns the registered endpoints.
func (s *Server) Routes() []Route {
	return slices.Clone(s.routes)
}

// Indicators is the wire form of an IndicatorSet.
type Indicators map[string]float64

// Page is the paginated form of /tickers.
type Page struct {
	Items    map[string]Indicators `json:"items"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Total    int                   `json:"total"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) listRoutes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.routes)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) getTicker(w http.ResponseWriter, r *http.Request) {
	ticker := query.NormalizeTicker(r.PathValue("ticker"))

	set, err := s.q.Lookup(r.Context(), ticker)
	switch {
	case errors.Is(err, query.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: fmt.Sprintf("Ticker: %s não encontrado!", ticker)})
		return
	case err != nil:
		s.unavailable(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toIndicators(set))
}

func (s *Server) getTickers(w http.ResponseWriter, r *http.Request) {
	page, pageSize, paged, err := pagination(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
		return
	}

	table, err := s.q.ListAll(r.Context())
	if err != nil {
		s.unavailable(w, r, err)
		return
	}

	if !paged {
		out := make(map[string]Indicators, len(table))
		for ticker, set := range table {
			out[ticker] = toIndicators(set)
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	tickers := make([]string, 0, len(table))
	for ticker := range table {
		tickers = append(tickers, ticker)
	}
	slices.Sort(tickers)

	resp := Page{
		Items:    make(map[string]Indicators),
		Page:     page,
		PageSize: pageSize,
		Total:    len(tickers),
	}
	start, end := pageBounds(page, pageSize, len(tickers))
	for _, ticker := range tickers[start:end] {
		resp.Items[ticker] = toIndicators(table[ticker])
	}
	writeJSON(w, http.StatusOK, resp)
}

// pageBounds returns the slice range of a 1-based page over total items.
// Pages past the end are empty; the page count is checked before
// multiplying so huge page numbers cannot overflow.
func pageBounds(page, pageSize, total int) (start, end int) {
	pages := (total + pageSize - 1) / pageSize
	if page > pages {
		return total, total
	}
	start = (page - 1) * pageSize
	return start, min(start+pageSize, total)
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	s.q.Invalidate()
	slog.Info("cache invalidated", "request_id", RequestID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) unavailable(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("table unavailable",
		"path", r.URL.Path,
		"request_id", RequestID(r.Context()),
		"error", err.Error())
	writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: unavailableDetail})
}

// pagination reads page and page_size. Both absent means no pagination.
func pagination(r *http.Request) (page, pageSize int, paged bool, err error) {
	q := r.URL.Query()
	rawPage, rawSize := q.Get("page"), q.Get("page_size")
	if rawPage == "" && rawSize == "" {
		return 0, 0, false, nil
	}

	page, pageSize = 1, 100
	if rawPage != "" {
		if page, err = strconv.Atoi(rawPage); err != nil || page < 1 {
			return 0, 0, false, fmt.Errorf("page must be a positive integer")
		}
	}
	if rawSize != "" {
		if pageSize, err = strconv.Atoi(rawSize); err != nil || pageSize < 1 || pageSize > maxPageSize {
			return 0, 0, false, fmt.Errorf("page_size must be between 1 and %d", maxPageSize)
		}
	}
	return page, pageSize, true, nil
}

func toIndicators(set fundamentus.IndicatorSet) Indicators {
	out := make(Indicators, len(set))
	for name, value := range set {
		out[name] = value.InexactFloat64()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err.Error())
	}
}
