package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spooky-finn/depthbridge/domain"
	"github.com/spooky-finn/depthbridge/maintainer"
	"github.com/spooky-finn/depthbridge/usecase"
)

var logger = logrus.WithField("component", "http")

const (
	defaultLimit    = 10
	maxLimit        = 5000
	shutdownTimeout = 5 * time.Second
)

type StatusReporter interface {
	Status() []maintainer.SymbolStatus
}

// Server exposes order books, sync status and metrics over HTTP.
type Server struct {
	snapshots *usecase.OrderBookSnapshotUseCase
	status    StatusReporter
	metrics   http.Handler
	router    *mux.Router
	startTime time.Time
}

func NewServer(snapshots *usecase.OrderBookSnapshotUseCase, status StatusReporter, metrics http.Handler) *Server {
	s := &Server{
		snapshots: snapshots,
		status:    status,
		metrics:   metrics,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/orderbook/{symbol}", s.handleGetOrderBook).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleGetOrderBook handles GET /orderbook/{symbol}?limit=N
func (s *Server) handleGetOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol, err := domain.NewSymbol(mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxLimit {
			respondError(w, http.StatusBadRequest, "limit must be an integer within 1..5000")
			return
		}
	}

	snapshot, err := s.snapshots.GetOrderBookSnapshot(r.Context(), symbol, limit)
	if err != nil {
		respondError(w, statusCode(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":       snapshot.Source,
		"symbol":       snapshot.Symbol,
		"lastUpdateId": snapshot.LastUpdateID,
		"bids":         domain.SerializePriceLevels(snapshot.Bids),
		"asks":         domain.SerializePriceLevels(snapshot.Asks),
	})
}

// handleStatus handles GET /status
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"symbols": s.status.Status(),
	})
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	statuses := s.status.Status()

	synced := 0
	for _, st := range statuses {
		if st.Phase == domain.PhaseSynced {
			synced++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"synced":  synced,
		"tracked": len(statuses),
	})
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown")
		}
	})
	defer stop()

	logger.Infof("http server listening at %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func statusCode(err error) int {
	var transient *domain.TransientFetchError
	var malformed *domain.MalformedResponseError

	switch {
	case errors.Is(err, domain.ErrSymbolNotTracked):
		return http.StatusNotFound
	case errors.As(err, &transient), errors.As(err, &malformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.WithError(err).Warn("failed to write response")
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
