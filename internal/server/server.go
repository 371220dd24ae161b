package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/omsfleet/binance-gateway/internal/config"
	"github.com/omsfleet/binance-gateway/internal/fanout"
	"github.com/omsfleet/binance-gateway/internal/keymanager"
	"github.com/omsfleet/binance-gateway/internal/stream"
	"github.com/omsfleet/binance-gateway/pkg/bus"
	"github.com/omsfleet/binance-gateway/pkg/types"
	"github.com/omsfleet/binance-gateway/services/binance"
)

// Server is the HTTP surface consumed by the frontend. Every response
// carries the {success, data?, error?} envelope; batch endpoints add a
// summary and always answer 200. Partial failure lives in the per-account
// results, never in the HTTP status.
type Server struct {
	cfg        *config.Config
	resolver   *keymanager.Resolver
	dispatcher *fanout.Dispatcher
	registry   *stream.Registry
	publisher  *bus.Publisher
	clientOpts []binance.Option
	httpServer *http.Server
	logger     *logrus.Entry
}

// New wires the server. publisher may be nil (publishing disabled).
func New(cfg *config.Config, resolver *keymanager.Resolver, dispatcher *fanout.Dispatcher, registry *stream.Registry, publisher *bus.Publisher, clientOpts ...binance.Option) *Server {
	s := &Server{
		cfg:        cfg,
		resolver:   resolver,
		dispatcher: dispatcher,
		registry:   registry,
		publisher:  publisher,
		clientOpts: clientOpts,
		logger:     logrus.WithField("component", "server"),
	}

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/auth/login", s.login).Methods("POST", "OPTIONS")
	api.HandleFunc("/health", s.health).Methods("GET")

	api.HandleFunc("/balances", s.getBalances).Methods("GET")
	api.HandleFunc("/balances/batch", s.batchBalances).Methods("POST", "OPTIONS")
	api.HandleFunc("/positions/batch", s.batchPositions).Methods("POST", "OPTIONS")
	api.HandleFunc("/orders/batch", s.batchOpenOrders).Methods("POST", "OPTIONS")
	api.HandleFunc("/trades/batch", s.batchTrades).Methods("POST", "OPTIONS")

	api.HandleFunc("/orders", s.placeOrder).Methods("POST", "OPTIONS")
	api.HandleFunc("/orders", s.cancelOrder).Methods("DELETE")
	api.HandleFunc("/transfers", s.transfer).Methods("POST", "OPTIONS")
	api.HandleFunc("/subaccounts", s.listSubAccounts).Methods("GET")
	api.HandleFunc("/ticker/{symbol}", s.getTicker).Methods("GET")

	api.HandleFunc("/streams/{identifier}", s.openStream).Methods("POST", "OPTIONS")
	api.HandleFunc("/streams/{identifier}", s.closeStream).Methods("DELETE")
	api.HandleFunc("/streams", s.listStreams).Methods("GET")

	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("listening on %s", s.cfg.Server.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// response is the uniform envelope.
type response struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Summary *types.Summary `json:"summary,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Error: message})
}

func writeBatch(w http.ResponseWriter, batch *types.FanOutBatch) {
	summary := batch.Summary()
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data:    batch.Results,
		Summary: &summary,
	})
}
