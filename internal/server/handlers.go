package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/omsfleet/binance-gateway/internal/normalizer"
	"github.com/omsfleet/binance-gateway/pkg/bus"
	"github.com/omsfleet/binance-gateway/pkg/types"
	"github.com/omsfleet/binance-gateway/services/binance"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Auth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Auth.Password)) == 1
	if !userOK || !passOK {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.issueToken(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeData(w, map[string]string{"token": token})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]interface{}{
		"status":  "healthy",
		"streams": len(s.registry.Active()),
	})
}

// batchRequest is the shared body shape for batch endpoints.
type batchRequest struct {
	Identifiers []string `json:"identifiers"`
	Market      string   `json:"market"`
	Symbol      string   `json:"symbol,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

func decodeBatch(w http.ResponseWriter, r *http.Request) (*batchRequest, types.MarketType, bool) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, "", false
	}
	if len(req.Identifiers) == 0 {
		writeError(w, http.StatusBadRequest, "identifiers is required")
		return nil, "", false
	}
	market, err := types.ParseMarketType(req.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, "", false
	}
	return &req, market, true
}

func (s *Server) batchBalances(w http.ResponseWriter, r *http.Request) {
	req, market, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	batch := s.dispatcher.Dispatch(r.Context(), req.Identifiers, func(ctx context.Context, client *binance.AccountClient) (interface{}, error) {
		raw, err := client.Balances(ctx, market)
		if err != nil {
			return nil, err
		}
		return normalizer.Balances(market, raw)
	})
	writeBatch(w, batch)
}

func (s *Server) batchPositions(w http.ResponseWriter, r *http.Request) {
	req, market, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	if !market.IsContract() {
		writeError(w, http.StatusBadRequest, "positions require a contract market type")
		return
	}
	batch := s.dispatcher.Dispatch(r.Context(), req.Identifiers, func(ctx context.Context, client *binance.AccountClient) (interface{}, error) {
		raw, err := client.Positions(ctx, market)
		if err != nil {
			return nil, err
		}
		return normalizer.Positions(market, raw)
	})
	writeBatch(w, batch)
}

func (s *Server) batchOpenOrders(w http.ResponseWriter, r *http.Request) {
	req, market, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	batch := s.dispatcher.Dispatch(r.Context(), req.Identifiers, func(ctx context.Context, client *binance.AccountClient) (interface{}, error) {
		raw, err := client.OpenOrders(ctx, market, req.Symbol)
		if err != nil {
			return nil, err
		}
		return normalizer.Orders(market, raw)
	})
	writeBatch(w, batch)
}

func (s *Server) batchTrades(w http.ResponseWriter, r *http.Request) {
	req, market, ok := decodeBatch(w, r)
	if !ok {
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	batch := s.dispatcher.Dispatch(r.Context(), req.Identifiers, func(ctx context.Context, client *binance.AccountClient) (interface{}, error) {
		raw, err := client.Trades(ctx, market, req.Symbol, req.Limit)
		if err != nil {
			return nil, err
		}
		return normalizer.Trades(market, raw)
	})
	writeBatch(w, batch)
}

func (s *Server) getBalances(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	market, err := types.ParseMarketType(r.URL.Query().Get("market"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, ok := s.accountClient(w, r.Context(), identifier)
	if !ok {
		return
	}
	raw, err := client.Balances(r.Context(), market)
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}
	balances, err := normalizer.Balances(market, raw)
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}
	s.publisher.Publish(bus.BalanceSubject(identifier), balances)
	writeData(w, balances)
}

type placeOrderRequest struct {
	types.OrderRequest
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	market, err := types.ParseMarketType(string(req.Market))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Market = market
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, ok := s.accountClient(w, r.Context(), req.Identifier)
	if !ok {
		return
	}
	raw, err := client.PlaceOrder(r.Context(), &req.OrderRequest)
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}

	s.publisher.Publish(bus.OrderSubject(bus.ActionOrderCreate, req.Identifier, string(market), req.Symbol), req.OrderRequest)
	writeData(w, json.RawMessage(raw))
}

type cancelOrderRequest struct {
	Identifier string `json:"identifier"`
	Market     string `json:"market"`
	Symbol     string `json:"symbol"`
	OrderID    string `json:"order_id"`
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	market, err := types.ParseMarketType(req.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, ok := s.accountClient(w, r.Context(), req.Identifier)
	if !ok {
		return
	}
	raw, err := client.CancelOrder(r.Context(), market, req.Symbol, req.OrderID)
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}
	s.publisher.Publish(bus.OrderSubject(bus.ActionOrderCancel, req.Identifier, string(market), req.Symbol), req)
	writeData(w, json.RawMessage(raw))
}

type transferRequest struct {
	Identifier string `json:"identifier"`
	types.TransferRequest
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	if err := req.TransferRequest.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, ok := s.accountClient(w, r.Context(), req.Identifier)
	if !ok {
		return
	}
	raw, err := client.Transfer(r.Context(), &req.TransferRequest)
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}
	s.publisher.Publish(bus.TransferSubject(req.FromEmail, req.ToEmail), req.TransferRequest)
	writeData(w, json.RawMessage(raw))
}

func (s *Server) listSubAccounts(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	client, ok := s.accountClient(w, r.Context(), identifier)
	if !ok {
		return
	}
	raw, err := client.SubAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}
	writeData(w, json.RawMessage(raw))
}

func (s *Server) getTicker(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	client := binance.NewAccountClient(types.Credential{}, s.clientOpts...)

	price, market, err := client.TickerPrice(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}
	writeData(w, map[string]interface{}{
		"symbol": symbol,
		"price":  price,
		"market": market,
	})
}

func (s *Server) openStream(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	client, ok := s.accountClient(w, r.Context(), identifier)
	if !ok {
		return
	}

	// Stream lifetime outlives this request; tie it to the process, not
	// the request context.
	err := s.registry.Open(context.Background(), identifier, client, func(id string, message []byte) {
		s.publisher.Publish(bus.StreamSubject(id), json.RawMessage(message))
	})
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return
	}
	writeData(w, map[string]string{"identifier": identifier, "status": "open"})
}

func (s *Server) closeStream(w http.ResponseWriter, r *http.Request) {
	identifier := mux.Vars(r)["identifier"]
	s.registry.Close(identifier)
	writeData(w, map[string]string{"identifier": identifier, "status": "closed"})
}

func (s *Server) listStreams(w http.ResponseWriter, r *http.Request) {
	writeData(w, s.registry.Active())
}

// accountClient resolves an identifier and builds its client, writing the
// error response on failure.
func (s *Server) accountClient(w http.ResponseWriter, ctx context.Context, identifier string) (*binance.AccountClient, bool) {
	cred, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		writeError(w, http.StatusOK, err.Error())
		return nil, false
	}
	return binance.NewAccountClient(cred, s.clientOpts...), true
}
