package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omsfleet/binance-gateway/internal/config"
	"github.com/omsfleet/binance-gateway/internal/fanout"
	"github.com/omsfleet/binance-gateway/internal/keymanager"
	"github.com/omsfleet/binance-gateway/internal/stream"
	"github.com/omsfleet/binance-gateway/services/binance"
)

const spotAccountPayload = `{
	"balances": [
		{"asset": "BTC", "free": "0.5", "locked": "0"},
		{"asset": "DUST", "free": "0", "locked": "0"}
	]
}`

// newTestServer wires a full server against a fake upstream. Only
// b@x.com has stored credentials.
func newTestServer(t *testing.T, upstream http.HandlerFunc) *Server {
	t.Helper()

	backend := httptest.NewServer(upstream)
	t.Cleanup(backend.Close)

	hosts := binance.Hosts{
		Spot: backend.URL, SAPI: backend.URL,
		UMFutures: backend.URL, CMFutures: backend.URL,
		PAPI: backend.URL, Stream: backend.URL,
	}
	clientOpts := []binance.Option{binance.WithHosts(hosts)}

	store := keymanager.NewMemoryStore()
	store.PutSubAccount("b@x.com", keymanager.Record{APIKey: "key-b", APISecret: "secret-b"})
	resolver := keymanager.NewResolver(store)

	dispatcher := fanout.NewDispatcher(resolver, fanout.Config{
		RequestsPerSecond: 1000,
		ClientOptions:     clientOpts,
	})

	cfg := &config.Config{
		Auth: config.AuthConfig{
			Username:  "admin",
			Password:  "hunter2",
			JWTSecret: "test-jwt-secret",
			TokenTTL:  time.Hour,
		},
		Hosts: hosts,
	}
	return New(cfg, resolver, dispatcher, stream.NewRegistry(), nil, clientOpts...)
}

func loginToken(t *testing.T, srv *Server) string {
	t.Helper()

	body := bytes.NewBufferString(`{"username":"admin","password":"hunter2"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.NotEmpty(t, envelope.Data["token"])
	return envelope.Data["token"]
}

func authedRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+loginToken(t, srv))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	body := bytes.NewBufferString(`{"username":"admin","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/balances/batch", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/balances/batch", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// A batch over one unconfigured and one configured account answers 200
// with a per-account breakdown; the missing credential never aborts the
// sibling.
func TestBatchBalancesPartialFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/account", r.URL.Path)
		w.Write([]byte(spotAccountPayload))
	})

	rec := authedRequest(t, srv, http.MethodPost, "/api/v1/balances/batch",
		`{"identifiers":["a@x.com","b@x.com"],"market":"spot"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool `json:"success"`
		Summary struct {
			Total      int `json:"total"`
			Successful int `json:"successful"`
			Failed     int `json:"failed"`
		} `json:"summary"`
		Data []struct {
			Identifier string          `json:"identifier"`
			Success    bool            `json:"success"`
			Error      string          `json:"error,omitempty"`
			Data       json.RawMessage `json:"data,omitempty"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))

	assert.True(t, envelope.Success)
	assert.Equal(t, 2, envelope.Summary.Total)
	assert.Equal(t, 1, envelope.Summary.Successful)
	assert.Equal(t, 1, envelope.Summary.Failed)
	require.Len(t, envelope.Data, 2)

	for _, result := range envelope.Data {
		switch result.Identifier {
		case "a@x.com":
			assert.False(t, result.Success)
			assert.Equal(t, "credential not configured", result.Error)
		case "b@x.com":
			assert.True(t, result.Success)
			// Zero-balance dust is filtered out of the normalized list.
			var balances []map[string]interface{}
			require.NoError(t, json.Unmarshal(result.Data, &balances))
			require.Len(t, balances, 1)
			assert.Equal(t, "BTC", balances[0]["asset"])
		default:
			t.Errorf("unexpected identifier %q", result.Identifier)
		}
	}
}

func TestBatchRejectsMissingIdentifiers(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := authedRequest(t, srv, http.MethodPost, "/api/v1/balances/batch",
		`{"identifiers":[],"market":"spot"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchRejectsUnknownMarket(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := authedRequest(t, srv, http.MethodPost, "/api/v1/balances/batch",
		`{"identifiers":["b@x.com"],"market":"margin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchPositionsRejectSpot(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := authedRequest(t, srv, http.MethodPost, "/api/v1/positions/batch",
		`{"identifiers":["b@x.com"],"market":"spot"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// Upstream failures surface inside the envelope, not as an HTTP error.
func TestUpstreamFailureKeepsHTTP200(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key."}`))
	})

	rec := authedRequest(t, srv, http.MethodGet, "/api/v1/balances?identifier=b@x.com&market=spot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.Contains(t, envelope.Error, "Invalid API-key.")
}

func TestPlaceOrderPublishesAndReturnsUpstreamBody(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/order", r.URL.Path)
		w.Write([]byte(`{"orderId":777,"status":"NEW"}`))
	})

	rec := authedRequest(t, srv, http.MethodPost, "/api/v1/orders",
		`{"identifier":"b@x.com","market":"spot","symbol":"BTCUSDT","side":"BUY","type":"LIMIT","quantity":"0.1","price":"50000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, float64(777), envelope.Data["orderId"])
}

func TestPlaceOrderForUnknownAccount(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach upstream without credentials")
	})

	rec := authedRequest(t, srv, http.MethodPost, "/api/v1/orders",
		`{"identifier":"nobody@x.com","market":"spot","symbol":"BTCUSDT","side":"BUY","type":"MARKET","quantity":"0.1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	assert.NotEmpty(t, envelope.Error)
}

func TestListStreamsStartsEmpty(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	rec := authedRequest(t, srv, http.MethodGet, "/api/v1/streams", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Empty(t, envelope.Data)
}
