package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omsfleet/binance-gateway/pkg/types"
	"github.com/omsfleet/binance-gateway/services/binance"
)

// streamBackend fakes the listen-key endpoint and the WebSocket host. It
// counts live sockets so tests can verify connections are actually torn
// down, not just forgotten.
type streamBackend struct {
	server      *httptest.Server
	liveSockets int64
	// holdListenKey, when set, blocks listen-key responses until both
	// concurrent requests have arrived.
	holdListenKey bool
	arrivals      int64
	release       chan struct{}
}

func newStreamBackend(t *testing.T, holdListenKey bool) *streamBackend {
	t.Helper()

	b := &streamBackend{
		holdListenKey: holdListenKey,
		release:       make(chan struct{}),
	}
	upgrader := websocket.Upgrader{}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v3/userDataStream":
			if b.holdListenKey && r.Method == http.MethodPost {
				if atomic.AddInt64(&b.arrivals, 1) == 2 {
					close(b.release)
				}
				<-b.release
			}
			w.Write([]byte(`{"listenKey":"lk-test"}`))
		case strings.HasPrefix(r.URL.Path, "/ws/"):
			conn, err := upgrader.Upgrade(w, r, nil)
			require.NoError(t, err)
			atomic.AddInt64(&b.liveSockets, 1)
			defer atomic.AddInt64(&b.liveSockets, -1)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *streamBackend) hosts() binance.Hosts {
	url := b.server.URL
	return binance.Hosts{
		Spot: url, SAPI: url, UMFutures: url, CMFutures: url, PAPI: url,
		Stream: "ws" + strings.TrimPrefix(url, "http"),
	}
}

func (b *streamBackend) sockets() int64 {
	return atomic.LoadInt64(&b.liveSockets)
}

func testStreamClient(backend *streamBackend) *binance.AccountClient {
	return binance.NewAccountClient(types.Credential{
		Identifier: "sub1@example.com",
		APIKey:     "key",
		APISecret:  "secret",
		Scope:      types.ScopeSubAccount,
	}, binance.WithHosts(backend.hosts()))
}

func TestOpenAndCloseLifecycle(t *testing.T) {
	backend := newStreamBackend(t, false)
	registry := NewRegistry()

	err := registry.Open(context.Background(), "sub1@example.com", testStreamClient(backend), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub1@example.com"}, registry.Active())

	assert.Eventually(t, func() bool { return backend.sockets() == 1 },
		2*time.Second, 10*time.Millisecond)

	registry.Close("sub1@example.com")
	assert.Empty(t, registry.Active())
	assert.Eventually(t, func() bool { return backend.sockets() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestOpenRejectsDuplicate(t *testing.T) {
	backend := newStreamBackend(t, false)
	registry := NewRegistry()
	defer registry.CloseAll()

	require.NoError(t, registry.Open(context.Background(), "sub1@example.com", testStreamClient(backend), nil))
	err := registry.Open(context.Background(), "sub1@example.com", testStreamClient(backend), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already open")
	assert.Len(t, registry.Active(), 1)
}

// Two simultaneous Opens for the same identifier must resolve to exactly
// one registered stream; the losing connection is torn down, never left
// running outside the registry where Close cannot reach it.
func TestOpenConcurrentSameIdentifier(t *testing.T) {
	backend := newStreamBackend(t, true)
	registry := NewRegistry()
	client := testStreamClient(backend)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = registry.Open(context.Background(), "sub1@example.com", client, nil)
		}()
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
			assert.Contains(t, err.Error(), "already open")
		}
	}
	assert.Equal(t, 1, failed, "exactly one of two concurrent Opens must lose")
	assert.Equal(t, []string{"sub1@example.com"}, registry.Active())

	// Only the winner's socket stays up, and Close reaches it.
	assert.Eventually(t, func() bool { return backend.sockets() == 1 },
		2*time.Second, 10*time.Millisecond)

	registry.Close("sub1@example.com")
	assert.Empty(t, registry.Active())
	assert.Eventually(t, func() bool { return backend.sockets() == 0 },
		2*time.Second, 10*time.Millisecond)
}
