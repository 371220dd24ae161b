package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/omsfleet/binance-gateway/services/binance"
)

const keepAliveInterval = 30 * time.Minute

// Handler receives raw user-data stream events for one account.
type Handler func(identifier string, message []byte)

// Registry owns the live user-data stream connections, keyed by account
// identifier. It replaces the ambient process-wide socket map the
// previous implementation kept: lifecycle is explicit and tied to the
// application's start and shutdown.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*stream
	logger  *logrus.Entry
}

type stream struct {
	conn      *websocket.Conn
	listenKey string
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		streams: make(map[string]*stream),
		logger:  logrus.WithField("component", "stream-registry"),
	}
}

// Open starts a user-data stream for one account: obtains a listen key,
// dials the WebSocket, and runs the read and keep-alive loops until Close
// or the parent context ends. Opening an identifier that already has a
// live stream is an error.
func (r *Registry) Open(ctx context.Context, identifier string, client *binance.AccountClient, handler Handler) error {
	r.mu.Lock()
	if _, exists := r.streams[identifier]; exists {
		r.mu.Unlock()
		return fmt.Errorf("stream already open for %s", identifier)
	}
	r.mu.Unlock()

	listenKey, err := client.StartUserStream(ctx)
	if err != nil {
		return fmt.Errorf("failed to start user stream for %s: %w", identifier, err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, client.StreamURL(listenKey), nil)
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.CloseUserStream(closeCtx, listenKey)
		return fmt.Errorf("failed to dial user stream for %s: %w", identifier, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := &stream{
		conn:      conn,
		listenKey: listenKey,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	// Re-check under the lock: a concurrent Open for the same identifier
	// may have won the dial race. The loser tears down its own connection
	// so nothing keeps running outside the registry.
	r.mu.Lock()
	if _, exists := r.streams[identifier]; exists {
		r.mu.Unlock()
		cancel()
		conn.Close()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = client.CloseUserStream(closeCtx, listenKey)
		return fmt.Errorf("stream already open for %s", identifier)
	}
	r.streams[identifier] = s
	r.mu.Unlock()

	go r.keepAliveLoop(streamCtx, identifier, client, listenKey)
	go r.readLoop(streamCtx, identifier, s, handler)

	r.logger.WithField("identifier", identifier).Info("user-data stream opened")
	return nil
}

func (r *Registry) readLoop(ctx context.Context, identifier string, s *stream, handler Handler) {
	defer close(s.done)
	defer s.conn.Close()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				r.logger.WithError(err).WithField("identifier", identifier).Warn("user-data stream closed")
			}
			r.remove(identifier, s)
			return
		}
		if handler != nil {
			handler(identifier, message)
		}
	}
}

func (r *Registry) keepAliveLoop(ctx context.Context, identifier string, client *binance.AccountClient, listenKey string) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.KeepAliveUserStream(ctx, listenKey); err != nil {
				r.logger.WithError(err).WithField("identifier", identifier).Warn("listen key renewal failed")
			}
		}
	}
}

// Close tears down the stream for one account.
func (r *Registry) Close(identifier string) {
	r.mu.Lock()
	s, ok := r.streams[identifier]
	if ok {
		delete(r.streams, identifier)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	s.cancel()
	s.conn.Close()
	<-s.done
	r.logger.WithField("identifier", identifier).Info("user-data stream closed")
}

// CloseAll tears down every stream; called on application shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	identifiers := make([]string, 0, len(r.streams))
	for id := range r.streams {
		identifiers = append(identifiers, id)
	}
	r.mu.Unlock()

	for _, id := range identifiers {
		r.Close(id)
	}
}

// Active lists identifiers with a live stream.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.streams))
	for id := range r.streams {
		out = append(out, id)
	}
	return out
}

// remove drops a stream entry if it is still the registered one.
func (r *Registry) remove(identifier string, s *stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.streams[identifier]; ok && current == s {
		delete(r.streams, identifier)
	}
}
