package eventsink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/tochemey/goakt/v3/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// DefaultSubscriberBuffer is how many records may queue up for one subscriber before
// new ones are dropped for it.
const DefaultSubscriberBuffer = 1024

type subscriber struct {
	id       string
	topic    string // empty means every topic
	messages chan Envelope
	dropped  atomic.Uint64
	c        *websocket.Conn
}

// Hub is a Transport that fans records out to websocket subscribers. Clients connect with an
// optional ?topic= filter and receive one JSON envelope per text message.
type Hub struct {
	logger  log.Logger
	buffer  int
	origins []string

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

var _ Transport = (*Hub)(nil)

// NewHub creates a hub. originPatterns are passed to websocket.Accept for browser clients.
func NewHub(logger log.Logger, buffer int, originPatterns ...string) *Hub {
	if logger == nil {
		logger = log.DiscardLogger
	}
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		logger:      logger,
		buffer:      buffer,
		origins:     originPatterns,
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (h *Hub) addSubscriber(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[sub] = struct{}{}
	return true
}

func (h *Hub) removeSubscriber(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	h.mu.Unlock()
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Warnf("websocket accept failed: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	sub := &subscriber{
		id:       ksuid.New().String(),
		topic:    r.URL.Query().Get("topic"),
		messages: make(chan Envelope, h.buffer),
		c:        c,
	}
	if err := h.handleConnection(r.Context(), sub); err != nil && !isClosing(err) {
		h.logger.Warnf("subscriber %s: %v", sub.id, err)
	}
}

func (h *Hub) handleConnection(ctx context.Context, sub *subscriber) error {
	if !h.addSubscriber(sub) {
		return sub.c.Close(websocket.StatusGoingAway, "hub closed")
	}
	defer h.removeSubscriber(sub)
	h.logger.Infof("subscriber %s connected (topic=%q)", sub.id, sub.topic)
	defer func() {
		h.logger.Infof("subscriber %s left, %d records dropped", sub.id, sub.dropped.Load())
	}()

	// subscribers never talk back; CloseRead keeps control frames flowing
	ctx = sub.c.CloseRead(ctx)
	for {
		select {
		case env := <-sub.messages:
			if err := wsjson.Write(ctx, sub.c, env); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send queues env for every matching subscriber. A subscriber whose queue is full loses the
// record; Send never blocks on the network.
func (h *Hub) Send(_ context.Context, env Envelope) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if sub.topic != "" && sub.topic != env.Topic {
			continue
		}
		select {
		case sub.messages <- env:
		default:
			sub.dropped.Add(1)
		}
	}
	return nil
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.c.Close(websocket.StatusGoingAway, "hub closed")
	}
	return nil
}

// Listen binds addr for Serve. Binding is separate so a bad address fails before anything runs.
func Listen(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return l, nil
}

// Serve serves the hub on l until ctx is done. It closes l.
func (h *Hub) Serve(ctx context.Context, l net.Listener) error {
	h.logger.Infof("websocket hub listening on ws://%v", l.Addr())

	s := &http.Server{
		Handler:     h,
		ReadTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- s.Serve(l)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = h.Close()
	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func isClosing(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}
