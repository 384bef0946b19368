package phasews

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"actionmap/input"
)

// Feed turns phase events into frames and queues each frame on every
// subscriber. A subscriber whose queue is full is evicted; the daemon loop
// never waits on a websocket.
type Feed struct {
	logger   *slog.Logger
	queueLen int

	mu      sync.Mutex
	clients map[*Client]struct{}
	stopped bool

	evicted atomic.Uint64
}

type FeedConfig struct {
	// SendBuf is the per-client outbound queue size. Zero means 32.
	SendBuf int
}

func NewFeed(logger *slog.Logger, cfg FeedConfig) *Feed {
	n := cfg.SendBuf
	if n <= 0 {
		n = 32
	}
	return &Feed{
		logger:   logger,
		queueLen: n,
		clients:  make(map[*Client]struct{}),
	}
}

// Run publishes every event from src until ctx is canceled or src is
// closed, then disconnects all subscribers.
func (f *Feed) Run(ctx context.Context, src <-chan input.PhaseEvent) {
	defer f.stop()
	if src == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				f.logger.Info("phase feed source ended")
				return
			}
			f.Publish(ev)
		}
	}
}

// Publish encodes ev once and queues it for every subscriber.
func (f *Feed) Publish(ev input.PhaseEvent) {
	msg, err := EncodePhase(ev)
	if err != nil {
		f.logger.Warn("phase frame marshal failed", "action", ev.Action, "error", err)
		return
	}

	var full []*Client
	f.mu.Lock()
	for c := range f.clients {
		if !c.enqueue(msg) {
			full = append(full, c)
		}
	}
	f.mu.Unlock()

	for _, c := range full {
		if f.remove(c, "queue_full") {
			f.evicted.Add(1)
		}
	}
}

// Clients is the number of connected subscribers.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Evicted counts subscribers dropped for not keeping up.
func (f *Feed) Evicted() uint64 { return f.evicted.Load() }

// add subscribes c. After Run has returned the client is closed instead.
func (f *Feed) add(c *Client) bool {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		c.disconnect()
		return false
	}
	f.clients[c] = struct{}{}
	n := len(f.clients)
	f.mu.Unlock()
	f.logger.Info("phase subscriber connected", "remote_addr", c.remoteAddr, "clients", n)
	return true
}

// remove unsubscribes and disconnects c. It reports whether c was subscribed.
func (f *Feed) remove(c *Client, reason string) bool {
	f.mu.Lock()
	_, ok := f.clients[c]
	delete(f.clients, c)
	n := len(f.clients)
	f.mu.Unlock()
	if !ok {
		return false
	}
	c.disconnect()
	f.logger.Info("phase subscriber disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	return true
}

func (f *Feed) stop() {
	f.mu.Lock()
	f.stopped = true
	clients := f.clients
	f.clients = make(map[*Client]struct{})
	f.mu.Unlock()

	for c := range clients {
		c.disconnect()
	}
	f.logger.Info("phase feed stopped", "disconnected", len(clients))
}
