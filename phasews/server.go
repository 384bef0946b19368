package phasews

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"actionmap/input"
)

// SnapshotRequest asks the daemon loop for the current action states. The
// loop answers on Reply, which is buffered.
type SnapshotRequest struct {
	Reply chan<- []input.ActionState
}

// Server serves the phase feed over websocket.
type Server struct {
	logger *slog.Logger
	feed   *Feed

	// Snapshots go through the daemon loop, which owns the action map.
	snapshots chan<- SnapshotRequest
}

type ServerConfig struct {
	Feed FeedConfig
}

// NewServer constructs the feed and handler. Start Feed().Run separately.
func NewServer(logger *slog.Logger, snapshots chan<- SnapshotRequest, cfg ServerConfig) *Server {
	return &Server{
		logger:    logger,
		feed:      NewFeed(logger, cfg.Feed),
		snapshots: snapshots,
	}
}

func (s *Server) Feed() *Feed { return s.feed }

// Register installs the websocket handler on mux at path.
func (s *Server) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handlePhaseWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const snapshotWait = time.Second

func (s *Server) handlePhaseWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := newClient(s.feed, conn, r.RemoteAddr, s.logger)
	if !s.feed.add(client) {
		return
	}

	// The request context ends when this handler returns; pumps must outlive it.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	if s.snapshots == nil {
		return
	}

	reply := make(chan []input.ActionState, 1)
	select {
	case <-r.Context().Done():
		return
	case s.snapshots <- SnapshotRequest{Reply: reply}:
	}

	waitCtx, cancel := context.WithTimeout(r.Context(), snapshotWait)
	defer cancel()

	select {
	case <-waitCtx.Done():
		if !errors.Is(waitCtx.Err(), context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", waitCtx.Err())
		}
	case actions := <-reply:
		msg, err := EncodeStateInit(actions)
		if err != nil {
			s.logger.Warn("ws state_init marshal failed", "error", err)
			return
		}
		if !client.enqueue(msg) {
			s.feed.remove(client, "queue_full")
		}
	}
}
