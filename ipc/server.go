package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Protocol: line-delimited JSON
//   - Client sends: {"type": "set_control", "data": {...}}
//   - Server responds: {"status": "ok", "data": ...} or {"status": "error", "error": "msg"}
// ============================================================================

// Response is sent back for every request line.
type Response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// OK builds a success response, encoding data when it is non-nil.
func OK(data any) Response {
	if data == nil {
		return Response{Status: StatusOK}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Errorf("encode response: %v", err)
	}
	return Response{Status: StatusOK, Data: b}
}

// Errorf builds an error response.
func Errorf(format string, args ...any) Response {
	return Response{Status: StatusError, Error: fmt.Sprintf(format, args...)}
}

// Call is one decoded request waiting for the daemon loop. The loop must send
// exactly one Response on Reply; Reply is buffered so that never blocks.
type Call struct {
	Request Request
	Reply   chan<- Response
}

// ReplyTimeout bounds how long a connection waits for the daemon loop.
const ReplyTimeout = 2 * time.Second

// Serve listens on socketPath and forwards requests to calls until ctx is
// canceled, at which point it closes the listener and returns nil.
func Serve(ctx context.Context, socketPath string, calls chan<- Call, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}
		go handleConn(ctx, conn, calls, logger)
	}
}

func handleConn(ctx context.Context, conn net.Conn, calls chan<- Call, logger *slog.Logger) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		logger.Debug("IPC received", "line", string(line))

		resp := dispatch(ctx, line, calls)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}
}

func dispatch(ctx context.Context, line []byte, calls chan<- Call) Response {
	req, err := UnmarshalRequest(line)
	if err != nil {
		return Errorf("parse request: %v", err)
	}

	reply := make(chan Response, 1)
	select {
	case calls <- Call{Request: req, Reply: reply}:
	default:
		return Errorf("request queue full")
	}

	timer := time.NewTimer(ReplyTimeout)
	defer timer.Stop()
	select {
	case resp := <-reply:
		return resp
	case <-ctx.Done():
		return Errorf("daemon shutting down")
	case <-timer.C:
		return Errorf("timed out waiting for daemon")
	}
}
