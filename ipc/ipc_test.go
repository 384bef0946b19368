package ipc

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func socketPath(t *testing.T) string {
	t.Helper()
	// t.TempDir can exceed the unix socket path limit.
	dir, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func startServer(t *testing.T, calls chan Call) string {
	t.Helper()
	path := socketPath(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, path, calls, testLogger()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("Serve did not stop")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		if time.Now().After(deadline) {
			t.Fatalf("socket %s never appeared", path)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRequestRoundTripThroughEnvelope(t *testing.T) {
	tap := 150
	cases := []Request{
		SetControl{Path: "virtual/a", X: 1},
		EnableAction{Name: "jump"},
		DisableAction{Name: "jump"},
		EnableMap{},
		DisableMap{},
		SetSettings{TapTimeMS: &tap},
		GetState{},
	}
	for _, want := range cases {
		b, err := MarshalRequest(want)
		if err != nil {
			t.Fatalf("MarshalRequest(%T): %v", want, err)
		}
		got, err := UnmarshalRequest(b)
		if err != nil {
			t.Fatalf("UnmarshalRequest(%s): %v", b, err)
		}
		if s, ok := want.(SetSettings); ok {
			g := got.(SetSettings)
			if g.TapTimeMS == nil || *g.TapTimeMS != *s.TapTimeMS {
				t.Fatalf("SetSettings tap time lost: %+v", g)
			}
			continue
		}
		if got != want {
			t.Fatalf("round trip: got %#v want %#v", got, want)
		}
	}
}

func TestUnmarshalRequestErrors(t *testing.T) {
	cases := map[string]string{
		"bad json":         `{`,
		"unknown type":     `{"type":"reboot"}`,
		"missing data":     `{"type":"set_control"}`,
		"missing path":     `{"type":"set_control","data":{"x":1}}`,
		"missing name":     `{"type":"enable_action","data":{}}`,
		"wrong field type": `{"type":"disable_action","data":{"name":3}}`,
	}
	for name, in := range cases {
		if _, err := UnmarshalRequest([]byte(in)); err == nil {
			t.Errorf("%s: expected error for %s", name, in)
		}
	}
}

func TestServeForwardsRequestsAndReplies(t *testing.T) {
	calls := make(chan Call, 4)
	path := startServer(t, calls)

	go func() {
		c := <-calls
		sc, ok := c.Request.(SetControl)
		if !ok || sc.Path != "virtual/fire" || sc.X != 1 {
			c.Reply <- Errorf("unexpected request %#v", c.Request)
			return
		}
		c.Reply <- OK(map[string]string{"applied": sc.Path})
	}()

	resp, err := Send(path, SetControl{Path: "virtual/fire", X: 1})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != StatusOK {
		t.Fatalf("status = %q", resp.Status)
	}
	if !strings.Contains(string(resp.Data), "virtual/fire") {
		t.Fatalf("data = %s", resp.Data)
	}
}

func TestSendReturnsDaemonError(t *testing.T) {
	calls := make(chan Call, 1)
	path := startServer(t, calls)

	go func() {
		c := <-calls
		c.Reply <- Errorf("unknown action %q", "nope")
	}()

	resp, err := Send(path, EnableAction{Name: "nope"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if resp.Status != StatusError || !strings.Contains(resp.Error, "unknown action") {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestServeReportsFullQueue(t *testing.T) {
	calls := make(chan Call) // nobody reads
	path := startServer(t, calls)

	_, err := Send(path, GetState{})
	if err == nil || !strings.Contains(err.Error(), "queue full") {
		t.Fatalf("expected queue full error, got %v", err)
	}
}

func TestServeRemovesSocketOnShutdown(t *testing.T) {
	path := socketPath(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, path, make(chan Call), testLogger()) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("socket never appeared")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket still present: %v", err)
	}
}
