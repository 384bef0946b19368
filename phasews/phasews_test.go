package phasews

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"actionmap/input"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runFeed(t *testing.T, feed *Feed) chan<- input.PhaseEvent {
	t.Helper()
	src := make(chan input.PhaseEvent, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.Run(ctx, src)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Errorf("timeout waiting for feed to stop")
		}
	})
	return src
}

// Clients with nil conns never touch the network.
func fakeClient(feed *Feed, name string, buf int) *Client {
	return &Client{
		feed:       feed,
		send:       make(chan []byte, buf),
		remoteAddr: name,
		logger:     testLogger(),
	}
}

func subscribe(t *testing.T, feed *Feed, c *Client) {
	t.Helper()
	if !feed.add(c) {
		t.Fatalf("%s rejected", c.remoteAddr)
	}
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case got, ok := <-c.send:
		if !ok {
			t.Fatalf("%s queue closed", c.remoteAddr)
		}
		return got
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for %s to receive a frame", c.remoteAddr)
	}
	return nil
}

func TestFeed_PhaseDeliveredToAllClients(t *testing.T) {
	feed := NewFeed(testLogger(), FeedConfig{SendBuf: 4})
	src := runFeed(t, feed)

	c1 := fakeClient(feed, "c1", 4)
	c2 := fakeClient(feed, "c2", 4)
	subscribe(t, feed, c1)
	subscribe(t, feed, c2)

	src <- input.PhaseEvent{Action: "jump", Phase: input.PhaseStarted, Time: time.Unix(5, 0)}

	for _, c := range []*Client{c1, c2} {
		got := recv(t, c)
		if !strings.Contains(string(got), `"action":"jump"`) || !strings.Contains(string(got), `"phase":"started"`) {
			t.Fatalf("%s got %s", c.remoteAddr, got)
		}
	}
	if n := feed.Clients(); n != 2 {
		t.Fatalf("Clients() = %d, want 2", n)
	}
}

func TestFeed_FullQueueEvictsOnlyThatClient(t *testing.T) {
	feed := NewFeed(testLogger(), FeedConfig{SendBuf: 1})

	slow := fakeClient(feed, "slow", 1)
	fast := fakeClient(feed, "fast", 8)
	subscribe(t, feed, slow)
	subscribe(t, feed, fast)

	slow.send <- []byte(`"already queued"`)
	feed.Publish(input.PhaseEvent{Action: "fire", Phase: input.PhasePerformed})

	if got := recv(t, fast); !strings.Contains(string(got), `"action":"fire"`) {
		t.Fatalf("fast client got %s", got)
	}
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Fatalf("expected slow send queue to be closed")
	}
	if n := feed.Clients(); n != 1 {
		t.Fatalf("Clients() = %d, want 1", n)
	}
	if n := feed.Evicted(); n != 1 {
		t.Fatalf("Evicted() = %d, want 1", n)
	}
}

func TestFeed_RemoveTwiceIsHarmless(t *testing.T) {
	feed := NewFeed(testLogger(), FeedConfig{SendBuf: 1})
	c := fakeClient(feed, "c", 1)
	subscribe(t, feed, c)

	if !feed.remove(c, "test") {
		t.Fatalf("first remove reported not subscribed")
	}
	if feed.remove(c, "test") {
		t.Fatalf("second remove reported subscribed")
	}
	if n := feed.Clients(); n != 0 {
		t.Fatalf("Clients() = %d, want 0", n)
	}
}

func TestClient_EnqueueAfterDisconnect(t *testing.T) {
	feed := NewFeed(testLogger(), FeedConfig{SendBuf: 2})
	c := fakeClient(feed, "c", 2)
	subscribe(t, feed, c)

	feed.remove(c, "read_error")
	if c.enqueue([]byte(`{"type":"state_init"}`)) {
		t.Fatalf("enqueue on a closed client succeeded")
	}
	c.disconnect()
	feed.Publish(input.PhaseEvent{Action: "fire", Phase: input.PhaseStarted})
}

func TestFeed_StopDisconnectsAndRejects(t *testing.T) {
	feed := NewFeed(testLogger(), FeedConfig{SendBuf: 1})
	c := fakeClient(feed, "c", 1)
	subscribe(t, feed, c)

	src := make(chan input.PhaseEvent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		feed.Run(context.Background(), src)
	}()
	close(src)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("feed did not stop after source closed")
	}

	if _, ok := <-c.send; ok {
		t.Fatalf("expected send queue to be closed on stop")
	}
	late := fakeClient(feed, "late", 1)
	if feed.add(late) {
		t.Fatalf("add after stop succeeded")
	}
	if late.enqueue([]byte("x")) {
		t.Fatalf("late client accepted a frame")
	}
}

func TestEncodePhase(t *testing.T) {
	dev := input.NewVirtualDevice("pad/")
	ctl := dev.Control("pad/a")
	at := time.Unix(1000, 0)

	b, err := EncodePhase(input.PhaseEvent{
		Action:      "jump",
		Phase:       input.PhasePerformed,
		Control:     ctl,
		Time:        at,
		Instance:    3,
		Interaction: "tap",
		Binding:     1,
	})
	if err != nil {
		t.Fatalf("EncodePhase: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypePhase {
		t.Fatalf("type = %q", env.Type)
	}
	if env.Ts == nil || !env.Ts.Equal(at) {
		t.Fatalf("ts = %v, want %v", env.Ts, at)
	}
	var data PhaseData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Action != "jump" || data.Phase != input.PhasePerformed || data.Control != "pad/a" ||
		data.Interaction != "tap" || data.Instance != 3 || data.Binding != 1 {
		t.Fatalf("data = %+v", data)
	}
	if !strings.Contains(string(env.Data), `"phase":"performed"`) {
		t.Fatalf("phase not encoded as text: %s", env.Data)
	}
}

func TestServerSendsStateInitThenPhases(t *testing.T) {
	snapshots := make(chan SnapshotRequest, 1)
	srv := NewServer(testLogger(), snapshots, ServerConfig{})
	src := runFeed(t, srv.Feed())

	go func() {
		req := <-snapshots
		req.Reply <- []input.ActionState{{Name: "jump", Phase: input.PhaseWaiting, Enabled: true, Bindings: 1}}
	}()

	mux := http.NewServeMux()
	srv.Register(mux, "/phases")
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/phases"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read state_init: %v", err)
	}
	if env.Type != TypeStateInit {
		t.Fatalf("first frame type = %q, want %q", env.Type, TypeStateInit)
	}
	var init StateInitData
	if err := json.Unmarshal(env.Data, &init); err != nil {
		t.Fatalf("unmarshal state_init: %v", err)
	}
	if len(init.Actions) != 1 || init.Actions[0].Name != "jump" {
		t.Fatalf("state_init actions = %+v", init.Actions)
	}

	waitUntil(t, 500*time.Millisecond, func() bool { return srv.Feed().Clients() == 1 }, "client not subscribed")
	src <- input.PhaseEvent{Action: "jump", Phase: input.PhaseStarted, Time: time.Now()}

	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read phase: %v", err)
	}
	if env.Type != TypePhase {
		t.Fatalf("second frame type = %q, want %q", env.Type, TypePhase)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
