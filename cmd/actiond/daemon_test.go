package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"actionmap/config"
	"actionmap/evdev"
	"actionmap/input"
	"actionmap/ipc"
	"actionmap/phasews"
)

type testDaemon struct {
	*daemon
	phases chan input.PhaseEvent
	clock  time.Time
}

func (td *testDaemon) advance(d time.Duration) { td.clock = td.clock.Add(d) }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Actions = []config.ActionConfig{
		{Name: "fire", Bindings: []config.BindingConfig{{Path: "virtual/fire"}}},
		{Name: "select", Bindings: []config.BindingConfig{{Path: "key/KEY_ENTER"}}},
		{Name: "extra", Bindings: []config.BindingConfig{{Path: "virtual/extra*"}}},
		{
			Name: "quick",
			Bindings: []config.BindingConfig{{
				Path:         "virtual/quick",
				Interactions: []input.InteractionSpec{{Type: "tap"}},
			}},
		},
	}
	return &cfg
}

func newTestDaemon(t *testing.T, devices ...*evdev.Device) *testDaemon {
	t.Helper()
	phases := make(chan input.PhaseEvent, 64)
	logger := setupLogger(io.Discard, LogLevelError)
	d, err := newDaemon(testConfig(), devices, noop.NewMeterProvider().Meter("test"), phases, logger)
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	td := &testDaemon{daemon: d, phases: phases, clock: time.Unix(1000, 0)}
	d.now = func() time.Time { return td.clock }
	t.Cleanup(d.metrics.close)
	return td
}

func drain(ch chan input.PhaseEvent) []input.PhaseEvent {
	var out []input.PhaseEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func phasesOf(evs []input.PhaseEvent, action string) []input.Phase {
	var out []input.Phase
	for _, ev := range evs {
		if ev.Action == action {
			out = append(out, ev.Phase)
		}
	}
	return out
}

func mustOK(t *testing.T, resp ipc.Response) {
	t.Helper()
	if resp.Status != ipc.StatusOK {
		t.Fatalf("response status %q: %s", resp.Status, resp.Error)
	}
}

func TestDaemon_SetControlPerformsAction(t *testing.T) {
	td := newTestDaemon(t)

	mustOK(t, td.handleRequest(ipc.SetControl{Path: "fire", X: 1}))

	got := phasesOf(drain(td.phases), "fire")
	if len(got) < 2 || got[0] != input.PhaseStarted || got[1] != input.PhasePerformed {
		t.Fatalf("fire phases = %v, want started then performed", got)
	}
}

func TestDaemon_TapTimesOutOnTick(t *testing.T) {
	td := newTestDaemon(t)

	mustOK(t, td.handleRequest(ipc.SetControl{Path: "virtual/quick", X: 1}))
	if got := phasesOf(drain(td.phases), "quick"); len(got) != 1 || got[0] != input.PhaseStarted {
		t.Fatalf("after press: %v, want [started]", got)
	}

	td.advance(time.Second)
	td.tick(context.Background())

	if got := phasesOf(drain(td.phases), "quick"); len(got) != 1 || got[0] != input.PhaseCanceled {
		t.Fatalf("after timeout: %v, want [canceled]", got)
	}
}

func TestDaemon_DeviceEventDrivesBinding(t *testing.T) {
	dev := evdev.NewDevice("remote", "")
	td := newTestDaemon(t, dev)

	_, code, err := evdev.ParsePath("key/KEY_ENTER")
	if err != nil {
		t.Fatalf("ParsePath: %v", err)
	}
	td.handleDeviceEvent(context.Background(), evdev.DeviceEvent{
		Device: 0,
		Event:  evdev.Event{Type: evdev.EV_KEY, Code: code, Value: 1},
	})

	evs := drain(td.phases)
	got := phasesOf(evs, "select")
	if len(got) < 2 || got[1] != input.PhasePerformed {
		t.Fatalf("select phases = %v", got)
	}
	if evs[0].ControlPath() != "key/KEY_ENTER" {
		t.Fatalf("control = %q", evs[0].ControlPath())
	}

	// Out-of-range device indexes are ignored.
	td.handleDeviceEvent(context.Background(), evdev.DeviceEvent{Device: 3})
	if evs := drain(td.phases); len(evs) != 0 {
		t.Fatalf("unexpected events %v", evs)
	}
}

func TestDaemon_NewVirtualControlCompletesWildcard(t *testing.T) {
	td := newTestDaemon(t)

	if u := td.m.Unbound()["extra"]; len(u) != 1 {
		t.Fatalf("extra should start unbound, got %v", td.m.Unbound())
	}

	mustOK(t, td.handleRequest(ipc.SetControl{Path: "extra1", X: 1}))

	evs := drain(td.phases)
	if got := phasesOf(evs, "extra"); len(got) < 2 || got[1] != input.PhasePerformed {
		t.Fatalf("extra phases = %v", got)
	}
	if _, ok := td.m.Unbound()["extra"]; ok {
		t.Fatalf("extra still unbound after refresh")
	}
}

func TestDaemon_DisableActionSilencesIt(t *testing.T) {
	td := newTestDaemon(t)

	mustOK(t, td.handleRequest(ipc.DisableAction{Name: "fire"}))
	mustOK(t, td.handleRequest(ipc.SetControl{Path: "fire", X: 1}))
	if got := phasesOf(drain(td.phases), "fire"); len(got) != 0 {
		t.Fatalf("disabled action emitted %v", got)
	}

	mustOK(t, td.handleRequest(ipc.SetControl{Path: "fire", X: 0}))
	mustOK(t, td.handleRequest(ipc.EnableAction{Name: "fire"}))
	mustOK(t, td.handleRequest(ipc.SetControl{Path: "fire", X: 1}))
	if got := phasesOf(drain(td.phases), "fire"); len(got) == 0 {
		t.Fatalf("re-enabled action emitted nothing")
	}
}

func TestDaemon_DisableMap(t *testing.T) {
	td := newTestDaemon(t)

	mustOK(t, td.handleRequest(ipc.DisableMap{}))
	mustOK(t, td.handleRequest(ipc.SetControl{Path: "fire", X: 1}))
	if evs := drain(td.phases); len(evs) != 0 {
		t.Fatalf("disabled map emitted %v", evs)
	}
	mustOK(t, td.handleRequest(ipc.EnableMap{}))
	if !td.m.Enabled() {
		t.Fatalf("map not re-enabled")
	}
}

func TestDaemon_UnknownActionIsAnError(t *testing.T) {
	td := newTestDaemon(t)

	resp := td.handleRequest(ipc.EnableAction{Name: "nope"})
	if resp.Status != ipc.StatusError || !strings.Contains(resp.Error, "unknown action") {
		t.Fatalf("resp = %+v", resp)
	}
	if _, err := td.action("nope"); !errors.Is(err, errUnknownAction) {
		t.Fatalf("action error = %v", err)
	}
}

func TestDaemon_SetSettings(t *testing.T) {
	td := newTestDaemon(t)

	tap := 120
	mustOK(t, td.handleRequest(ipc.SetSettings{TapTimeMS: &tap}))
	if got := td.m.Settings().DefaultTapTime; got != 120*time.Millisecond {
		t.Fatalf("tap time = %v", got)
	}

	bad := -1.0
	if resp := td.handleRequest(ipc.SetSettings{PressPoint: &bad}); resp.Status != ipc.StatusError {
		t.Fatalf("negative press point accepted")
	}
	if got := td.m.Settings().DefaultTapTime; got != 120*time.Millisecond {
		t.Fatalf("rejected settings changed tap time to %v", got)
	}
}

func TestDaemon_GetState(t *testing.T) {
	td := newTestDaemon(t)

	resp := td.handleRequest(ipc.GetState{})
	mustOK(t, resp)

	var st stateReply
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.Map != mapName || !st.Enabled || len(st.Actions) != 4 {
		t.Fatalf("state = %+v", st)
	}
	if st.Actions[0].Name != "fire" || st.Actions[0].Phase != input.PhaseWaiting {
		t.Fatalf("first action = %+v", st.Actions[0])
	}
}

func TestDaemon_ListenerDropsWhenFeedFull(t *testing.T) {
	td := newTestDaemon(t)
	full := make(chan input.PhaseEvent)
	td.daemon.phases = full

	mustOK(t, td.handleRequest(ipc.SetControl{Path: "fire", X: 1}))
	if n := td.m.ListenerFailures(); n != 0 {
		t.Fatalf("dropping an event counted as a listener failure: %d", n)
	}
}

func TestDaemon_RunServesChannels(t *testing.T) {
	td := newTestDaemon(t)
	td.now = time.Now

	calls := make(chan ipc.Call)
	snapshots := make(chan phasews.SnapshotRequest)
	readErr := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- td.run(ctx, daemonInputs{calls: calls, snapshots: snapshots, readErr: readErr}, 5*time.Millisecond)
	}()

	reply := make(chan ipc.Response, 1)
	calls <- ipc.Call{Request: ipc.SetControl{Path: "fire", X: 1}, Reply: reply}
	select {
	case resp := <-reply:
		mustOK(t, resp)
	case <-time.After(time.Second):
		t.Fatalf("no reply from daemon loop")
	}

	snap := make(chan []input.ActionState, 1)
	snapshots <- phasews.SnapshotRequest{Reply: snap}
	select {
	case actions := <-snap:
		if len(actions) != 4 {
			t.Fatalf("snapshot has %d actions", len(actions))
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot from daemon loop")
	}

	readErr <- errors.New("device gone")
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "device gone") {
			t.Fatalf("run error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop on read error")
	}
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	td := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- td.run(ctx, daemonInputs{}, 5*time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"error": LogLevelError, "WARN": LogLevelWarn, "warning": LogLevelWarn,
		"info": LogLevelInfo, "debug": LogLevelDebug,
	} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Fatalf("parseLogLevel(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := parseLogLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLoadConfigLayersFlagsOverEnv(t *testing.T) {
	t.Setenv("ACTIOND_UPDATE_HZ", "30")
	t.Setenv("ACTIOND_LOG_LEVEL", "debug")

	level := "warn"
	cfg, err := loadConfig("", config.FlagOverrides{LogLevel: &level})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Engine.UpdateHz != 30 {
		t.Fatalf("update hz = %d, want env value 30", cfg.Engine.UpdateHz)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("log level = %q, want flag value warn", cfg.Logging.Level)
	}
}
