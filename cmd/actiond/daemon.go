package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"actionmap/config"
	"actionmap/evdev"
	"actionmap/input"
	"actionmap/ipc"
	"actionmap/phasews"
)

// ============================================================================
// Daemon Loop
// ============================================================================
//
// The loop goroutine is the only one that touches the action map. Everything
// else reaches it through channels:
//   - evdev readers deliver raw events, folded into device controls here
//   - the IPC server delivers requests with a reply channel
//   - the websocket server asks for snapshots with a reply channel
//   - the ticker fires due timeouts and polls for changes
//
// Phase events leave through the map listener: logged, counted and pushed
// (non-blocking) onto the websocket feed.
// ============================================================================

const mapName = "actiond"

type daemon struct {
	m       *input.Map
	virtual *input.VirtualDevice
	prefix  string
	devices []*evdev.Device

	metrics *daemonMetrics
	phases  chan<- input.PhaseEvent
	logger  *slog.Logger

	now func() time.Time
}

// daemonInputs are the channels the loop selects on. Nil channels are never ready.
type daemonInputs struct {
	events    <-chan evdev.DeviceEvent
	readErr   <-chan error
	calls     <-chan ipc.Call
	snapshots <-chan phasews.SnapshotRequest
}

// newDaemon builds the action map from cfg over the virtual controls and the
// given devices. phases may be nil when no feed is served.
func newDaemon(cfg *config.Config, devices []*evdev.Device, meter metric.Meter, phases chan<- input.PhaseEvent, logger *slog.Logger) (*daemon, error) {
	prefix := cfg.IPC.VirtualPrefix
	virtual := input.NewVirtualDevice(prefix)

	// Create the virtual controls the config names up front so their
	// bindings resolve at build time.
	for _, path := range configPaths(cfg) {
		if prefix != "" && strings.HasPrefix(path, prefix) && !strings.HasSuffix(path, "*") {
			virtual.Control(path)
		}
	}

	resolvers := input.Resolvers{virtual}
	for _, dev := range devices {
		resolvers = append(resolvers, dev)
	}

	m, err := cfg.BuildMap(mapName, resolvers, input.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	dm, err := newDaemonMetrics(meter, m.ListenerFailures)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		m:       m,
		virtual: virtual,
		prefix:  prefix,
		devices: devices,
		metrics: dm,
		phases:  phases,
		logger:  logger,
		now:     time.Now,
	}
	m.AddListener(d.onPhase)

	for action, paths := range m.Unbound() {
		logger.Warn("binding resolved to no control", "action", action, "paths", paths)
	}
	return d, nil
}

func configPaths(cfg *config.Config) []string {
	var out []string
	for _, a := range cfg.Actions {
		for _, b := range a.Bindings {
			if b.Path != "" {
				out = append(out, b.Path)
			}
			for _, p := range b.Parts {
				out = append(out, p.Path)
			}
		}
	}
	return out
}

func (d *daemon) onPhase(ev input.PhaseEvent) error {
	d.logger.Debug("phase",
		"action", ev.Action,
		"phase", ev.Phase,
		"control", ev.ControlPath(),
		"interaction", ev.Interaction,
		"instance", ev.Instance)
	d.metrics.recordPhase(context.Background(), ev)

	if d.phases != nil {
		select {
		case d.phases <- ev:
		default:
			d.logger.Warn("phase feed full, dropping event", "action", ev.Action, "phase", ev.Phase)
		}
	}
	return nil
}

// run drives the map until ctx is canceled (nil) or a device read fails.
func (d *daemon) run(ctx context.Context, in daemonInputs, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopping (context canceled)")
			return nil

		case err := <-in.readErr:
			return fmt.Errorf("input reader stopped: %w", err)

		case ev := <-in.events:
			d.handleDeviceEvent(ctx, ev)

		case c := <-in.calls:
			resp := d.handleRequest(c.Request)
			d.metrics.recordRequest(ctx, requestType(c.Request), resp.Status == ipc.StatusOK)
			c.Reply <- resp

		case req := <-in.snapshots:
			req.Reply <- d.m.Snapshot()

		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *daemon) tick(ctx context.Context) {
	if err := d.m.Update(d.now()); err != nil {
		d.tickFailed(ctx, err)
	}
	// Relative axes hold one tick's worth of motion; the next Update sees them at rest.
	for _, dev := range d.devices {
		dev.ResetRelative()
	}
}

func (d *daemon) tickFailed(ctx context.Context, err error) {
	d.metrics.recordTickError(ctx)
	d.logger.Error("engine tick failed", "error", err)
}

func (d *daemon) handleDeviceEvent(ctx context.Context, ev evdev.DeviceEvent) {
	if ev.Device < 0 || ev.Device >= len(d.devices) {
		return
	}
	ctl, changed := d.devices[ev.Device].Apply(ev.Event)
	if !changed {
		return
	}
	if err := d.m.HandleControlChange(ctl, d.now()); err != nil {
		d.tickFailed(ctx, err)
	}
}

// ============================================================================
// IPC requests
// ============================================================================

// stateReply is the data of a get_state response.
type stateReply struct {
	Map              string              `json:"map"`
	Enabled          bool                `json:"enabled"`
	ListenerFailures uint64              `json:"listener_failures"`
	Actions          []input.ActionState `json:"actions"`
}

var errUnknownAction = errors.New("unknown action")

func (d *daemon) action(name string) (*input.Action, error) {
	a := d.m.Action(name)
	if a == nil {
		return nil, fmt.Errorf("%w: %q", errUnknownAction, name)
	}
	return a, nil
}

func (d *daemon) handleRequest(req ipc.Request) ipc.Response {
	switch r := req.(type) {
	case ipc.SetControl:
		if err := d.setControl(r); err != nil {
			return ipc.Errorf("%v", err)
		}
		return ipc.OK(nil)

	case ipc.EnableAction:
		a, err := d.action(r.Name)
		if err != nil {
			return ipc.Errorf("%v", err)
		}
		a.Enable()
		d.logger.Info("action enabled", "action", r.Name)
		return ipc.OK(nil)

	case ipc.DisableAction:
		a, err := d.action(r.Name)
		if err != nil {
			return ipc.Errorf("%v", err)
		}
		a.Disable()
		d.logger.Info("action disabled", "action", r.Name)
		return ipc.OK(nil)

	case ipc.EnableMap:
		d.m.Enable()
		d.logger.Info("map enabled")
		return ipc.OK(nil)

	case ipc.DisableMap:
		d.m.Disable()
		d.logger.Info("map disabled")
		return ipc.OK(nil)

	case ipc.SetSettings:
		s := applySettings(d.m.Settings(), r)
		if err := d.m.SetSettings(s); err != nil {
			return ipc.Errorf("%v", err)
		}
		d.logger.Info("settings changed",
			"tap_time", s.DefaultTapTime,
			"slow_tap_time", s.DefaultSlowTapTime,
			"hold_time", s.DefaultHoldTime,
			"multi_tap_delay", s.MultiTapDelayTime,
			"press_point", s.DefaultButtonPressPoint,
			"release_threshold", s.ButtonReleaseThreshold)
		return ipc.OK(nil)

	case ipc.GetState:
		return ipc.OK(stateReply{
			Map:              d.m.Name(),
			Enabled:          d.m.Enabled(),
			ListenerFailures: d.m.ListenerFailures(),
			Actions:          d.m.Snapshot(),
		})

	default:
		return ipc.Errorf("unsupported request %T", req)
	}
}

func (d *daemon) setControl(r ipc.SetControl) error {
	path := r.Path
	if d.prefix != "" && !strings.HasPrefix(path, d.prefix) {
		path = d.prefix + path
	}

	ctl, existed := d.virtual.Lookup(path)
	if !existed {
		ctl = d.virtual.Control(path)
		// A new control may complete wildcard or previously unbound bindings.
		if err := d.m.Refresh(); err != nil {
			return fmt.Errorf("refresh bindings: %w", err)
		}
	}

	ctl.Set(input.Vec2(r.X, r.Y))
	if err := d.m.HandleControlChange(ctl, d.now()); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func applySettings(s input.Settings, r ipc.SetSettings) input.Settings {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	if r.TapTimeMS != nil {
		s.DefaultTapTime = ms(*r.TapTimeMS)
	}
	if r.SlowTapTimeMS != nil {
		s.DefaultSlowTapTime = ms(*r.SlowTapTimeMS)
	}
	if r.HoldTimeMS != nil {
		s.DefaultHoldTime = ms(*r.HoldTimeMS)
	}
	if r.MultiTapDelayMS != nil {
		s.MultiTapDelayTime = ms(*r.MultiTapDelayMS)
	}
	if r.PressPoint != nil {
		s.DefaultButtonPressPoint = *r.PressPoint
	}
	if r.ReleaseThreshold != nil {
		s.ButtonReleaseThreshold = *r.ReleaseThreshold
	}
	return s
}

func requestType(req ipc.Request) string {
	switch req.(type) {
	case ipc.SetControl:
		return ipc.TypeSetControl
	case ipc.EnableAction:
		return ipc.TypeEnableAction
	case ipc.DisableAction:
		return ipc.TypeDisableAction
	case ipc.EnableMap:
		return ipc.TypeEnableMap
	case ipc.DisableMap:
		return ipc.TypeDisableMap
	case ipc.SetSettings:
		return ipc.TypeSetSettings
	case ipc.GetState:
		return ipc.TypeGetState
	default:
		return "unknown"
	}
}
