package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"actionmap/config"
	"actionmap/evdev"
	"actionmap/input"
	"actionmap/ipc"
	"actionmap/phasews"
)

const version = "0.1.0"

func printVersion() {
	fmt.Printf("actiond v%s\n", version)
	fmt.Println("Input action mapping daemon for Linux input devices")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  actiond [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads Linux input devices (evdev) and virtual controls set over IPC,")
	fmt.Println("  runs them through configured interactions (press, tap, slowtap, hold,")
	fmt.Println("  multitap) and publishes action phase changes over a websocket feed.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (actions, bindings, engine defaults)")
	fmt.Println()
	fmt.Println("  -device string")
	fmt.Println("        Linux input event device; replaces the config device list")
	fmt.Println()
	fmt.Println("  -update-hz int")
	fmt.Println("        Engine update frequency in Hz (default 60)")
	fmt.Println()
	fmt.Println("  -tap-time-ms, -slow-tap-time-ms, -hold-time-ms, -multi-tap-delay-ms int")
	fmt.Println("        Interaction timing defaults in milliseconds")
	fmt.Println()
	fmt.Println("  -press-point float")
	fmt.Println("        Default button press point (default 0.5)")
	fmt.Println()
	fmt.Println("  -release-threshold float")
	fmt.Println("        Fraction of the press point below which a button is released (default 0.75)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/actiond.sock\")")
	fmt.Println()
	fmt.Println("  -ws-listen string")
	fmt.Println("        Phase feed listen address; empty disables it (default \"127.0.0.1:3002\")")
	fmt.Println()
	fmt.Println("  -ws-path string")
	fmt.Println("        Phase feed HTTP path (default \"/phases\")")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  ACTIOND_DEVICES, ACTIOND_UPDATE_HZ, ACTIOND_TAP_TIME_MS, ACTIOND_HOLD_TIME_MS,")
	fmt.Println("  ACTIOND_PRESS_POINT, ACTIOND_IPC_SOCKET, ACTIOND_WS_LISTEN, ACTIOND_LOG_LEVEL")
	fmt.Println("  override the config file; flags override the environment.")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func main() {
	fs := flag.NewFlagSet("actiond", flag.ExitOnError)
	fs.Usage = printUsage

	var (
		configPath = fs.String("config", "", "YAML config file")
		showVer    = fs.Bool("version", false, "Print version and exit")
		showHelp   = fs.Bool("help", false, "Print help message")

		device           = fs.String("device", "", "Linux input event device")
		updateHz         = fs.Int("update-hz", 0, "Engine update frequency in Hz")
		tapTimeMS        = fs.Int("tap-time-ms", 0, "Default tap time in ms")
		slowTapTimeMS    = fs.Int("slow-tap-time-ms", 0, "Default slow tap time in ms")
		holdTimeMS       = fs.Int("hold-time-ms", 0, "Default hold time in ms")
		multiTapDelayMS  = fs.Int("multi-tap-delay-ms", 0, "Default multi tap delay in ms")
		pressPoint       = fs.Float64("press-point", 0, "Default button press point")
		releaseThreshold = fs.Float64("release-threshold", 0, "Button release threshold")
		ipcSocket        = fs.String("ipc-socket", "", "Unix domain socket path for IPC")
		wsListen         = fs.String("ws-listen", "", "Phase feed listen address")
		wsPath           = fs.String("ws-path", "", "Phase feed HTTP path")
		logLevelStr      = fs.String("log-level", "", "Log level: error, warn, info, debug")
	)
	_ = fs.Parse(os.Args[1:])

	if *showHelp {
		printUsage()
		return
	}
	if *showVer {
		printVersion()
		return
	}

	// Only flags given on the command line override the config.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	pick := func(name string) bool { return set[name] }

	var fo config.FlagOverrides
	if pick("device") {
		fo.Device = device
	}
	if pick("update-hz") {
		fo.UpdateHz = updateHz
	}
	if pick("tap-time-ms") {
		fo.TapTimeMS = tapTimeMS
	}
	if pick("slow-tap-time-ms") {
		fo.SlowTapTimeMS = slowTapTimeMS
	}
	if pick("hold-time-ms") {
		fo.HoldTimeMS = holdTimeMS
	}
	if pick("multi-tap-delay-ms") {
		fo.MultiTapDelayMS = multiTapDelayMS
	}
	if pick("press-point") {
		fo.PressPoint = pressPoint
	}
	if pick("release-threshold") {
		fo.ReleaseThreshold = releaseThreshold
	}
	if pick("ipc-socket") {
		fo.IPCSocketPath = ipcSocket
	}
	if pick("ws-listen") {
		fo.WSListen = wsListen
	}
	if pick("ws-path") {
		fo.WSPath = wsPath
	}
	if pick("log-level") {
		fo.LogLevel = logLevelStr
	}

	cfg, err := loadConfig(*configPath, fo)
	if err != nil {
		fatal(err)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fatal(err)
	}
	logger := setupLogger(os.Stdout, logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("actiond stopped", "error", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the environment and flags, then validates.
func loadConfig(path string, fo config.FlagOverrides) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		cfg, err = config.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
	}

	eo, err := config.LoadEnvOverrides()
	if err != nil {
		return nil, err
	}
	eo.Apply(&cfg)
	fo.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// run wires the devices, servers and daemon loop and blocks until shutdown.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	files, devices, err := evdev.OpenAll(cfg.Devices, "")
	if err != nil {
		logger.Error("failed to open input device", "error", err, "tip", "run as root or add user to 'input' group")
		return err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	var phases chan input.PhaseEvent
	if cfg.PhaseWS.Listen != "" {
		phases = make(chan input.PhaseEvent, cfg.PhaseWS.BroadcastBuf)
	}

	d, err := newDaemon(cfg, devices, nil, phases, logger)
	if err != nil {
		return err
	}
	defer d.metrics.close()
	defer d.m.Close()

	in := daemonInputs{}

	// Device input
	if len(files) > 0 {
		events := make(chan evdev.DeviceEvent, 64)
		readErr := make(chan error, 1)
		go evdev.ReadEventsEpoll(files, events, readErr)
		in.events, in.readErr = events, readErr
	}

	// IPC
	calls := make(chan ipc.Call, 64)
	in.calls = calls
	go func() {
		if err := ipc.Serve(ctx, cfg.IPC.SocketPath, calls, logger); err != nil {
			logger.Error("IPC server error", "error", err)
			stop()
		}
	}()

	// Phase feed
	var httpServer *http.Server
	if phases != nil {
		snapshots := make(chan phasews.SnapshotRequest, 8)
		in.snapshots = snapshots

		ws := phasews.NewServer(logger, snapshots, phasews.ServerConfig{
			Feed: phasews.FeedConfig{SendBuf: cfg.PhaseWS.SendBuf},
		})
		mux := http.NewServeMux()
		ws.Register(mux, cfg.PhaseWS.Path)
		httpServer = &http.Server{Addr: cfg.PhaseWS.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go ws.Feed().Run(ctx, phases)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("phase feed server error", "error", err)
				stop()
			}
		}()
	}

	logger.Info("listening",
		"devices", cfg.Devices,
		"ipc", cfg.IPC.SocketPath,
		"phase_ws", cfg.PhaseWS.Listen+cfg.PhaseWS.Path,
		"update_rate_hz", cfg.Engine.UpdateHz,
		"actions", len(cfg.Actions))

	runErr := d.run(ctx, in, cfg.UpdateInterval())

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}
	logger.Info("shutting down")
	return runErr
}
