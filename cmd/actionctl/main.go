package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"actionmap/ipc"
)

// ============================================================================
// actionctl - Command-line IPC Client
// ============================================================================
// Sends requests to the actiond daemon over its unix socket.
//
// Usage:
//   actionctl press jump
//   actionctl release jump
//   actionctl set stick 0.4 -0.2
//   actionctl disable fire
//   actionctl settings tap_time_ms=150 press_point=0.6
//   actionctl state
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/actiond.sock)
// ============================================================================

func main() {
	socketPath := "/tmp/actiond.sock"

	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-socket" || args[0] == "--socket") {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return
	}

	req, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	resp, err := ipc.Send(socketPath, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Data) == 0 {
		fmt.Println("ok")
		return
	}
	var out bytes.Buffer
	if err := json.Indent(&out, resp.Data, "", "  "); err != nil {
		fmt.Println(string(resp.Data))
		return
	}
	fmt.Println(out.String())
}

// parseCommand turns command-line words into a request.
func parseCommand(args []string) (ipc.Request, error) {
	need := func(n int, usage string) error {
		if len(args) < n+1 {
			return fmt.Errorf("%s requires %s", args[0], usage)
		}
		return nil
	}

	switch args[0] {
	case "press":
		if err := need(1, "a control path"); err != nil {
			return nil, err
		}
		return ipc.SetControl{Path: args[1], X: 1}, nil

	case "release":
		if err := need(1, "a control path"); err != nil {
			return nil, err
		}
		return ipc.SetControl{Path: args[1]}, nil

	case "set":
		if err := need(2, "a control path and a value"); err != nil {
			return nil, err
		}
		x, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", args[2], err)
		}
		r := ipc.SetControl{Path: args[1], X: x}
		if len(args) > 3 {
			y, err := strconv.ParseFloat(args[3], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid y value %q: %w", args[3], err)
			}
			r.Y = y
		}
		return r, nil

	case "enable":
		if err := need(1, "an action name"); err != nil {
			return nil, err
		}
		return ipc.EnableAction{Name: args[1]}, nil

	case "disable":
		if err := need(1, "an action name"); err != nil {
			return nil, err
		}
		return ipc.DisableAction{Name: args[1]}, nil

	case "enable-map":
		return ipc.EnableMap{}, nil

	case "disable-map":
		return ipc.DisableMap{}, nil

	case "settings":
		if err := need(1, "at least one key=value"); err != nil {
			return nil, err
		}
		return parseSettings(args[1:])

	case "state":
		return ipc.GetState{}, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func parseSettings(pairs []string) (ipc.SetSettings, error) {
	var s ipc.SetSettings
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return s, fmt.Errorf("setting %q: want key=value", kv)
		}

		var err error
		switch k {
		case "tap_time_ms":
			s.TapTimeMS, err = intPtr(v)
		case "slow_tap_time_ms":
			s.SlowTapTimeMS, err = intPtr(v)
		case "hold_time_ms":
			s.HoldTimeMS, err = intPtr(v)
		case "multi_tap_delay_ms":
			s.MultiTapDelayMS, err = intPtr(v)
		case "press_point":
			s.PressPoint, err = floatPtr(v)
		case "release_threshold":
			s.ReleaseThreshold, err = floatPtr(v)
		default:
			return s, fmt.Errorf("unknown setting %q", k)
		}
		if err != nil {
			return s, fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return s, nil
}

func intPtr(s string) (*int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func floatPtr(s string) (*float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `actionctl - Control the actiond daemon via IPC

Usage:
  actionctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/actiond.sock)

Commands:
  press <path>              Set a virtual control to 1
  release <path>            Set a virtual control to 0
  set <path> <x> [y]        Set a virtual control value
  enable <action>           Enable an action
  disable <action>          Disable (and reset) an action
  enable-map                Enable every action
  disable-map               Disable every action
  settings key=value...     Change engine defaults (tap_time_ms, slow_tap_time_ms,
                            hold_time_ms, multi_tap_delay_ms, press_point,
                            release_threshold)
  state                     Print action phases and interaction state

Control paths without the daemon's virtual prefix get it prepended.
`)
}
