package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"actionmap/phasews"
)

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3002/phases", "actiond phase feed URL")
		raw   = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			fmt.Println(formatFrame(message))
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// formatFrame renders one feed frame as a single human-readable line.
func formatFrame(message []byte) string {
	var env phasews.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return "[TEXT] " + string(message)
	}

	ts := ""
	if env.Ts != nil {
		ts = env.Ts.Local().Format("15:04:05.000") + " "
	}

	switch env.Type {
	case phasews.TypePhase:
		var p phasews.PhaseData
		if err := json.Unmarshal(env.Data, &p); err != nil {
			break
		}
		line := fmt.Sprintf("%s[PHASE] %-16s %-10s", ts, p.Action, p.Phase)
		if p.Control != "" {
			line += " control=" + p.Control
		}
		if p.Interaction != "" {
			line += fmt.Sprintf(" interaction=%s#%d", p.Interaction, p.Instance)
		}
		return line

	case phasews.TypeStateInit:
		var s phasews.StateInitData
		if err := json.Unmarshal(env.Data, &s); err != nil {
			break
		}
		line := fmt.Sprintf("%s[STATE] %d actions", ts, len(s.Actions))
		for _, a := range s.Actions {
			state := a.Phase.String()
			if !a.Enabled {
				state = "disabled"
			}
			line += fmt.Sprintf("\n  %-16s %s", a.Name, state)
			if len(a.Unbound) > 0 {
				line += fmt.Sprintf(" unbound=%v", a.Unbound)
			}
		}
		return line
	}

	pretty, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "[TEXT] " + string(message)
	}
	return "[" + env.Type + "]\n" + string(pretty)
}
