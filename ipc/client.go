package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Send delivers one request and waits for its response. A response with
// status "error" is returned as an error.
func Send(socketPath string, r Request) (Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, ReplyTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * ReplyTimeout))

	data, err := MarshalRequest(r)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != StatusOK {
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}
	return resp, nil
}
