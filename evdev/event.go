package evdev

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"
)

// Event is one Linux input event.
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type Event struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// Time is the kernel timestamp of the event.
func (ev Event) Time() time.Time {
	return time.Unix(ev.Sec, ev.Usec*int64(time.Microsecond))
}

// DeviceEvent tags an event with the index of the device it was read from.
type DeviceEvent struct {
	Device int
	Event
}

var eventSize = binary.Size(Event{})

// ReadEvents reads events from r until it fails and sends them to events.
// The read error (io.EOF included) is sent to readErr. Runs in its own goroutine.
func ReadEvents(r io.Reader, device int, events chan<- DeviceEvent, readErr chan<- error) {
	buf := make([]byte, eventSize)
	reader := bytes.NewReader(buf)

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev Event
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			continue
		}
		events <- DeviceEvent{Device: device, Event: ev}
	}
}
