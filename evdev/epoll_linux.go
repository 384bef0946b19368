//go:build linux

package evdev

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ReadEventsEpoll reads from all files in one goroutine using epoll.
// Events are tagged with the index of their file in files. Any device error
// or hangup ends the loop and is reported on readErr.
func ReadEventsEpoll(files []*os.File, events chan<- DeviceEvent, readErr chan<- error) {
	if len(files) == 0 {
		readErr <- errors.New("no input devices provided")
		return
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		readErr <- fmt.Errorf("epoll_create1: %w", err)
		return
	}
	defer unix.Close(epfd)

	fdIndex := make(map[int32]int, len(files))
	for i, f := range files {
		fd := int(f.Fd())
		fdIndex[int32(fd)] = i
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			readErr <- fmt.Errorf("epoll_ctl_add %s: %w", f.Name(), err)
			return
		}
	}

	const maxEvents = 32
	ready := make([]unix.EpollEvent, maxEvents)
	// evdev hands out whole events; read several per wakeup
	buf := make([]byte, eventSize*64)
	reader := bytes.NewReader(nil)

	for {
		n, err := unix.EpollWait(epfd, ready, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			readErr <- fmt.Errorf("epoll_wait: %w", err)
			return
		}

		for i := 0; i < n; i++ {
			idx := fdIndex[ready[i].Fd]
			f := files[idx]

			if ready[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				readErr <- fmt.Errorf("device error/hangup: %s", f.Name())
				return
			}

			got, err := f.Read(buf)
			if err != nil {
				readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
				return
			}

			for off := 0; off+eventSize <= got; off += eventSize {
				reader.Reset(buf[off : off+eventSize])
				var ev Event
				if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
					continue
				}
				events <- DeviceEvent{Device: idx, Event: ev}
			}
		}
	}
}
