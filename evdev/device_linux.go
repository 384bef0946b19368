//go:build linux

package evdev

import (
	"bytes"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding from <asm-generic/ioctl.h>
const (
	iocRead      = 2
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func eviocgname(size int) uintptr {
	return ioc(iocRead, 'E', 0x06, uintptr(size))
}

func eviocgabs(code uint16) uintptr {
	return ioc(iocRead, 'E', 0x40+uintptr(code), unsafe.Sizeof(AbsInfo{}))
}

// Open opens an evdev node and builds its Device, reading the device name and
// the ranges of every known absolute axis it reports.
func Open(path, prefix string) (*os.File, *Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	fd := f.Fd()

	name := path
	buf := make([]byte, 256)
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, eviocgname(len(buf)), uintptr(unsafe.Pointer(&buf[0]))); errno == 0 {
		if i := bytes.IndexByte(buf, 0); i > 0 {
			name = string(buf[:i])
		}
	}

	dev := NewDevice(name, prefix)
	for _, code := range absCodes {
		var info AbsInfo
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, eviocgabs(code), uintptr(unsafe.Pointer(&info)))
		if errno != 0 {
			continue
		}
		dev.SetAbsInfo(code, info)
	}
	return f, dev, nil
}

// OpenAll opens every path. On failure the already opened files are closed.
func OpenAll(paths []string, prefix string) ([]*os.File, []*Device, error) {
	files := make([]*os.File, 0, len(paths))
	devs := make([]*Device, 0, len(paths))
	for _, p := range paths {
		f, d, err := Open(p, prefix)
		if err != nil {
			for _, f := range files {
				f.Close()
			}
			return nil, nil, fmt.Errorf("open input device %s: %w", p, err)
		}
		files = append(files, f)
		devs = append(devs, d)
	}
	return files, devs, nil
}
