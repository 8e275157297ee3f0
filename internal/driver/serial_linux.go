//go:build linux

package driver

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Rates the receiver's binary interface runs at. The low NMEA-era speeds
// cannot carry the message stream plus a once-per-second time mark.
var baudFlags = map[int]uint32{
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
}

// openSerial opens the receiver's serial port in raw mode. The receiver
// talks a binary word protocol, so every byte must come through untouched.
func openSerial(path string, baud int) (*os.File, error) {
	spd, ok := baudFlags[baud]
	if !ok {
		return nil, fmt.Errorf("receiver does not run at %d baud", baud)
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}

	opened := false
	defer func() {
		if !opened {
			_ = unix.Close(fd)
		}
	}()

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8

	// Return as soon as a byte is available, give up after a second so the
	// reader loop can notice a dead port.
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 10

	t.Cflag &^= unix.CBAUD
	t.Cflag |= spd
	t.Ispeed = spd
	t.Ospeed = spd

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return nil, err
	}

	f := os.NewFile(uintptr(fd), path)
	if f == nil {
		return nil, fmt.Errorf("os.NewFile failed")
	}
	opened = true
	return f, nil
}
