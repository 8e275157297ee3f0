//go:build !linux

package pps

import "fmt"

// OpenDevice is Linux-only; PPS devices are a Linux kernel facility.
func OpenDevice(path string, edge EdgeKind, kernelDiscipline bool) (Source, error) {
	return nil, fmt.Errorf("pps: device source not supported on this platform")
}

// OpenGPIO is Linux-only; GPIO edge events require the GPIO character device.
func OpenGPIO(chip string, offset int, edge EdgeKind) (Source, error) {
	return nil, fmt.Errorf("pps: gpio source not supported on this platform")
}
