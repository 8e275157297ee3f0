//go:build linux

package pps

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Kernel PPS ABI (linux/pps.h). The ioctl numbers are derived from the
// struct sizes so they stay correct across layout-compatible platforms.
type ppsKTime struct {
	Sec   int64
	Nsec  int32
	Flags uint32
}

type ppsKInfo struct {
	AssertSequence uint32
	ClearSequence  uint32
	AssertTu       ppsKTime
	ClearTu        ppsKTime
	CurrentMode    int32
}

type ppsKParams struct {
	APIVersion  int32
	Mode        int32
	AssertOffTu ppsKTime
	ClearOffTu  ppsKTime
}

type ppsFData struct {
	Info    ppsKInfo
	Timeout ppsKTime
}

type ppsBindArgs struct {
	TSFormat int32
	Edge     int32
	Consumer int32
}

// Capture mode bits.
const (
	ppsCaptureAssert = 0x01
	ppsCaptureClear  = 0x02
	ppsOffsetAssert  = 0x10
	ppsOffsetClear   = 0x20
	ppsCanWait       = 0x100
	ppsTSFmtTSpec    = 0x1000

	ppsKCHardPPS = 0
)

const (
	iocWrite    = 1
	iocRead     = 2
	ppsIocMagic = 'p'
)

func ppsIoc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | ppsIocMagic<<8 | nr
}

var (
	ppsGetParams = ppsIoc(iocRead, 0xa1, unsafe.Sizeof(ppsKParams{}))
	ppsSetParams = ppsIoc(iocWrite, 0xa2, unsafe.Sizeof(ppsKParams{}))
	ppsGetCap    = ppsIoc(iocRead, 0xa3, unsafe.Sizeof(int32(0)))
	ppsFetch     = ppsIoc(iocRead|iocWrite, 0xa4, unsafe.Sizeof(ppsFData{}))
	ppsKCBind    = ppsIoc(iocWrite, 0xa5, unsafe.Sizeof(ppsBindArgs{}))
)

// Device is a Source backed by a kernel PPS character device.
type Device struct {
	f    *os.File
	path string
	cap  int32
	edge EdgeKind
}

// OpenDevice opens a /dev/ppsN device and programs it to capture the given
// edge. With kernelDiscipline set, edge processing is additionally bound to
// the kernel hardpps path; this has no effect on samples returned here.
func OpenDevice(path string, edge EdgeKind, kernelDiscipline bool) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("pps: open %s: %w", path, err)
	}
	d := &Device{f: f, path: path}

	if err := d.ioctl(ppsGetCap, unsafe.Pointer(&d.cap)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("pps: getcap %s: %w", path, err)
	}
	if err := d.Configure(edge, kernelDiscipline); err != nil {
		_ = f.Close()
		return nil, err
	}
	return d, nil
}

// Configure reprograms the captured edge and the kernel discipline binding.
func (d *Device) Configure(edge EdgeKind, kernelDiscipline bool) error {
	var mode int32
	switch edge {
	case EdgeAssert:
		mode = d.cap & ppsCaptureAssert
	case EdgeClear:
		mode = d.cap & ppsCaptureClear
	}
	if mode&(ppsCaptureAssert|ppsCaptureClear) == 0 {
		return fmt.Errorf("pps: %s cannot capture %s edges (cap 0x%x)", d.path, edge, d.cap)
	}
	mode |= ppsTSFmtTSpec

	params := ppsKParams{Mode: mode}
	if err := d.ioctl(ppsSetParams, unsafe.Pointer(&params)); err != nil {
		return fmt.Errorf("pps: setparams %s: %w", d.path, err)
	}
	d.edge = edge

	if kernelDiscipline {
		bind := ppsBindArgs{
			TSFormat: ppsTSFmtTSpec,
			Edge:     mode &^ ppsTSFmtTSpec,
			Consumer: ppsKCHardPPS,
		}
		if err := d.ioctl(ppsKCBind, unsafe.Pointer(&bind)); err != nil {
			return fmt.Errorf("pps: kernel consumer bind %s: %w", d.path, err)
		}
	}
	return nil
}

// FetchLatest performs a zero-timeout fetch: the kernel returns the current
// event counts immediately instead of waiting for the next edge.
func (d *Device) FetchLatest() (Sample, bool, error) {
	var fd ppsFData
	if err := d.ioctl(ppsFetch, unsafe.Pointer(&fd)); err != nil {
		return Sample{}, false, fmt.Errorf("pps: fetch %s: %w", d.path, err)
	}

	var seq uint32
	var tu ppsKTime
	switch d.edge {
	case EdgeClear:
		seq = fd.Info.ClearSequence
		tu = fd.Info.ClearTu
	default:
		seq = fd.Info.AssertSequence
		tu = fd.Info.AssertTu
	}
	if seq == 0 && tu.Sec == 0 && tu.Nsec == 0 {
		// Nothing captured since the device came up.
		return Sample{}, false, nil
	}
	return Sample{Sec: tu.Sec, Nsec: tu.Nsec, Sequence: seq, Edge: d.edge}, true, nil
}

func (d *Device) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

func (d *Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
