package driver

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"refclockd/internal/pps"
)

// ServiceConfig wires the driver to a real serial device and a poll cadence.
type ServiceConfig struct {
	// Device is the receiver's serial device path.
	Device string
	// Baud must be a rate the platform implementation supports. Zero
	// means 115200.
	Baud int
	// PollInterval drives the watchdog and the hardware edge fetch. Zero
	// means one second.
	PollInterval time.Duration

	Driver Config
}

// Service owns one receiver instance end to end: it opens the serial port,
// builds the driver, and serializes the two external triggers ("bytes
// arrived" and "poll tick") onto a single dispatch goroutine so the driver
// core never needs locks.
type Service struct {
	cfg    ServiceConfig
	source pps.Source
	sink   TimeSink

	mu     sync.Mutex
	cancel context.CancelFunc
	runCtx context.Context
	closer io.Closer
	drv    *Driver
	wg     sync.WaitGroup

	reconfig chan reconfigRequest
}

type reconfigRequest struct {
	edge             pps.EdgeKind
	kernelDiscipline bool
	reply            chan error
}

var openSerialFn = func(path string, baud int) (io.ReadWriteCloser, error) {
	return openSerial(path, baud)
}

func NewService(cfg ServiceConfig, source pps.Source, sink TimeSink) *Service {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Service{
		cfg:      cfg,
		source:   source,
		sink:     sink,
		reconfig: make(chan reconfigRequest),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("driver service is nil")
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	f, err := openSerialFn(s.cfg.Device, s.cfg.Baud)
	if err != nil {
		return fmt.Errorf("open receiver %s baud=%d: %w", s.cfg.Device, s.cfg.Baud, err)
	}

	d, err := New(s.cfg.Driver, f, s.source, s.sink)
	if err != nil {
		_ = f.Close()
		return err
	}
	s.drv = d
	s.closer = f

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runCtx = childCtx

	log.Printf("driver: receiver device=%s baud=%d poll=%s edge=%s",
		s.cfg.Device, s.cfg.Baud, s.cfg.PollInterval, s.cfg.Driver.Edge)

	// Reads block on the serial fd, so they live on their own goroutine;
	// the bytes are handed to the dispatch loop to keep mutation
	// single-threaded.
	bytesCh := make(chan []byte, 16)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(bytesCh)
		buf := make([]byte, 512)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				p := make([]byte, n)
				copy(p, buf[:n])
				select {
				case bytesCh <- p:
				case <-childCtx.Done():
					return
				}
			}
			if err != nil {
				if childCtx.Err() == nil {
					log.Printf("driver: receiver read stopped: %v", err)
				}
				return
			}
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// If this loop ever exits, pending Reconfigure callers must fail
		// fast instead of blocking on an unserviced channel.
		defer cancel()
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-childCtx.Done():
				return
			case p, ok := <-bytesCh:
				if !ok {
					// Reader is gone. Stay up: the watchdog keeps firing
					// timeouts and the control path keeps answering.
					bytesCh = nil
					continue
				}
				d.OnBytesReceived(p)
			case <-ticker.C:
				d.OnPollTick()
			case req := <-s.reconfig:
				req.reply <- d.OnReconfigure(req.edge, req.kernelDiscipline)
			}
		}
	}()

	return nil
}

// Reconfigure switches the timestamped edge at runtime. The request is
// executed on the dispatch goroutine.
func (s *Service) Reconfigure(edge pps.EdgeKind, kernelDiscipline bool) error {
	s.mu.Lock()
	runCtx := s.runCtx
	running := s.cancel != nil
	s.mu.Unlock()
	if !running {
		return fmt.Errorf("driver service not running")
	}

	req := reconfigRequest{edge: edge, kernelDiscipline: kernelDiscipline, reply: make(chan error, 1)}
	select {
	case s.reconfig <- req:
	case <-runCtx.Done():
		return fmt.Errorf("driver service stopped")
	}
	select {
	case err := <-req.reply:
		return err
	case <-runCtx.Done():
		return fmt.Errorf("driver service stopped")
	}
}

// Snapshot returns the driver's latest diagnostics view.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	d := s.drv
	s.mu.Unlock()
	if d == nil {
		return Snapshot{Device: s.cfg.Device, Baud: s.cfg.Baud}
	}
	snap := d.Snapshot()
	snap.Device = s.cfg.Device
	snap.Baud = s.cfg.Baud
	return snap
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}
