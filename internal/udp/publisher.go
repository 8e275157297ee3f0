// Package udp delivers corrected timestamps to the host's clock-filtering
// subsystem as compact JSON datagrams.
package udp

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"refclockd/internal/clock"
)

type udpConn interface {
	io.Writer
	io.Closer
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

type Publisher struct {
	dest string
	conn udpConn
}

func NewPublisher(dest string) (*Publisher, error) {
	return newPublisher(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newPublisher(dest string, resolve resolveFunc, dial dialFunc) (*Publisher, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Publisher{dest: dest, conn: conn}, nil
}

// sample is the on-the-wire shape of one delivered timestamp.
type sample struct {
	UnixSeconds int64  `json:"unix_seconds"`
	Fraction    uint32 `json:"fraction"`
	UTC         string `json:"utc"`
}

// Publish sends one corrected timestamp.
func (p *Publisher) Publish(ts clock.CorrectedTimestamp) error {
	b, err := json.Marshal(sample{
		UnixSeconds: ts.UnixSeconds,
		Fraction:    ts.Fraction,
		UTC:         ts.Time().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}
	if _, err := p.conn.Write(b); err != nil {
		return fmt.Errorf("send sample: %w", err)
	}
	return nil
}

// Deliver implements the driver's TimeSink. Send failures are advisory: a
// dropped datagram must not stall the driver.
func (p *Publisher) Deliver(ts clock.CorrectedTimestamp) {
	if err := p.Publish(ts); err != nil {
		log.Printf("udp: %v", err)
	}
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
