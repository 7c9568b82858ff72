// Package netsim injects artificial packet loss and latency into an
// otherwise-real UDP socket, for local testing of loss/jitter handling
// without a real lossy network. Grounded on the original prototype's
// common/net.py NetworkSimulator.
package netsim

import (
	"math/rand"
	"net"
	"sync"
	"time"
)

// delayedPacket is a send that has been held back to simulate latency.
type delayedPacket struct {
	data    []byte
	addr    net.Addr
	sendAt  time.Time
}

// Simulator wraps a net.PacketConn and probabilistically drops or delays
// outbound writes before they reach the real socket.
type Simulator struct {
	conn      net.PacketConn
	lossRate  float64
	latency   time.Duration
	rng       *rand.Rand

	mu      sync.Mutex
	delayed []delayedPacket
}

// New wraps conn with the given loss rate (0..1) and one-way latency.
// A lossRate of 0 and latency of 0 makes Simulator a transparent passthrough.
func New(conn net.PacketConn, lossRate float64, latency time.Duration) *Simulator {
	return &Simulator{
		conn:     conn,
		lossRate: lossRate,
		latency:  latency,
		rng:      rand.New(rand.NewSource(1)),
	}
}

// WriteTo simulates sending data to addr: it may be silently dropped per
// lossRate, or queued for release after latency elapses (spec is silent on
// this — supplemented from common/net.py since it's exercised by the
// --loss/--latency CLI flags).
func (s *Simulator) WriteTo(data []byte, addr net.Addr) (int, error) {
	s.mu.Lock()
	drop := s.rng.Float64() < s.lossRate
	s.mu.Unlock()
	if drop {
		return len(data), nil
	}

	if s.latency <= 0 {
		return s.conn.WriteTo(data, addr)
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.delayed = append(s.delayed, delayedPacket{data: cp, addr: addr, sendAt: time.Now().Add(s.latency)})
	s.mu.Unlock()
	return len(data), nil
}

// Flush releases every delayed packet whose latency has elapsed. Callers
// should invoke this once per tick (spec §4.6 step order is silent on
// simulator flushing; this mirrors NetworkSimulator.flush()).
func (s *Simulator) Flush() error {
	now := time.Now()

	s.mu.Lock()
	var ready []delayedPacket
	var pending []delayedPacket
	for _, p := range s.delayed {
		if now.After(p.sendAt) {
			ready = append(ready, p)
		} else {
			pending = append(pending, p)
		}
	}
	s.delayed = pending
	s.mu.Unlock()

	for _, p := range ready {
		if _, err := s.conn.WriteTo(p.data, p.addr); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrom passes through to the wrapped connection unmodified — loss/
// latency simulation only applies to the sending side, matching a real
// network where only the local machine's uplink is under our control.
func (s *Simulator) ReadFrom(buf []byte) (int, net.Addr, error) {
	return s.conn.ReadFrom(buf)
}

// Close closes the wrapped connection.
func (s *Simulator) Close() error { return s.conn.Close() }

// LocalAddr returns the wrapped connection's local address.
func (s *Simulator) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Pending returns the number of packets currently held back by the
// latency queue, for metrics/diagnostics.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delayed)
}
