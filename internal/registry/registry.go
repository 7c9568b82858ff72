// Package registry tracks connected clients: the bijection between client
// id and transport address, per-client pending-input queues and ack
// trackers, and timeout-based eviction. Grounded on the original
// prototype's server/client_manager.py, restructured after the teacher's
// Session map in source/server/server.go.
package registry

import (
	"net"
	"sync"
	"time"

	"github.com/pixelforge/tickengine/internal/ack"
	"github.com/pixelforge/tickengine/internal/wire"
)

// DefaultTimeout is the default idle duration after which a client session
// is evicted (spec §6).
const DefaultTimeout = 10 * time.Second

// MaxClients bounds how many distinct sessions a registry will ever issue
// ids to. Client ids are a single wire byte (spec §3), so the id space
// itself caps capacity at 255 — ids are never reused once issued, so this
// also bounds the lifetime total of sessions a server can serve.
const MaxClients = 255

// Client is one connected peer's session state.
type Client struct {
	ID      uint8
	Addr    *net.UDPAddr
	Tracker *ack.Tracker

	mu                   sync.Mutex
	connectedAt           time.Time
	lastHeard            time.Time
	lastProcessedInputSeq uint32
	pendingInputs         []wire.InputRecord
	bytesSent             uint64
	bytesReceived         uint64

	now func() time.Time
}

// Touch records that a packet was just received from this client.
func (c *Client) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHeard = c.now()
}

// IsTimedOut reports whether the client has been silent longer than d.
func (c *Client) IsTimedOut(d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.lastHeard) > d
}

// QueueInput appends an input record to this client's pending queue,
// skipping it if its sequence has already been processed or already
// queued — the redundancy scheme (spec §4.1, §9) means the same input
// typically arrives several times across consecutive packets.
func (c *Client) QueueInput(in wire.InputRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if in.Sequence <= c.lastProcessedInputSeq {
		return
	}
	for _, p := range c.pendingInputs {
		if p.Sequence == in.Sequence {
			return
		}
	}
	c.pendingInputs = append(c.pendingInputs, in)
}

// DrainInputs returns and clears every pending input in arrival order, for
// application during the next simulation tick. Inputs are applied in the
// order they arrived, not renumbered by sequence (spec §4.6 step 2b, §5
// Ordering).
func (c *Client) DrainInputs() []wire.InputRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	drained := c.pendingInputs
	c.pendingInputs = nil
	return drained
}

// LastProcessedInputSeq returns the highest input sequence applied so far,
// sent back to the client in the snapshot trailer (spec §4.2, §4.6).
func (c *Client) LastProcessedInputSeq() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastProcessedInputSeq
}

// AdvanceLastProcessedInputSeq raises the watermark to seq if seq is newer.
func (c *Client) AdvanceLastProcessedInputSeq(seq uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.lastProcessedInputSeq {
		c.lastProcessedInputSeq = seq
	}
}

// AddBytesSent/AddBytesReceived accumulate bandwidth counters for metrics.
func (c *Client) AddBytesSent(n int)     { c.mu.Lock(); c.bytesSent += uint64(n); c.mu.Unlock() }
func (c *Client) AddBytesReceived(n int) { c.mu.Lock(); c.bytesReceived += uint64(n); c.mu.Unlock() }

// BandwidthKbps divides the client's cumulative send/receive byte totals by
// elapsed and returns them as kilobits per second; it returns 0, 0 when
// elapsed is not positive.
func (c *Client) BandwidthKbps(elapsed time.Duration) (sentKbps, recvKbps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed <= 0 {
		return 0, 0
	}
	secs := elapsed.Seconds()
	return float64(c.bytesSent*8) / 1000 / secs, float64(c.bytesReceived*8) / 1000 / secs
}

// BandwidthKbpsSinceConnect is BandwidthKbps measured over this session's
// entire lifetime, since bytesSent/bytesReceived are cumulative counters
// that are never reset — the lifetime window is the only one that stays
// accurate across repeated calls (e.g. one per periodic stats tick).
func (c *Client) BandwidthKbpsSinceConnect() (sentKbps, recvKbps float64) {
	return c.BandwidthKbps(c.now().Sub(c.connectedAt))
}

// Registry is the set of connected clients, keyed by client id and by
// transport address.
type Registry struct {
	mu        sync.Mutex
	byID      map[uint8]*Client
	byAddr    map[string]*Client
	nextID    uint8
	issued    int
	now       func() time.Time
}

// New returns an empty registry. Client ids start at 1 and increase
// monotonically (spec §3 invariant 1).
func New() *Registry {
	return &Registry{
		byID:   make(map[uint8]*Client),
		byAddr: make(map[string]*Client),
		nextID: 1,
		now:    time.Now,
	}
}

// GetByAddress returns the client bound to addr, if any.
func (r *Registry) GetByAddress(addr *net.UDPAddr) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byAddr[addr.String()]
	return c, ok
}

// GetByID returns the client with the given id, if any.
func (r *Registry) GetByID(id uint8) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	return c, ok
}

// HasAddress reports whether addr already has a session.
func (r *Registry) HasAddress(addr *net.UDPAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byAddr[addr.String()]
	return ok
}

// Add registers a new client at addr and returns its freshly assigned
// session. Calling Add for an address that already has a session returns
// the existing one, so a duplicate CONNECT is idempotent (spec §4.5).
// Add returns ErrCapacityExhausted once the registry has already issued
// MaxClients ids (spec §4.6, §7), and creates no session in that case.
func (r *Registry) Add(addr *net.UDPAddr) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, existed := r.byAddr[addr.String()]; existed {
		return c, nil
	}
	if r.issued >= MaxClients {
		return nil, ErrCapacityExhausted
	}

	id := r.nextID
	r.nextID++
	r.issued++

	c := &Client{
		ID:          id,
		Addr:        addr,
		Tracker:     ack.New(),
		connectedAt: r.now(),
		lastHeard:   r.now(),
		now:         r.now,
	}
	r.byID[id] = c
	r.byAddr[addr.String()] = c
	return c, nil
}

// Remove evicts a client session.
func (r *Registry) Remove(id uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byAddr, c.Addr.String())
}

// CheckTimeouts returns the ids of every client whose session has been
// idle longer than timeout, without removing them — callers decide
// whether/when to evict (spec §4.6).
func (r *Registry) CheckTimeouts(timeout time.Duration) []uint8 {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.byID))
	for _, c := range r.byID {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	var timedOut []uint8
	for _, c := range clients {
		if c.IsTimedOut(timeout) {
			timedOut = append(timedOut, c.ID)
		}
	}
	return timedOut
}

// All returns every currently connected client.
func (r *Registry) All() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// Count returns the number of connected clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
