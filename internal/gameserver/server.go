// Package gameserver is the authoritative tick-based server loop: receive
// packets, drain and apply inputs, advance the simulation, broadcast
// snapshots. Grounded on the original prototype's server/server.py
// GameServer, restructured after the teacher's source/server/server.go
// (bind → spawn loop goroutines → dispatch by packet type → graceful
// shutdown) but generalized from SA-MP's packet set onto this engine's
// wire protocol.
package gameserver

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelforge/tickengine/internal/ack"
	"github.com/pixelforge/tickengine/internal/events"
	"github.com/pixelforge/tickengine/internal/registry"
	"github.com/pixelforge/tickengine/internal/telemetry"
	"github.com/pixelforge/tickengine/internal/wire"
	"github.com/pixelforge/tickengine/internal/world"
)

// Conn is the subset of net.PacketConn the server needs, satisfied by
// *net.UDPConn directly and by *netsim.Simulator when loss/latency
// injection is enabled.
type Conn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	Close() error
	LocalAddr() net.Addr
}

// maxPacketsPerTick bounds how many inbound packets a single tick will
// drain from the receive channel before moving on to simulation — the Go
// analogue of the original prototype's 1000-iteration non-blocking-recv
// safety bound (server.py receive_all_packets), adapted to a channel-fed
// receive goroutine instead of a non-blocking socket poll.
const maxPacketsPerTick = 1000

// statsInterval is how often logStats samples loss/bandwidth, matching the
// original prototype's server.py stats_interval default.
const statsInterval = 5 * time.Second

type inboundPacket struct {
	addr *net.UDPAddr
	pkt  wire.Packet
	n    int
}

// Server is the authoritative tick-based game server.
type Server struct {
	conn     Conn
	registry *registry.Registry
	world    *world.State
	bus      *events.Bus
	metrics  *telemetry.Metrics
	recorder *telemetry.Recorder
	log      zerolog.Logger

	tickRate      int
	dt            time.Duration
	clientTimeout time.Duration

	reliable *reliableTracker

	inbound chan inboundPacket
	done    chan struct{}
}

// New constructs a Server bound to conn. When conn also has a Flush method
// (as *netsim.Simulator does under loss/latency injection), runTick calls
// it once per tick.
func New(conn Conn, tickRate int, clientTimeout time.Duration, logger zerolog.Logger) *Server {
	return &Server{
		conn:          conn,
		registry:      registry.New(),
		world:         world.New(),
		bus:           events.New(),
		metrics:       telemetry.NewMetrics(),
		recorder:      telemetry.NewRecorder(),
		log:           logger,
		tickRate:      tickRate,
		dt:            time.Second / time.Duration(tickRate),
		clientTimeout: clientTimeout,
		reliable:      newReliableTracker(),
		inbound:       make(chan inboundPacket, maxPacketsPerTick),
		done:          make(chan struct{}),
	}
}

// Bus exposes the server's event bus so a gamemode can subscribe to it.
func (s *Server) Bus() *events.Bus { return s.bus }

// World exposes the authoritative world, e.g. for a gamemode to read/seed it.
func (s *Server) World() *world.State { return s.world }

// Metrics exposes the server's Prometheus registry, e.g. for a caller to
// serve it over HTTP.
func (s *Server) Metrics() *telemetry.Metrics { return s.metrics }

// Recorder exposes the server's raw-sample recorder, e.g. for a caller to
// persist periodic summaries to disk.
func (s *Server) Recorder() *telemetry.Recorder { return s.recorder }

// Run drives the fixed-timestep loop until ctx is cancelled: receive →
// drain inputs → simulate → broadcast, with catch-up ticks if the loop
// falls behind wall-clock, matching server.py's run() semantics.
func (s *Server) Run(ctx context.Context) error {
	go s.receiveLoop(ctx)

	ticker := time.NewTicker(s.dt)
	defer ticker.Stop()

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	nextTick := time.Now().Add(s.dt)
	tick := uint32(0)

	for {
		select {
		case <-ctx.Done():
			close(s.done)
			return nil
		case <-statsTicker.C:
			s.logStats()
		case <-ticker.C:
			now := time.Now()
			for now.After(nextTick) || now.Equal(nextTick) {
				start := time.Now()
				tick++
				s.runTick(tick)
				s.recorder.LogTickDuration(float64(time.Since(start).Microseconds()) / 1000.0)
				s.metrics.TickDuration.Observe(time.Since(start).Seconds())
				nextTick = nextTick.Add(s.dt)
			}
		}
	}
}

func (s *Server) runTick(tick uint32) {
	s.drainInbound()
	s.world.SetTick(tick)
	s.applyPendingInputs()
	s.checkTimeouts(tick)
	s.retransmitReliable()
	s.broadcastSnapshots(tick)
	s.flushSimulator()
}

// flusher is satisfied by *netsim.Simulator; checked via type assertion so
// Server stays decoupled from netsim when no simulation is configured.
type flusher interface {
	Flush() error
}

// flushSimulator releases any outbound packets netsim is holding back for
// simulated latency. A no-op unless conn wraps a *netsim.Simulator.
func (s *Server) flushSimulator() {
	f, ok := s.conn.(flusher)
	if !ok {
		return
	}
	if err := f.Flush(); err != nil {
		s.log.Debug().Err(err).Msg("netsim flush failed")
	}
}

func (s *Server) receiveLoop(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		udpAddr, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		pkt, err := wire.Deserialize(buf[:n])
		if err != nil {
			s.log.Debug().Err(err).Msg("dropping malformed packet")
			continue
		}

		select {
		case s.inbound <- inboundPacket{addr: udpAddr, pkt: pkt, n: n}:
		default:
			s.log.Warn().Msg("inbound queue full, dropping packet")
		}
	}
}

func (s *Server) drainInbound() {
	for i := 0; i < maxPacketsPerTick; i++ {
		select {
		case in := <-s.inbound:
			s.handlePacket(in)
		default:
			return
		}
	}
}

func (s *Server) handlePacket(in inboundPacket) {
	client, existed := s.registry.GetByAddress(in.addr)
	if existed {
		client.Touch()
		client.AddBytesReceived(in.n)
		client.Tracker.OnPacketReceived(in.pkt.Sequence)
	}

	switch in.pkt.Type {
	case wire.ConnectReq:
		s.handleConnect(in.addr)
	case wire.Input:
		if client != nil {
			s.handleInput(client, in.pkt.Payload)
		}
	case wire.Ping:
		if client != nil {
			s.handlePing(client, in.pkt.Payload)
		}
	case wire.Disconnect:
		if client != nil {
			s.handleDisconnect(client)
		}
	case wire.ReliableEvent:
		if client != nil {
			s.handleClientReliableEvent(client, in.pkt.Payload)
		}
	}

	// Acks ride piggybacked on every packet header, not as their own
	// packet type (spec §4.2/§4.3) — apply them regardless of which type
	// just arrived.
	if client != nil {
		client.Tracker.OnAckReceived(in.pkt.Ack, in.pkt.AckBitfield)
	}
}

// handleConnect is idempotent: a duplicate CONNECT from an already-known
// address just resends the CONNECT_ACK (spec §4.5). A CONNECT_REQ that
// would exceed the registry's capacity is silently dropped — no session
// is created and no CONNECT_ACK is sent (spec §4.6, §7 CapacityExhausted:
// session-level errors never escape the loop).
func (s *Server) handleConnect(addr *net.UDPAddr) {
	existed := s.registry.HasAddress(addr)
	client, err := s.registry.Add(addr)
	if err != nil {
		s.log.Warn().Err(err).Str("addr", addr.String()).Msg("connect rejected")
		return
	}

	if !existed {
		s.world.AddEntity(client.ID)
		s.bus.Publish(events.Event{Type: events.EntityJoined, EntityID: client.ID})
		s.metrics.ConnectedClients.Set(float64(s.registry.Count()))
		s.log.Info().Uint8("entity_id", client.ID).Str("addr", addr.String()).Msg("client connected")
		s.broadcastReliableEvent(reliableKindEntityJoined, client.ID, client.ID)
	}

	s.sendTo(client, wire.ConnectAck, []byte{client.ID})
}

// reliableKindEntityJoined/reliableKindEntityLeft tag a RELIABLE_EVENT
// broadcast on the connection-lifecycle channel — a discrete notification
// a periodic snapshot diff can't reliably carry (SPEC_FULL.md §3).
const (
	reliableKindEntityJoined uint8 = 1
	reliableKindEntityLeft   uint8 = 2
)

// broadcastReliableEvent reliably notifies every connected client except
// exceptID of a lifecycle change, e.g. so a peer's gamemode/HUD learns of
// a join/leave without waiting on the next snapshot.
func (s *Server) broadcastReliableEvent(kind uint8, entityID uint8, exceptID uint8) {
	for _, client := range s.registry.All() {
		if client.ID == exceptID {
			continue
		}
		s.SendReliableEvent(client, kind, []byte{entityID})
	}
}

// handleInput decodes either a bare InputRecord or a redundancy burst
// (detected by payload length, spec §9) and queues every record whose
// sequence hasn't already been applied.
func (s *Server) handleInput(client *registry.Client, payload []byte) {
	var records []wire.InputRecord
	if wire.IsInputBurst(payload) {
		records = wire.DecodeInputBurst(payload)
	} else if len(payload) >= wire.InputSize {
		records = []wire.InputRecord{wire.DecodeInput(payload)}
	}
	for _, r := range records {
		client.QueueInput(r)
	}
}

func (s *Server) handlePing(client *registry.Client, payload []byte) {
	ts, ok := wire.DecodePing(payload)
	if !ok {
		return
	}
	s.sendTo(client, wire.Pong, wire.EncodePing(ts))
}

func (s *Server) handleDisconnect(client *registry.Client) {
	s.evict(client, events.EntityLeft)
}

// handleClientReliableEvent decodes an inbound RELIABLE_EVENT (e.g. a chat
// message or an ability activation that must not be silently dropped like
// an input sample can be) and republishes it on the bus for a gamemode to
// react to. Retransmission is only the sender's concern, so an inbound
// event needs no ack bookkeeping beyond the header ack already applied in
// handlePacket.
func (s *Server) handleClientReliableEvent(client *registry.Client, payload []byte) {
	ev, ok := wire.DecodeReliableEvent(payload)
	if !ok {
		return
	}
	s.bus.Publish(events.Event{Type: events.ReliableEventAcked, EntityID: client.ID, Data: ev})
}

func (s *Server) applyPendingInputs() {
	for _, client := range s.registry.All() {
		var maxSeq uint32
		for _, in := range client.DrainInputs() {
			s.world.ApplyInput(client.ID, in.MoveX, in.MoveY, in.Actions, s.dt.Seconds())
			if in.Sequence > maxSeq {
				maxSeq = in.Sequence
			}
			s.metrics.InputsReceived.Inc()
		}
		if maxSeq > 0 {
			client.AdvanceLastProcessedInputSeq(maxSeq)
		}
	}
}

func (s *Server) checkTimeouts(tick uint32) {
	for _, id := range s.registry.CheckTimeouts(s.clientTimeout) {
		client, ok := s.registry.GetByID(id)
		if !ok {
			continue
		}
		s.evict(client, events.EntityTimedOut)
	}
}

func (s *Server) evict(client *registry.Client, reason events.Type) {
	s.registry.Remove(client.ID)
	s.world.RemoveEntity(client.ID)
	s.bus.Publish(events.Event{Type: reason, EntityID: client.ID})
	s.reliable.dropClient(client.ID)
	s.metrics.ConnectedClients.Set(float64(s.registry.Count()))
	s.log.Info().Uint8("entity_id", client.ID).Str("reason", reason.String()).Msg("client disconnected")
	s.broadcastReliableEvent(reliableKindEntityLeft, client.ID, client.ID)
}

// broadcastSnapshots sends the current world snapshot to every connected
// client, with that client's last_processed_input_seq appended as a
// trailer so its reconciler knows how far to rebase (spec §4.2, §4.6).
func (s *Server) broadcastSnapshots(tick uint32) {
	snap := s.world.Snapshot()
	base := snap.Serialize()

	for _, client := range s.registry.All() {
		trailer := encodeUint32(client.LastProcessedInputSeq())
		payload := append(append([]byte{}, base...), trailer...)
		s.sendTo(client, wire.SnapshotType, payload)
		s.metrics.SnapshotsSent.Inc()
	}
}

func (s *Server) sendTo(client *registry.Client, typ wire.PacketType, payload []byte) {
	seq := client.Tracker.NextSequence()
	pkt := wire.NewPacket(typ, seq, client.Tracker.RemoteSequence(), client.Tracker.AckBitfield(), payload)
	data := pkt.Serialize()

	client.Tracker.OnPacketSent(seq)
	n, err := s.conn.WriteTo(data, client.Addr)
	if err != nil {
		s.log.Debug().Err(err).Uint8("entity_id", client.ID).Msg("send failed")
		return
	}
	client.AddBytesSent(n)
}

func (s *Server) logStats() {
	clients := s.registry.All()

	var lossSum, totalSentKbps, totalRecvKbps float64
	for _, client := range clients {
		rate := client.Tracker.LossRate()
		lossSum += rate
		s.recorder.LogPacketLoss(rate)
		s.metrics.PacketLossRate.Set(rate)

		if lost := client.Tracker.DetectLostPackets(ack.MaxAge); len(lost) > 0 {
			s.metrics.PacketsLost.Add(float64(len(lost)))
		}

		sentKbps, recvKbps := client.BandwidthKbpsSinceConnect()
		totalSentKbps += sentKbps
		totalRecvKbps += recvKbps
	}

	var meanLoss float64
	if len(clients) > 0 {
		meanLoss = lossSum / float64(len(clients))
	}
	totalKbps := totalSentKbps + totalRecvKbps
	s.recorder.LogBandwidth(totalKbps)
	s.metrics.BandwidthSentBps.Set(totalSentKbps * 1000)
	s.metrics.BandwidthRecvBps.Set(totalRecvKbps * 1000)

	s.log.Info().
		Int("clients", len(clients)).
		Uint32("tick", s.world.Tick()).
		Msg(telemetry.PlainStatusLine(len(clients), "", meanLoss, totalKbps))
}

func encodeUint32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
