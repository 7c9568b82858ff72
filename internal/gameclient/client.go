// Client loop: connect, send redundant input bursts, receive and
// reconcile snapshots, interpolate remote entities, and round-trip pings
// for RTT/jitter metrics. Grounded on the original prototype's
// client/client.py GameClient, restructured after the teacher's Session
// update loop in source/protocol/raknet.go.
package gameclient

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelforge/tickengine/internal/ack"
	"github.com/pixelforge/tickengine/internal/telemetry"
	"github.com/pixelforge/tickengine/internal/wire"
)

// PredictionSmoothing and ReconciliationSmoothing are the lerp factors the
// original prototype applies to avoid a visible snap when a correction
// lands: 0.5 while predicting ahead of the last confirmed state, 0.3 when
// blending a post-reconciliation correction onto the render position
// (client/client.py _handle_snapshot / predict_local).
const (
	PredictionSmoothing    = 0.5
	ReconciliationSmoothing = 0.3
)

// Conn is the subset of net.Conn the client needs against its connected
// UDP socket.
type Conn interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// Client is one connected player's local game loop state.
type Client struct {
	conn Conn
	log  zerolog.Logger

	entityID   uint8
	connected  bool
	tracker    *ack.Tracker
	nextInputSeq uint32

	localState     wire.EntityState
	renderState    wire.EntityState
	haveLocalState bool
	pendingInputs  []PendingInput
	snapshots      *SnapshotRing

	lastPingSent time.Time
	recorder     *telemetry.Recorder
	metrics      *telemetry.Metrics
}

// New constructs a Client bound to a connected socket.
func New(conn Conn, logger zerolog.Logger) *Client {
	return &Client{
		conn:      conn,
		log:       logger,
		tracker:   ack.New(),
		snapshots: NewSnapshotRing(),
		recorder:  telemetry.NewRecorder(),
		metrics:   telemetry.NewMetrics(),
	}
}

// Connect sends CONNECT_REQ. The caller is responsible for retrying at
// ConnectRetryInterval until HandleConnectAck marks the client connected
// (spec §4.7, common/config.py's CONNECT_RETRY_INTERVAL).
func (c *Client) Connect() error {
	seq := c.tracker.NextSequence()
	pkt := wire.NewPacket(wire.ConnectReq, seq, 0, 0, nil)
	_, err := c.conn.Write(pkt.Serialize())
	c.tracker.OnPacketSent(seq)
	return err
}

// Connected reports whether CONNECT_ACK has been received.
func (c *Client) Connected() bool { return c.connected }

// EntityID returns the id the server assigned on connect.
func (c *Client) EntityID() uint8 { return c.entityID }

// HandleConnectAck records the assigned entity id and marks the session
// connected. Safe to call more than once (spec §4.5's idempotent ack).
func (c *Client) HandleConnectAck(payload []byte) {
	if len(payload) < 1 {
		return
	}
	c.entityID = payload[0]
	c.connected = true
}

// SendInput predicts moveX/moveY/actions locally, queues it as a pending
// input for later reconciliation, and sends a redundancy burst containing
// this input plus the previous redundancy-1 inputs so a single lost
// datagram doesn't lose the sample (spec §4.7 step 4, §9).
func (c *Client) SendInput(moveX, moveY float32, actions uint8, dt float64, redundancy int) error {
	c.nextInputSeq++
	record := wire.InputRecord{Sequence: c.nextInputSeq, MoveX: moveX, MoveY: moveY, Actions: actions}

	predicted := Predict(c.localState, record, dt)
	c.localState = predicted
	c.renderState = lerpEntity(c.renderState, predicted, PredictionSmoothing)

	c.pendingInputs = append(c.pendingInputs, PendingInput{Record: record, PredictedState: predicted})

	burst := c.redundancyBurst(redundancy)
	seq := c.tracker.NextSequence()
	pkt := wire.NewPacket(wire.Input, seq, c.tracker.RemoteSequence(), c.tracker.AckBitfield(), wire.EncodeInputBurst(burst))
	_, err := c.conn.Write(pkt.Serialize())
	c.tracker.OnPacketSent(seq)
	return err
}

func (c *Client) redundancyBurst(redundancy int) []wire.InputRecord {
	n := len(c.pendingInputs)
	if n > redundancy {
		n = redundancy
	}
	burst := make([]wire.InputRecord, n)
	for i := 0; i < n; i++ {
		burst[i] = c.pendingInputs[len(c.pendingInputs)-n+i].Record
	}
	return burst
}

// HandleSnapshot decodes a SNAPSHOT payload (including its
// last_processed_input_seq trailer), pushes it into the interpolation
// history, and reconciles local prediction against it when the snapshot
// contains this client's own entity (spec §4.6, §4.7.1).
func (c *Client) HandleSnapshot(payload []byte, dt float64) (predictionError float64, err error) {
	snap, err := wire.DeserializeSnapshot(payload)
	if err != nil {
		return 0, err
	}
	offset := snap.SerializedSize()
	var lastProcessed uint32
	if len(payload) >= offset+4 {
		trailer := payload[offset : offset+4]
		lastProcessed = uint32(trailer[0])<<24 | uint32(trailer[1])<<16 | uint32(trailer[2])<<8 | uint32(trailer[3])
	}

	c.snapshots.Push(snap)

	serverState, ok := snap.Entities[c.entityID]
	if !ok {
		return 0, nil
	}

	// On the very first snapshot there is nothing to reconcile against yet:
	// adopt the server's spawn state directly so the client's first rendered
	// position matches the server's spawn exactly, instead of smoothing in
	// from the zero-value render state (client/client.py _handle_snapshot).
	if !c.haveLocalState {
		c.localState = serverState
		c.renderState = serverState
		c.haveLocalState = true
		return 0, nil
	}

	corrected, remaining, predErr := Reconcile(serverState, lastProcessed, c.pendingInputs, dt)
	c.pendingInputs = remaining
	c.localState = corrected
	c.renderState = lerpEntity(c.renderState, corrected, ReconciliationSmoothing)
	c.recorder.LogPredictionError(predErr)
	c.metrics.PredictionError.Observe(predErr)
	return predErr, nil
}

// RemoteEntities returns every non-local entity, interpolated to
// currentTickEstimate ticks (spec §4.7.2).
func (c *Client) RemoteEntities(currentTickEstimate float64) map[uint8]wire.EntityState {
	return Interpolate(c.snapshots, currentTickEstimate, c.entityID)
}

// LocalRenderState returns the smoothed local entity state for rendering.
func (c *Client) LocalRenderState() wire.EntityState { return c.renderState }

// SendPing emits a PING carrying the current monotonic time, for RTT/
// jitter measurement on the matching PONG (spec §9).
func (c *Client) SendPing(now time.Time) error {
	c.lastPingSent = now
	seq := c.tracker.NextSequence()
	pkt := wire.NewPacket(wire.Ping, seq, c.tracker.RemoteSequence(), c.tracker.AckBitfield(), wire.EncodePing(float64(now.UnixNano())/1e9))
	_, err := c.conn.Write(pkt.Serialize())
	c.tracker.OnPacketSent(seq)
	return err
}

// HandlePong computes the round-trip time for the matching ping and
// records it (plus smoothed jitter) into the recorder.
func (c *Client) HandlePong(payload []byte, now time.Time) (rtt float64, ok bool) {
	sentAt, ok := wire.DecodePing(payload)
	if !ok {
		return 0, false
	}
	rtt = float64(now.UnixNano())/1e9 - sentAt
	jitter := c.recorder.LogRTT(rtt)
	c.metrics.RTT.Observe(rtt)
	c.metrics.Jitter.Set(jitter)
	return rtt, true
}

// Disconnect sends a DISCONNECT notification to the server.
func (c *Client) Disconnect() error {
	seq := c.tracker.NextSequence()
	pkt := wire.NewPacket(wire.Disconnect, seq, c.tracker.RemoteSequence(), c.tracker.AckBitfield(), nil)
	_, err := c.conn.Write(pkt.Serialize())
	c.tracker.OnPacketSent(seq)
	c.connected = false
	return err
}

// ObserveInbound feeds an inbound packet's header into the ack tracker:
// every packet the client receives, regardless of type, advances the
// remote sequence/bitfield this client echoes back on its next send and
// applies whatever acks the sender piggybacked (spec §4.3/§4.6 "the
// session's ack tracker consumes the header's sequence", mirrored from
// gameserver.Server.handlePacket's identical bookkeeping on the server
// side). Callers must invoke this once per inbound packet, before
// dispatching by type — otherwise RemoteSequence/AckBitfield never move
// off zero and the server can never tell a RELIABLE_EVENT was received.
func (c *Client) ObserveInbound(pkt wire.Packet) {
	c.tracker.OnPacketReceived(pkt.Sequence)
	c.tracker.OnAckReceived(pkt.Ack, pkt.AckBitfield)
}

// HandleReliableEvent decodes an inbound RELIABLE_EVENT payload. Acking it
// back to the sender happens implicitly via ObserveInbound (a reliable
// event's packet sequence rides the same header every other packet type
// uses, spec's supplemented reliable-event channel) — this just exposes
// the decoded payload to the caller.
func (c *Client) HandleReliableEvent(payload []byte) (wire.ReliableEventPayload, bool) {
	return wire.DecodeReliableEvent(payload)
}

// Tracker exposes the client's ack tracker for metrics/diagnostics.
func (c *Client) Tracker() *ack.Tracker { return c.tracker }

// Recorder exposes the client's metrics recorder.
func (c *Client) Recorder() *telemetry.Recorder { return c.recorder }

// Metrics exposes the client's Prometheus registry, e.g. for a caller to
// serve it over HTTP.
func (c *Client) Metrics() *telemetry.Metrics { return c.metrics }
