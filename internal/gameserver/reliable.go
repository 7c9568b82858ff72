package gameserver

import (
	"sync"
	"time"

	"github.com/pixelforge/tickengine/internal/config"
	"github.com/pixelforge/tickengine/internal/registry"
	"github.com/pixelforge/tickengine/internal/wire"
)

// pendingReliable is one outstanding RELIABLE_EVENT send awaiting ack.
type pendingReliable struct {
	packetSeq uint16
	payload   []byte
	attempts  int
	lastSent  time.Time
}

// reliableTracker retries RELIABLE_EVENT sends per client until acked or
// RELIABLE_MAX_RETRIES is exhausted — the one packet type in this protocol
// that isn't fire-and-forget like inputs/snapshots (spec's supplemented
// reliable-event channel, common/config.py's RELIABLE_MAX_RETRIES/
// RELIABLE_RETRY_INTERVAL).
type reliableTracker struct {
	mu      sync.Mutex
	pending map[uint8]map[uint32]*pendingReliable
	nextID  uint32
}

func newReliableTracker() *reliableTracker {
	return &reliableTracker{pending: make(map[uint8]map[uint32]*pendingReliable)}
}

func (r *reliableTracker) dropClient(clientID uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, clientID)
}

// SendReliableEvent queues a reliable event for clientID and sends its
// first attempt immediately.
func (s *Server) SendReliableEvent(client *registry.Client, kind uint8, data []byte) {
	s.reliable.mu.Lock()
	eventID := s.reliable.nextID
	s.reliable.nextID++
	if s.reliable.pending[client.ID] == nil {
		s.reliable.pending[client.ID] = make(map[uint32]*pendingReliable)
	}
	payload := wire.EncodeReliableEvent(wire.ReliableEventPayload{EventID: eventID, Kind: kind, Data: data})
	s.reliable.mu.Unlock()

	s.sendReliable(client, eventID, payload)
}

func (s *Server) sendReliable(client *registry.Client, eventID uint32, payload []byte) {
	seq := client.Tracker.NextSequence()
	pkt := wire.NewPacket(wire.ReliableEvent, seq, client.Tracker.RemoteSequence(), client.Tracker.AckBitfield(), payload)
	data := pkt.Serialize()
	client.Tracker.OnPacketSent(seq)

	if _, err := s.conn.WriteTo(data, client.Addr); err != nil {
		s.log.Debug().Err(err).Msg("reliable event send failed")
	}

	s.reliable.mu.Lock()
	bucket := s.reliable.pending[client.ID]
	if bucket == nil {
		bucket = make(map[uint32]*pendingReliable)
		s.reliable.pending[client.ID] = bucket
	}
	p, ok := bucket[eventID]
	if !ok {
		p = &pendingReliable{payload: payload}
		bucket[eventID] = p
	}
	p.packetSeq = seq
	p.attempts++
	p.lastSent = time.Now()
	s.reliable.mu.Unlock()
}

// retransmitReliable runs once per tick: any pending reliable event whose
// packet has been acked is removed; any whose retry interval has elapsed
// and still has attempts left is resent on a fresh sequence.
func (s *Server) retransmitReliable() {
	s.reliable.mu.Lock()
	type resend struct {
		client  uint8
		eventID uint32
		payload []byte
	}
	var toResend []resend
	var toDrop []struct {
		client  uint8
		eventID uint32
	}

	for clientID, bucket := range s.reliable.pending {
		client, ok := s.registry.GetByID(clientID)
		if !ok {
			continue
		}
		for eventID, p := range bucket {
			if client.Tracker.IsAcked(p.packetSeq) {
				toDrop = append(toDrop, struct {
					client  uint8
					eventID uint32
				}{clientID, eventID})
				continue
			}
			if time.Since(p.lastSent) < config.ReliableRetryInterval {
				continue
			}
			if p.attempts >= config.ReliableMaxRetries {
				toDrop = append(toDrop, struct {
					client  uint8
					eventID uint32
				}{clientID, eventID})
				continue
			}
			toResend = append(toResend, resend{clientID, eventID, p.payload})
		}
	}
	for _, d := range toDrop {
		delete(s.reliable.pending[d.client], d.eventID)
	}
	s.reliable.mu.Unlock()

	for _, r := range toResend {
		client, ok := s.registry.GetByID(r.client)
		if !ok {
			continue
		}
		s.sendReliable(client, r.eventID, r.payload)
	}
}
