// Package ack implements the per-peer sequence and acknowledgement
// tracking described in spec §4.3, grounded on the original prototype's
// common/net.py AckTracker and restructured after the teacher's
// Session bookkeeping in source/protocol/raknet.go.
package ack

import "time"

// MaxAge is the default staleness threshold used by DetectLostPackets.
const MaxAge = 1 * time.Second

// Tracker holds one peer's sequence/ack bookkeeping: the sequence we hand
// out locally, the latest sequence we've heard from the peer, the 32-bit
// bitfield acking the 32 sequences before that, and loss/acked bookkeeping
// for outbound packets we've sent.
type Tracker struct {
	localSequence  uint16
	remoteSequence uint16
	ackBitfield    uint32

	sentAt map[uint16]time.Time
	acked  map[uint16]struct{}
	lost   map[uint16]struct{}

	totalSent     uint64
	totalReceived uint64
	totalAcked    uint64
	totalLost     uint64

	now func() time.Time
}

// New returns a Tracker ready to use.
func New() *Tracker {
	return &Tracker{
		sentAt: make(map[uint16]time.Time),
		acked:  make(map[uint16]struct{}),
		lost:   make(map[uint16]struct{}),
		now:    time.Now,
	}
}

// RemoteSequence returns the latest sequence observed from the peer —
// callers use this (plus AckBitfield) to fill the outgoing packet header.
func (t *Tracker) RemoteSequence() uint16 { return t.remoteSequence }

// AckBitfield returns the current outgoing ack bitfield.
func (t *Tracker) AckBitfield() uint32 { return t.ackBitfield }

// NextSequence pre-increments and returns the next local outgoing
// sequence, wrapping at 2^16, and bumps the sent counter (spec §4.3).
func (t *Tracker) NextSequence() uint16 {
	t.localSequence++
	t.totalSent++
	return t.localSequence
}

// OnPacketSent records that a packet with the given sequence was handed to
// the transport, so DetectLostPackets can later judge its age.
func (t *Tracker) OnPacketSent(seq uint16) {
	t.sentAt[seq] = t.now()
}

// OnPacketReceived updates remote-sequence/ack-bitfield state for an
// incoming packet's header sequence (spec §4.3).
func (t *Tracker) OnPacketReceived(remoteSeq uint16) {
	t.totalReceived++
	if remoteSeq == 0 {
		return
	}
	if sequenceGreaterThan(remoteSeq, t.remoteSequence) {
		d := remoteSeq - t.remoteSequence
		if d <= 32 {
			t.ackBitfield = (t.ackBitfield << d) | 1
		} else {
			t.ackBitfield = 1
		}
		t.remoteSequence = remoteSeq
	} else {
		d := t.remoteSequence - remoteSeq
		if d > 0 && d <= 32 {
			t.ackBitfield |= 1 << d
		}
	}
}

// OnAckReceived marks ack, and every sequence the bitfield's set bits
// reference, as acknowledged — removing them from the in-flight set
// (spec §4.3: "ack − 1 − i mod 2^16 for every set bit i").
func (t *Tracker) OnAckReceived(ackSeq uint16, bitfield uint32) {
	if ackSeq > 0 {
		t.markAcked(ackSeq)
	}
	for i := uint32(0); i < 32; i++ {
		if bitfield&(1<<i) == 0 {
			continue
		}
		past := ackSeq - 1 - uint16(i)
		if past > 0 {
			t.markAcked(past)
		}
	}
}

// IsAcked reports whether seq has been acknowledged by the peer — used by
// the reliable-event channel to decide whether a retransmission is still
// needed (spec's supplemented RELIABLE_EVENT channel, unlike inputs/
// snapshots, does get retransmitted).
func (t *Tracker) IsAcked(seq uint16) bool {
	_, ok := t.acked[seq]
	return ok
}

func (t *Tracker) markAcked(seq uint16) {
	if _, ok := t.acked[seq]; ok {
		return
	}
	t.acked[seq] = struct{}{}
	t.totalAcked++
	delete(t.sentAt, seq)
}

// DetectLostPackets moves every in-flight sequence older than maxAge into
// the lost set and returns the newly-lost sequences. Loss detection is a
// metrics-only signal — there is no NACK/retransmission channel for
// inputs or snapshots (spec §4.3).
func (t *Tracker) DetectLostPackets(maxAge time.Duration) []uint16 {
	now := t.now()
	var lost []uint16
	for seq, sentAt := range t.sentAt {
		if _, ok := t.acked[seq]; ok {
			delete(t.sentAt, seq)
			continue
		}
		if now.Sub(sentAt) > maxAge {
			lost = append(lost, seq)
			t.lost[seq] = struct{}{}
			t.totalLost++
			delete(t.sentAt, seq)
		}
	}
	return lost
}

// LossRate returns total_lost / (total_acked + total_lost), or 0 if that
// denominator is zero (spec §9 open question: convention when nothing has
// yet been acked or declared lost).
func (t *Tracker) LossRate() float64 {
	total := t.totalAcked + t.totalLost
	if total == 0 {
		return 0
	}
	return float64(t.totalLost) / float64(total)
}

// TotalSent, TotalReceived, TotalAcked, and TotalLost expose the cumulative
// counters for metrics reporting.
func (t *Tracker) TotalSent() uint64     { return t.totalSent }
func (t *Tracker) TotalReceived() uint64 { return t.totalReceived }
func (t *Tracker) TotalAcked() uint64    { return t.totalAcked }
func (t *Tracker) TotalLost() uint64     { return t.totalLost }

// InFlight returns the number of sent-but-not-yet-acked/lost packets
// currently tracked.
func (t *Tracker) InFlight() int { return len(t.sentAt) }

// sequenceGreaterThan implements the circular sequence comparison required
// by spec invariant 5: s1 > s2 iff (s1>s2 && s1-s2<=2^15) or (s1<s2 &&
// s2-s1>2^15).
func sequenceGreaterThan(s1, s2 uint16) bool {
	return (s1 > s2 && s1-s2 <= 32768) || (s1 < s2 && s2-s1 > 32768)
}
