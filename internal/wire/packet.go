package wire

import (
	"encoding/binary"
	"math"
)

// ProtocolID is the magic number ("GAME" in ASCII) stamped at the front of
// every packet, grounded on the original prototype's common/packet.py.
const ProtocolID uint32 = 0x47414D45

// HeaderSize is the fixed size, in bytes, of every packet header.
const HeaderSize = 15

// PacketType identifies the kind of payload a Packet carries.
type PacketType byte

// Packet type tags. Values are part of the wire format and must not change.
const (
	ConnectReq     PacketType = 0x01
	ConnectAck     PacketType = 0x02
	Disconnect     PacketType = 0x03
	Input          PacketType = 0x04
	SnapshotType   PacketType = 0x05
	Ping           PacketType = 0x06
	Pong           PacketType = 0x07
	ReliableEvent  PacketType = 0x08
	Heartbeat      PacketType = 0x09
)

var typeNames = map[PacketType]string{
	ConnectReq:    "CONNECT_REQ",
	ConnectAck:    "CONNECT_ACK",
	Disconnect:    "DISCONNECT",
	Input:         "INPUT",
	SnapshotType:  "SNAPSHOT",
	Ping:          "PING",
	Pong:          "PONG",
	ReliableEvent: "RELIABLE_EVENT",
	Heartbeat:     "HEARTBEAT",
}

// String implements fmt.Stringer for diagnostic logging.
func (t PacketType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}

// Packet is a single datagram of the engine's wire protocol: a fixed header
// followed by a type-dependent payload. Sequence and Ack are uint16 and
// AckBitfield is uint32, so each field always fits its wire width and a
// value converted into Sequence wraps at 2^16 (spec invariant: sequence
// wraps at 2^16).
type Packet struct {
	Sequence   uint16
	Ack        uint16
	AckBitfield uint32
	Type       PacketType
	Payload    []byte
}

// NewPacket builds a Packet. Sequence and Ack are already 16-bit values by
// type, so no masking is needed for the wire format.
func NewPacket(typ PacketType, sequence, ack uint16, ackBitfield uint32, payload []byte) Packet {
	return Packet{
		Sequence:    sequence,
		Ack:         ack,
		AckBitfield: ackBitfield,
		Type:        typ,
		Payload:     payload,
	}
}

// Serialize encodes the packet to its wire representation: big-endian
// header fields followed by the raw payload bytes.
func (p Packet) Serialize() []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	binary.BigEndian.PutUint32(buf[0:4], ProtocolID)
	binary.BigEndian.PutUint16(buf[4:6], p.Sequence)
	binary.BigEndian.PutUint16(buf[6:8], p.Ack)
	binary.BigEndian.PutUint32(buf[8:12], p.AckBitfield)
	buf[12] = byte(p.Type)
	binary.BigEndian.PutUint16(buf[13:15], uint16(len(p.Payload)))
	copy(buf[HeaderSize:], p.Payload)
	return buf
}

// Deserialize decodes a wire-format buffer into a Packet.
func Deserialize(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, ErrMalformedPacket
	}
	if binary.BigEndian.Uint32(data[0:4]) != ProtocolID {
		return Packet{}, ErrBadProtocol
	}
	plen := binary.BigEndian.Uint16(data[13:15])
	rest := data[HeaderSize:]
	if len(rest) < int(plen) {
		return Packet{}, ErrTruncatedPayload
	}
	payload := make([]byte, plen)
	copy(payload, rest[:plen])
	return Packet{
		Sequence:    binary.BigEndian.Uint16(data[4:6]),
		Ack:         binary.BigEndian.Uint16(data[6:8]),
		AckBitfield: binary.BigEndian.Uint32(data[8:12]),
		Type:        PacketType(data[12]),
		Payload:     payload,
	}, nil
}

// InputSize is the encoded byte size of a single InputRecord.
const InputSize = 4 + 4 + 4 + 1 // sequence u32, move_x f32, move_y f32, actions u8

// InputRecord is one sampled client input, tagged with the client-relative
// input sequence it corresponds to (distinct from the packet sequence in
// the header — see spec GLOSSARY).
type InputRecord struct {
	Sequence uint32
	MoveX    float32
	MoveY    float32
	Actions  uint8
}

// EncodeInput writes an InputRecord in the wire layout:
// sequence(u32) move_x(f32) move_y(f32) actions(u8), big-endian.
func EncodeInput(r InputRecord) []byte {
	buf := make([]byte, InputSize)
	binary.BigEndian.PutUint32(buf[0:4], r.Sequence)
	binary.BigEndian.PutUint32(buf[4:8], math.Float32bits(r.MoveX))
	binary.BigEndian.PutUint32(buf[8:12], math.Float32bits(r.MoveY))
	buf[12] = r.Actions
	return buf
}

// DecodeInput reads a single InputRecord from the front of data. data must
// be at least InputSize bytes.
func DecodeInput(data []byte) InputRecord {
	return InputRecord{
		Sequence: binary.BigEndian.Uint32(data[0:4]),
		MoveX:    math.Float32frombits(binary.BigEndian.Uint32(data[4:8])),
		MoveY:    math.Float32frombits(binary.BigEndian.Uint32(data[8:12])),
		Actions:  data[12],
	}
}

// EncodeInputBurst builds the redundancy-prefixed INPUT payload
// count(u8) | record_1 | ... | record_count used by the client to resend
// its trailing input history so a single lost datagram doesn't lose an
// input (spec §4.6/§4.7 step 4).
func EncodeInputBurst(records []InputRecord) []byte {
	buf := make([]byte, 1, 1+len(records)*InputSize)
	buf[0] = byte(len(records))
	for _, r := range records {
		buf = append(buf, EncodeInput(r)...)
	}
	return buf
}

// DecodeInputBurst parses the redundancy-prefixed INPUT payload produced by
// EncodeInputBurst. Malformed trailing records are ignored rather than
// erroring, matching the server's tolerant drain-loop policy.
func DecodeInputBurst(payload []byte) []InputRecord {
	if len(payload) == 0 {
		return nil
	}
	count := int(payload[0])
	offset := 1
	records := make([]InputRecord, 0, count)
	for i := 0; i < count; i++ {
		if offset+InputSize > len(payload) {
			break
		}
		records = append(records, DecodeInput(payload[offset:offset+InputSize]))
		offset += InputSize
	}
	return records
}

// IsInputBurst reports whether payload is the redundancy-prefixed form
// rather than a single bare InputRecord. The check is length-based per
// spec §9 ("Redundancy detection") — a single legitimate InputSize-byte
// payload is always treated as the bare form.
func IsInputBurst(payload []byte) bool {
	return len(payload) != InputSize
}

// PingSize is the encoded byte size of a ping/pong payload.
const PingSize = 8

// EncodePing encodes a monotonic timestamp as the ping/pong payload.
func EncodePing(timestamp float64) []byte {
	buf := make([]byte, PingSize)
	binary.BigEndian.PutUint64(buf, math.Float64bits(timestamp))
	return buf
}

// DecodePing decodes a ping/pong payload back into its timestamp.
func DecodePing(payload []byte) (float64, bool) {
	if len(payload) < PingSize {
		return 0, false
	}
	return math.Float64frombits(binary.BigEndian.Uint64(payload[:PingSize])), true
}

// ReliableEventPayload is the payload carried by a RELIABLE_EVENT packet —
// supplemented from spec.md's passing mention of a "reliable event channel"
// that the distilled spec never details (see SPEC_FULL.md §3).
type ReliableEventPayload struct {
	EventID uint32
	Kind    uint8
	Data    []byte
}

// EncodeReliableEvent encodes a ReliableEventPayload: event_id(u32) kind(u8)
// data(rest).
func EncodeReliableEvent(p ReliableEventPayload) []byte {
	buf := make([]byte, 5, 5+len(p.Data))
	binary.BigEndian.PutUint32(buf[0:4], p.EventID)
	buf[4] = p.Kind
	buf = append(buf, p.Data...)
	return buf
}

// DecodeReliableEvent decodes a RELIABLE_EVENT payload.
func DecodeReliableEvent(payload []byte) (ReliableEventPayload, bool) {
	if len(payload) < 5 {
		return ReliableEventPayload{}, false
	}
	data := make([]byte, len(payload)-5)
	copy(data, payload[5:])
	return ReliableEventPayload{
		EventID: binary.BigEndian.Uint32(payload[0:4]),
		Kind:    payload[4],
		Data:    data,
	}, true
}
