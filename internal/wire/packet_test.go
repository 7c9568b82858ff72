package wire

import (
	"bytes"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	p := NewPacket(Input, 42, 7, 0xF0F0F0F0, []byte{1, 2, 3, 4})

	data := p.Serialize()
	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if got.Sequence != p.Sequence {
		t.Errorf("Sequence = %d, want %d", got.Sequence, p.Sequence)
	}
	if got.Ack != p.Ack {
		t.Errorf("Ack = %d, want %d", got.Ack, p.Ack)
	}
	if got.AckBitfield != p.AckBitfield {
		t.Errorf("AckBitfield = 0x%08X, want 0x%08X", got.AckBitfield, p.AckBitfield)
	}
	if got.Type != p.Type {
		t.Errorf("Type = %v, want %v", got.Type, p.Type)
	}
	if !bytes.Equal(got.Payload, p.Payload) {
		t.Errorf("Payload = %v, want %v", got.Payload, p.Payload)
	}
}

func TestHeaderConstants(t *testing.T) {
	if HeaderSize != 15 {
		t.Errorf("HeaderSize = %d, want 15", HeaderSize)
	}
	if ProtocolID != 0x47414D45 {
		t.Errorf("ProtocolID = 0x%08X, want 0x47414D45", ProtocolID)
	}
}

func TestSequenceWraps(t *testing.T) {
	seq := 0x10000
	p := NewPacket(Heartbeat, uint16(seq), 0, 0, nil)
	if p.Sequence != 0 {
		t.Errorf("Sequence = %d, want 0 (wrap at 2^16)", p.Sequence)
	}
}

func TestDeserializeShortBuffer(t *testing.T) {
	_, err := Deserialize(make([]byte, HeaderSize-1))
	if err != ErrMalformedPacket {
		t.Errorf("err = %v, want ErrMalformedPacket", err)
	}
}

func TestDeserializeBadProtocol(t *testing.T) {
	data := NewPacket(Ping, 1, 0, 0, nil).Serialize()
	data[0] ^= 0xFF // corrupt the protocol id
	_, err := Deserialize(data)
	if err != ErrBadProtocol {
		t.Errorf("err = %v, want ErrBadProtocol", err)
	}
}

func TestDeserializeTruncatedPayload(t *testing.T) {
	data := NewPacket(Input, 1, 0, 0, []byte{1, 2, 3, 4}).Serialize()
	data = data[:len(data)-2] // chop off part of the payload
	_, err := Deserialize(data)
	if err != ErrTruncatedPayload {
		t.Errorf("err = %v, want ErrTruncatedPayload", err)
	}
}

func TestInputRoundTrip(t *testing.T) {
	rec := InputRecord{Sequence: 123, MoveX: 0.5, MoveY: -1.0, Actions: 7}
	got := DecodeInput(EncodeInput(rec))
	if got != rec {
		t.Errorf("got %+v, want %+v", got, rec)
	}
}

func TestInputBurstRoundTrip(t *testing.T) {
	records := []InputRecord{
		{Sequence: 1, MoveX: 1, MoveY: 0, Actions: 0},
		{Sequence: 2, MoveX: 0, MoveY: 1, Actions: 1},
		{Sequence: 3, MoveX: -1, MoveY: -1, Actions: 0},
	}
	payload := EncodeInputBurst(records)

	if !IsInputBurst(payload) {
		t.Error("IsInputBurst() = false, want true for a 3-record burst")
	}

	got := DecodeInputBurst(payload)
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record[%d] = %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestIsInputBurstBareForm(t *testing.T) {
	payload := EncodeInput(InputRecord{Sequence: 1})
	if IsInputBurst(payload) {
		t.Error("IsInputBurst() = true for a bare InputSize-byte payload")
	}
}

func TestPingRoundTrip(t *testing.T) {
	payload := EncodePing(12345.6789)
	got, ok := DecodePing(payload)
	if !ok {
		t.Fatal("DecodePing() ok = false")
	}
	if got != 12345.6789 {
		t.Errorf("got %v, want %v", got, 12345.6789)
	}
}

func TestReliableEventRoundTrip(t *testing.T) {
	p := ReliableEventPayload{EventID: 9, Kind: 2, Data: []byte("hi")}
	got, ok := DecodeReliableEvent(EncodeReliableEvent(p))
	if !ok {
		t.Fatal("DecodeReliableEvent() ok = false")
	}
	if got.EventID != p.EventID || got.Kind != p.Kind || !bytes.Equal(got.Data, p.Data) {
		t.Errorf("got %+v, want %+v", got, p)
	}
}
