package wire

import "testing"

func sampleSnapshot() Snapshot {
	return Snapshot{
		Tick: 99,
		Entities: map[uint8]EntityState{
			1: {EntityID: 1, X: 100, Y: 200, VX: 1, VY: -1, Health: 100},
			2: {EntityID: 2, X: 50, Y: 60, VX: 0, VY: 0, Health: 75.5},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := sampleSnapshot()
	data := s.Serialize()

	got, err := DeserializeSnapshot(data)
	if err != nil {
		t.Fatalf("DeserializeSnapshot() error = %v", err)
	}
	if got.Tick != s.Tick {
		t.Errorf("Tick = %d, want %d", got.Tick, s.Tick)
	}
	if len(got.Entities) != len(s.Entities) {
		t.Fatalf("len(Entities) = %d, want %d", len(got.Entities), len(s.Entities))
	}
	for id, want := range s.Entities {
		if got.Entities[id] != want {
			t.Errorf("Entities[%d] = %+v, want %+v", id, got.Entities[id], want)
		}
	}
}

func TestSnapshotSerializedSize(t *testing.T) {
	s := sampleSnapshot()
	data := s.Serialize()
	want := 5 + 21*len(s.Entities)
	if len(data) != want {
		t.Errorf("len(data) = %d, want %d", len(data), want)
	}
	if s.SerializedSize() != len(data) {
		t.Errorf("SerializedSize() = %d, want %d", s.SerializedSize(), len(data))
	}
}

func TestSnapshotEmpty(t *testing.T) {
	s := Snapshot{Tick: 5, Entities: map[uint8]EntityState{}}
	data := s.Serialize()
	if len(data) != SnapshotHeaderSize {
		t.Errorf("len(data) = %d, want %d", len(data), SnapshotHeaderSize)
	}
	got, err := DeserializeSnapshot(data)
	if err != nil {
		t.Fatalf("DeserializeSnapshot() error = %v", err)
	}
	if len(got.Entities) != 0 {
		t.Errorf("len(Entities) = %d, want 0", len(got.Entities))
	}
}

func TestSnapshotTruncated(t *testing.T) {
	s := sampleSnapshot()
	data := s.Serialize()
	_, err := DeserializeSnapshot(data[:len(data)-1])
	if err != ErrMalformedSnapshot {
		t.Errorf("err = %v, want ErrMalformedSnapshot", err)
	}
}

func TestSnapshotCopyIsIndependent(t *testing.T) {
	s := sampleSnapshot()
	cp := s.Copy()

	e := cp.Entities[1]
	e.X = -1
	cp.Entities[1] = e

	if s.Entities[1].X == -1 {
		t.Error("mutating the copy mutated the original")
	}
}

func TestSnapshotTrailerOffset(t *testing.T) {
	// Mirrors how a receiver locates the server's appended
	// last_processed_input_seq trailer: decode the snapshot, then read 4
	// bytes at SerializedSize().
	s := sampleSnapshot()
	base := s.Serialize()
	trailer := []byte{0, 0, 0, 77}
	payload := append(append([]byte{}, base...), trailer...)

	decoded, err := DeserializeSnapshot(payload)
	if err != nil {
		t.Fatalf("DeserializeSnapshot() error = %v", err)
	}
	offset := decoded.SerializedSize()
	if offset+4 != len(payload) {
		t.Fatalf("offset+4 = %d, want %d", offset+4, len(payload))
	}
	got := uint32(payload[offset])<<24 | uint32(payload[offset+1])<<16 |
		uint32(payload[offset+2])<<8 | uint32(payload[offset+3])
	if got != 77 {
		t.Errorf("trailer = %d, want 77", got)
	}
}
