package wire

import "encoding/binary"

// EntitySize is the encoded byte size of a single EntityState record.
const EntitySize = 1 + 4 + 4 + 4 + 4 + 4 // entity_id u8, x y vx vy health f32

// SnapshotHeaderSize is the encoded byte size of a Snapshot's tick+count
// header, before any entity records.
const SnapshotHeaderSize = 4 + 1 // tick u32, entity_count u8

// EntityState is one entity's replicated state, as carried in a Snapshot.
type EntityState struct {
	EntityID uint8
	X, Y     float32
	VX, VY   float32
	Health   float32
}

// Copy returns a value copy of e. EntityState has no reference fields, so
// this is equivalent to `e2 := e`; it exists to mirror Snapshot.Copy and the
// original prototype's EntityState.copy().
func (e EntityState) Copy() EntityState { return e }

// Snapshot is the authoritative world state at a given tick: the set of
// live entities and the tick they were captured at.
type Snapshot struct {
	Tick     uint32
	Entities map[uint8]EntityState
}

// Copy returns a deep copy of the snapshot so that later mutation of the
// source (e.g. the next simulation step) cannot be observed through it —
// required by spec §4.4 ("snapshot() returns a deep copy").
func (s Snapshot) Copy() Snapshot {
	entities := make(map[uint8]EntityState, len(s.Entities))
	for id, e := range s.Entities {
		entities[id] = e
	}
	return Snapshot{Tick: s.Tick, Entities: entities}
}

// SerializedSize returns the byte length Serialize would produce for s,
// without encoding it — used by a receiver to locate the trailer the
// server appends after the snapshot bytes (spec §4.2).
func (s Snapshot) SerializedSize() int {
	return SnapshotHeaderSize + len(s.Entities)*EntitySize
}

// Serialize encodes the snapshot: tick(u32) entity_count(u8) followed by
// entity_count entity-state records, in ascending entity-id order so the
// encoding is deterministic.
func (s Snapshot) Serialize() []byte {
	ids := make([]uint8, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sortUint8s(ids)

	buf := make([]byte, SnapshotHeaderSize, s.SerializedSize())
	binary.BigEndian.PutUint32(buf[0:4], s.Tick)
	buf[4] = byte(len(ids))

	for _, id := range ids {
		e := s.Entities[id]
		var rec [EntitySize]byte
		rec[0] = e.EntityID
		binary.BigEndian.PutUint32(rec[1:5], floatBits(e.X))
		binary.BigEndian.PutUint32(rec[5:9], floatBits(e.Y))
		binary.BigEndian.PutUint32(rec[9:13], floatBits(e.VX))
		binary.BigEndian.PutUint32(rec[13:17], floatBits(e.VY))
		binary.BigEndian.PutUint32(rec[17:21], floatBits(e.Health))
		buf = append(buf, rec[:]...)
	}
	return buf
}

// DeserializeSnapshot decodes a snapshot payload as produced by Serialize.
// It does NOT consume the server's trailing last_processed_input_seq field
// (spec §4.2) — callers read Snapshot.SerializedSize() bytes worth and then
// decode the 4-byte trailer themselves.
func DeserializeSnapshot(data []byte) (Snapshot, error) {
	if len(data) < SnapshotHeaderSize {
		return Snapshot{}, ErrMalformedSnapshot
	}
	tick := binary.BigEndian.Uint32(data[0:4])
	count := int(data[4])

	offset := SnapshotHeaderSize
	entities := make(map[uint8]EntityState, count)
	for i := 0; i < count; i++ {
		if offset+EntitySize > len(data) {
			return Snapshot{}, ErrMalformedSnapshot
		}
		rec := data[offset : offset+EntitySize]
		e := EntityState{
			EntityID: rec[0],
			X:        floatFromBits(binary.BigEndian.Uint32(rec[1:5])),
			Y:        floatFromBits(binary.BigEndian.Uint32(rec[5:9])),
			VX:       floatFromBits(binary.BigEndian.Uint32(rec[9:13])),
			VY:       floatFromBits(binary.BigEndian.Uint32(rec[13:17])),
			Health:   floatFromBits(binary.BigEndian.Uint32(rec[17:21])),
		}
		entities[e.EntityID] = e
		offset += EntitySize
	}
	return Snapshot{Tick: tick, Entities: entities}, nil
}

// sortUint8s sorts a small slice of entity ids in place. Entity counts are
// bounded by a single byte (spec: entity_count is u8), so an insertion sort
// avoids pulling in sort.Slice's reflection overhead for what is always a
// tiny, already-near-sorted set of client ids.
func sortUint8s(ids []uint8) {
	for i := 1; i < len(ids); i++ {
		v := ids[i]
		j := i - 1
		for j >= 0 && ids[j] > v {
			ids[j+1] = ids[j]
			j--
		}
		ids[j+1] = v
	}
}
