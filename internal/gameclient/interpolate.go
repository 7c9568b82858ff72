package gameclient

import "github.com/pixelforge/tickengine/internal/wire"

// snapshotRingCapacity bounds how many received snapshots the interpolator
// retains — enough to cover a multi-second connection stall without
// unbounded growth (spec §5).
const snapshotRingCapacity = 60

// SnapshotRing is a bounded, tick-ordered history of received snapshots
// used to interpolate remote entities a few ticks in the past
// (spec §4.7.2, client/interpolation.py).
type SnapshotRing struct {
	snapshots []wire.Snapshot
}

// NewSnapshotRing returns an empty ring.
func NewSnapshotRing() *SnapshotRing {
	return &SnapshotRing{snapshots: make([]wire.Snapshot, 0, snapshotRingCapacity)}
}

// Push appends snap, evicting the oldest entry once at capacity. Snapshots
// must arrive in non-decreasing tick order, matching UDP-in-practice for a
// single sender with no reordering tolerance required here (spec is silent
// on out-of-order snapshots; they're simply appended like the original
// prototype's list).
func (r *SnapshotRing) Push(snap wire.Snapshot) {
	if len(r.snapshots) == snapshotRingCapacity {
		r.snapshots = r.snapshots[1:]
	}
	r.snapshots = append(r.snapshots, snap)
}

// Len returns the number of snapshots currently retained.
func (r *SnapshotRing) Len() int { return len(r.snapshots) }

// Interpolate renders every non-local entity at currentTickEstimate by
// finding the pair of snapshots bracketing that tick and lerping between
// them. Entities present only in the newer snapshot (just spawned) pass
// through verbatim. If no bracketing pair exists, the latest snapshot is
// used as-is. localEntityID is always skipped — the caller renders its own
// entity from its own predicted/reconciled state, not from the snapshot
// history (spec §4.7.2).
func Interpolate(snapshots *SnapshotRing, currentTickEstimate float64, localEntityID uint8) map[uint8]wire.EntityState {
	out := make(map[uint8]wire.EntityState)
	n := len(snapshots.snapshots)
	if n == 0 {
		return out
	}

	older, newer, alpha, found := bracket(snapshots.snapshots, currentTickEstimate)
	if !found {
		latest := snapshots.snapshots[n-1]
		for id, e := range latest.Entities {
			if id == localEntityID {
				continue
			}
			out[id] = e
		}
		return out
	}

	for id, newState := range newer.Entities {
		if id == localEntityID {
			continue
		}
		oldState, existed := older.Entities[id]
		if !existed {
			out[id] = newState
			continue
		}
		out[id] = lerpEntity(oldState, newState, alpha)
	}
	return out
}

func bracket(snapshots []wire.Snapshot, targetTick float64) (older, newer wire.Snapshot, alpha float64, found bool) {
	for i := 0; i < len(snapshots)-1; i++ {
		a, b := snapshots[i], snapshots[i+1]
		if float64(a.Tick) <= targetTick && targetTick <= float64(b.Tick) {
			span := float64(b.Tick - a.Tick)
			if span == 0 {
				return a, b, 0, true
			}
			return a, b, (targetTick - float64(a.Tick)) / span, true
		}
	}
	return wire.Snapshot{}, wire.Snapshot{}, 0, false
}

func lerpEntity(a, b wire.EntityState, alpha float64) wire.EntityState {
	return wire.EntityState{
		EntityID: b.EntityID,
		X:        lerp(a.X, b.X, alpha),
		Y:        lerp(a.Y, b.Y, alpha),
		VX:       b.VX,
		VY:       b.VY,
		Health:   b.Health,
	}
}

func lerp(a, b float32, alpha float64) float32 {
	return a + float32(alpha)*(b-a)
}
