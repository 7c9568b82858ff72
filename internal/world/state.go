// Package world implements the authoritative game state: the entity store
// and the fixed-timestep physics step applied to it. Grounded on the
// original prototype's server/game_state.py; the Step function here is
// shared verbatim (in spirit) with internal/gameclient's predictor so that
// server and client physics stay bitwise-identical (spec §4.4, §4.7).
package world

import (
	"math"
	"sync"

	"github.com/pixelforge/tickengine/internal/wire"
)

// World bounds and physics constants (spec §6).
const (
	Width       = 800
	Height      = 600
	PlayerSpeed = 200.0 // units/second
)

// State is the single source of truth for the game world: every live
// entity plus the current tick number.
type State struct {
	mu       sync.Mutex
	entities map[uint8]wire.EntityState
	tick     uint32
}

// New returns an empty world.
func New() *State {
	return &State{entities: make(map[uint8]wire.EntityState)}
}

// SetTick publishes the current simulation tick into the world (spec §4.6
// step 2a: "Publish current_tick into the game state").
func (s *State) SetTick(tick uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = tick
}

// Tick returns the current simulation tick.
func (s *State) Tick() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// AddEntity spawns entityID at a deterministic slot when x/y are not
// supplied, and is idempotent if the entity already exists (spec §4.4).
func (s *State) AddEntity(entityID uint8, xy ...float32) wire.EntityState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entities[entityID]; ok {
		return e
	}

	var x, y float32
	if len(xy) >= 2 {
		x, y = xy[0], xy[1]
	} else {
		count := len(s.entities)
		x = float32(100 + (count*150)%(Width-200))
		y = float32(Height) / 2
	}

	e := wire.EntityState{EntityID: entityID, X: x, Y: y, Health: 100}
	s.entities[entityID] = e
	return e
}

// RemoveEntity deletes entityID from the world, if present.
func (s *State) RemoveEntity(entityID uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, entityID)
}

// Has reports whether entityID currently exists in the world.
func (s *State) Has(entityID uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entities[entityID]
	return ok
}

// ApplyInput runs one physics step for entityID (spec §4.4). It is a no-op
// if the entity doesn't exist (e.g. it disconnected between the input
// being queued and the tick that drains it).
func (s *State) ApplyInput(entityID uint8, moveX, moveY float32, actions uint8, dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return
	}
	s.entities[entityID] = Step(e, moveX, moveY, actions, dt)
}

// Snapshot returns a deep copy of the world at its current tick, suitable
// for serialization without observing subsequent mutation (spec §4.4).
func (s *State) Snapshot() wire.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities := make(map[uint8]wire.EntityState, len(s.entities))
	for id, e := range s.entities {
		entities[id] = e
	}
	return wire.Snapshot{Tick: s.tick, Entities: entities}
}

// Step applies one tick of movement physics to e and returns the resulting
// state, clamped to the world rectangle. This is the single function
// shared by the authoritative server (via State.ApplyInput) and the
// client-side predictor (internal/gameclient.Predict) — per spec §9,
// any divergence between the two silently inflates the prediction-error
// metric, so the two callers must invoke exactly this function with the
// same dt, normalization threshold, and clamp bounds.
func Step(e wire.EntityState, moveX, moveY float32, actions uint8, dt float64) wire.EntityState {
	mag := math.Sqrt(float64(moveX)*float64(moveX) + float64(moveY)*float64(moveY))
	if mag > 1.0 {
		moveX = float32(float64(moveX) / mag)
		moveY = float32(float64(moveY) / mag)
	}

	e.VX = moveX * PlayerSpeed
	e.VY = moveY * PlayerSpeed
	e.X += e.VX * float32(dt)
	e.Y += e.VY * float32(dt)

	e.X = clamp(e.X, 0, Width)
	e.Y = clamp(e.Y, 0, Height)

	_ = actions // reserved for future ability use (spec §3)
	return e
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
