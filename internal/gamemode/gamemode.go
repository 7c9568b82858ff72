// Package gamemode wires together the world and the event bus, the way the
// teacher repo's core/gamemode.FreeroamGamemode wires players, vehicles,
// and commands into its constructor. Stripped of anything SA-MP-specific
// (vehicles, admin/player commands, spawn point rosters) since this
// engine's domain has no analogue for them — the surviving shape is
// "a gamemode subscribes to connection-lifecycle events and reacts".
package gamemode

import (
	"github.com/pixelforge/tickengine/internal/events"
	"github.com/pixelforge/tickengine/internal/world"
)

// Freeroam is the engine's default (and only) gamemode: entities spawn on
// join at the world's deterministic slot assignment and are removed on
// leave/timeout. It exists as a seam for future gamemode-specific rules
// (respawn delay, scoring, team assignment) without touching gameserver.
type Freeroam struct {
	world *world.State
}

// New constructs a Freeroam gamemode bound to w and subscribes its
// lifecycle handlers on bus.
func New(w *world.State, bus *events.Bus) *Freeroam {
	gm := &Freeroam{world: w}

	bus.Subscribe(events.EntityJoined, gm.onJoin)
	bus.Subscribe(events.EntityLeft, gm.onLeave)
	bus.Subscribe(events.EntityTimedOut, gm.onLeave)

	return gm
}

func (gm *Freeroam) onJoin(ev events.Event) {
	gm.world.AddEntity(ev.EntityID)
}

func (gm *Freeroam) onLeave(ev events.Event) {
	gm.world.RemoveEntity(ev.EntityID)
}
