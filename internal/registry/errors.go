package registry

import "errors"

// ErrCapacityExhausted is returned by Add when the registry has already
// issued MaxClients ids (spec §4.6, §7).
var ErrCapacityExhausted = errors.New("registry: capacity exhausted")

// ErrSessionNotFound names the case of a packet from an address with no
// session. GetByAddress/GetByID report that case through their ok result,
// and nothing in this package returns this error.
var ErrSessionNotFound = errors.New("registry: session not found")
