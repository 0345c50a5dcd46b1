package world

import (
	"errors"
	"math"
)

// Validation failures carry a reason instead of a bare boolean so callers
// can tell a malformed argument from an unknown name. The Lua export
// surface collapses these back to the boolean contract.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownGroup    = errors.New("unknown group")
	ErrUnknownAccount  = errors.New("unknown account")
	ErrUnknownJob      = errors.New("unknown job")
	ErrUnknownRank     = errors.New("unknown job rank")
	ErrUnknownStatus   = errors.New("unknown status")
	ErrNotRegistered   = errors.New("session not registered")
)

// Coords is a world transform: position plus heading.
type Coords struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
	Heading float64 `json:"heading"`
}

// Valid reports whether every component is a finite number.
func (c Coords) Valid() bool {
	for _, v := range [...]float64{c.X, c.Y, c.Z, c.Heading} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CharacterData is the persisted world-state blob. Decoded into a typed
// struct and validated on load rather than trusted as opaque JSON.
type CharacterData struct {
	Coords Coords `json:"coords"`
}

// JobData is the player's current employment.
type JobData struct {
	Name   string `json:"name"`
	Rank   int    `json:"rank"`
	OnDuty bool   `json:"onDuty"`
}

// StatusLevel is one vital statistic. Value stays in [0,100] after every
// status mutator.
type StatusLevel struct {
	Value float64 `json:"value"`
}

// Record carries the raw storage representation of one character: the
// JSONB blob columns plus the account-row fields. The entity decodes it
// on load and re-encodes it for the persistence bridge.
type Record struct {
	Accounts   []byte
	Appearance []byte
	CharData   []byte
	Identity   []byte
	Inventory  []byte
	Job        []byte
	Status     []byte
	Group      string
	Slots      int
}

// Actor is the game engine's world-actor boundary: read and write the
// live transform of a session's actor.
type Actor interface {
	Transform(sessionID uint64) (Coords, bool)
	Warp(sessionID uint64, c Coords)
}

// Notifier is the outbound client notification channel. Delivery is
// best-effort: no acknowledgement, no retry, no backpressure.
type Notifier interface {
	CharacterLoaded(sessionID uint64, snapshot map[string]any)
	StatusSync(sessionID uint64, status map[string]StatusLevel)
	PermissionsChanged(sessionID uint64, group string)
}

func clampStatus(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
