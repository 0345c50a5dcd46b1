package world

// ActorTable is the in-process implementation of the Actor boundary: the
// authoritative live transform of every spawned actor, keyed by session.
// Single-goroutine access only (game loop).
type ActorTable struct {
	transforms map[uint64]Coords
}

func NewActorTable() *ActorTable {
	return &ActorTable{transforms: make(map[uint64]Coords)}
}

// Transform returns the live transform of a session's actor.
func (t *ActorTable) Transform(sessionID uint64) (Coords, bool) {
	c, ok := t.transforms[sessionID]
	return c, ok
}

// Warp repositions an actor, spawning its entry if needed.
func (t *ActorTable) Warp(sessionID uint64, c Coords) {
	t.transforms[sessionID] = c
}

// Despawn removes an actor on disconnect.
func (t *ActorTable) Despawn(sessionID uint64) {
	delete(t.transforms, sessionID)
}
