package world

// Registry tracks all players currently in-session.
// Single-goroutine access only (game loop). Insertion happens on
// character load, removal when the session manager reports a disconnect.
type Registry struct {
	bySession    map[uint64]*Player
	byIdentifier map[string]*Player
}

func NewRegistry() *Registry {
	return &Registry{
		bySession:    make(map[uint64]*Player),
		byIdentifier: make(map[string]*Player),
	}
}

// Add registers a player. A previous entity under the same session id or
// the same identifier (re-login under a new session) is evicted so both
// indexes always point at the live entity.
func (r *Registry) Add(p *Player) {
	if prev, ok := r.byIdentifier[p.Identifier()]; ok && prev.SessionID() != p.SessionID() {
		delete(r.bySession, prev.SessionID())
	}
	r.bySession[p.SessionID()] = p
	r.byIdentifier[p.Identifier()] = p
}

// Remove drops a player and returns it, or nil if the session is unknown.
func (r *Registry) Remove(sessionID uint64) *Player {
	p, ok := r.bySession[sessionID]
	if !ok {
		return nil
	}
	delete(r.bySession, sessionID)
	// The identifier entry may already name a newer session's entity.
	if cur, ok := r.byIdentifier[p.Identifier()]; ok && cur == p {
		delete(r.byIdentifier, p.Identifier())
	}
	return p
}

// GetBySession returns a player by session id.
func (r *Registry) GetBySession(sessionID uint64) *Player {
	return r.bySession[sessionID]
}

// GetByIdentifier returns a player by account identifier.
func (r *Registry) GetByIdentifier(identifier string) *Player {
	return r.byIdentifier[identifier]
}

// Count returns the number of players in-session.
func (r *Registry) Count() int {
	return len(r.bySession)
}

// All iterates every in-session player.
func (r *Registry) All(fn func(*Player)) {
	for _, p := range r.bySession {
		fn(p)
	}
}
