package world

import (
	"encoding/json"
	"fmt"

	"github.com/atlrp/server/internal/data"
)

// Player is the authoritative in-session representation of one character.
// Accessed only from the game loop goroutine — no locks needed. All
// mutation goes through the accessor protocol so in-memory and in-world
// state stay consistent.
type Player struct {
	sessionID  uint64
	identifier string
	charID     int32

	accounts   map[string]float64
	appearance map[string]any
	charData   CharacterData
	group      string
	identity   map[string]any
	inventory  map[string]any
	job        JobData
	slots      int
	status     map[string]StatusLevel

	tables *data.Tables
	actor  Actor
	notify Notifier

	// Set by every mutator, cleared after a successful save. The autosave
	// system only flushes dirty players.
	dirty bool
}

// Load constructs a Player from a storage record. Each blob is decoded
// independently; a missing or undecodable field falls back to its
// configured default. Construction is side-effecting: it warps the world
// actor to the stored (or spawn) transform and emits the character-loaded
// notification.
func Load(sessionID uint64, identifier string, charID int32, rec Record, tables *data.Tables, actor Actor, notify Notifier) *Player {
	p := &Player{
		sessionID:  sessionID,
		identifier: identifier,
		charID:     charID,
		tables:     tables,
		actor:      actor,
		notify:     notify,
	}

	if err := json.Unmarshal(rec.Accounts, &p.accounts); err != nil || p.accounts == nil {
		p.accounts = make(map[string]float64, len(tables.Defaults.Accounts))
		for name, v := range tables.Defaults.Accounts {
			p.accounts[name] = v
		}
	}
	if err := json.Unmarshal(rec.Appearance, &p.appearance); err != nil || p.appearance == nil {
		p.appearance = map[string]any{}
	}
	if err := json.Unmarshal(rec.CharData, &p.charData); err != nil || !p.charData.Coords.Valid() {
		sp := tables.Defaults.Spawn
		p.charData = CharacterData{Coords: Coords{X: sp.X, Y: sp.Y, Z: sp.Z, Heading: sp.Heading}}
	}
	if err := json.Unmarshal(rec.Identity, &p.identity); err != nil || p.identity == nil {
		p.identity = map[string]any{}
	}
	if err := json.Unmarshal(rec.Inventory, &p.inventory); err != nil || p.inventory == nil {
		p.inventory = map[string]any{}
	}
	if err := json.Unmarshal(rec.Job, &p.job); err != nil || tables.Jobs.Get(p.job.Name) == nil {
		p.job = JobData{Name: "unemployed", Rank: 0}
	}
	if err := json.Unmarshal(rec.Status, &p.status); err != nil || p.status == nil {
		p.status = make(map[string]StatusLevel, len(tables.Defaults.Status))
		for name, v := range tables.Defaults.Status {
			p.status[name] = StatusLevel{Value: clampStatus(v)}
		}
	}
	for name, s := range p.status {
		p.status[name] = StatusLevel{Value: clampStatus(s.Value)}
	}

	p.group = rec.Group
	if !tables.Groups.Has(p.group) {
		p.group = tables.Groups.First()
	}
	p.slots = rec.Slots
	if p.slots <= 0 {
		p.slots = tables.Defaults.Slots
	}

	actor.Warp(sessionID, p.charData.Coords)
	notify.CharacterLoaded(sessionID, p.ClientSnapshot())
	return p
}

// --- Getters ---

func (p *Player) SessionID() uint64  { return p.sessionID }
func (p *Player) Identifier() string { return p.identifier }
func (p *Player) CharID() int32      { return p.charID }
func (p *Player) Group() string      { return p.group }
func (p *Player) Slots() int         { return p.slots }
func (p *Player) Job() JobData       { return p.job }
func (p *Player) Coords() Coords     { return p.charData.Coords }

// Account returns one account balance.
func (p *Player) Account(name string) (float64, error) {
	v, ok := p.accounts[name]
	if !ok {
		return 0, fmt.Errorf("account %q: %w", name, ErrUnknownAccount)
	}
	return v, nil
}

// Accounts returns a copy of all balances.
func (p *Player) Accounts() map[string]float64 {
	out := make(map[string]float64, len(p.accounts))
	for name, v := range p.accounts {
		out[name] = v
	}
	return out
}

// Status returns a copy of the status map.
func (p *Player) Status() map[string]StatusLevel {
	out := make(map[string]StatusLevel, len(p.status))
	for name, s := range p.status {
		out[name] = s
	}
	return out
}

func (p *Player) Identity() map[string]any   { return p.identity }
func (p *Player) Inventory() map[string]any  { return p.inventory }
func (p *Player) Appearance() map[string]any { return p.appearance }

// JobLabel resolves the display label of the current job. Fails closed on
// a job name that is no longer configured.
func (p *Player) JobLabel() (string, error) {
	job := p.tables.Jobs.Get(p.job.Name)
	if job == nil {
		return "", fmt.Errorf("job %q: %w", p.job.Name, ErrUnknownJob)
	}
	return job.Label, nil
}

// RankLabel resolves the display label of the current job rank.
func (p *Player) RankLabel() (string, error) {
	job := p.tables.Jobs.Get(p.job.Name)
	if job == nil {
		return "", fmt.Errorf("job %q: %w", p.job.Name, ErrUnknownJob)
	}
	if p.job.Rank < 0 || p.job.Rank >= len(job.Ranks) {
		return "", fmt.Errorf("job %q rank %d: %w", p.job.Name, p.job.Rank, ErrUnknownRank)
	}
	return job.Ranks[p.job.Rank].Label, nil
}

// HasPerms reports whether the player's group outranks (or equals) the
// target group in the configured ordering. Unknown targets never pass.
func (p *Player) HasPerms(target string) bool {
	targetRank, ok := p.tables.Groups.Rank(target)
	if !ok {
		return false
	}
	ownRank, ok := p.tables.Groups.Rank(p.group)
	if !ok {
		return false
	}
	return ownRank >= targetRank
}

// --- Setters ---

// SetCoords updates the stored transform. When teleportNow is set the
// world actor is repositioned immediately as well; otherwise only the
// persisted transform changes.
func (p *Player) SetCoords(c Coords, teleportNow bool) error {
	if !c.Valid() {
		return fmt.Errorf("coords: %w", ErrInvalidArgument)
	}
	p.charData.Coords = c
	if teleportNow {
		p.actor.Warp(p.sessionID, c)
	}
	p.dirty = true
	return nil
}

// SetSlots overwrites the allowed inventory slot count.
func (p *Player) SetSlots(n int) error {
	if n < 0 {
		return fmt.Errorf("slots %d: %w", n, ErrInvalidArgument)
	}
	p.slots = n
	p.dirty = true
	return nil
}

// SetGroup moves the player to another permission group and triggers a
// command-permission refresh for the session.
func (p *Player) SetGroup(name string) error {
	if name == "" {
		return fmt.Errorf("group: %w", ErrInvalidArgument)
	}
	if !p.tables.Groups.Has(name) {
		return fmt.Errorf("group %q: %w", name, ErrUnknownGroup)
	}
	p.group = name
	p.dirty = true
	p.notify.PermissionsChanged(p.sessionID, name)
	return nil
}

// SetJob replaces the job wholesale. The name is matched case-insensitively
// and stored with its configured spelling; duty is always reset.
func (p *Player) SetJob(name string, rank int) error {
	if name == "" {
		return fmt.Errorf("job: %w", ErrInvalidArgument)
	}
	job := p.tables.Jobs.Get(name)
	if job == nil {
		return fmt.Errorf("job %q: %w", name, ErrUnknownJob)
	}
	if rank < 0 || rank >= len(job.Ranks) {
		return fmt.Errorf("job %q rank %d: %w", name, rank, ErrUnknownRank)
	}
	p.job = JobData{Name: job.Name, Rank: rank, OnDuty: false}
	p.dirty = true
	return nil
}

// SetDuty toggles on-duty state for the current job.
func (p *Player) SetDuty(onDuty bool) error {
	p.job.OnDuty = onDuty
	p.dirty = true
	return nil
}

// AddAccountMoney credits an existing account. Balances carry no ceiling.
func (p *Player) AddAccountMoney(name string, amount float64) error {
	if !finite(amount) {
		return fmt.Errorf("amount: %w", ErrInvalidArgument)
	}
	if _, ok := p.accounts[name]; !ok {
		return fmt.Errorf("account %q: %w", name, ErrUnknownAccount)
	}
	p.accounts[name] += amount
	p.dirty = true
	return nil
}

// RemoveAccountMoney debits an existing account. Balances carry no floor
// and may go negative.
func (p *Player) RemoveAccountMoney(name string, amount float64) error {
	if !finite(amount) {
		return fmt.Errorf("amount: %w", ErrInvalidArgument)
	}
	if _, ok := p.accounts[name]; !ok {
		return fmt.Errorf("account %q: %w", name, ErrUnknownAccount)
	}
	p.accounts[name] -= amount
	p.dirty = true
	return nil
}

// SetStatus replaces the whole status map and synchronizes it to the
// client. Values are clamped to [0,100].
func (p *Player) SetStatus(values map[string]float64) error {
	if values == nil {
		return fmt.Errorf("status: %w", ErrInvalidArgument)
	}
	next := make(map[string]StatusLevel, len(values))
	for name, v := range values {
		if !finite(v) {
			return fmt.Errorf("status %q: %w", name, ErrInvalidArgument)
		}
		next[name] = StatusLevel{Value: clampStatus(v)}
	}
	p.status = next
	p.dirty = true
	p.notify.StatusSync(p.sessionID, p.Status())
	return nil
}

// AddStatus raises one status value, clamped to 100.
func (p *Player) AddStatus(name string, delta float64) error {
	return p.applyStatus(name, delta)
}

// SubtractStatus lowers one status value, clamped to 0.
func (p *Player) SubtractStatus(name string, delta float64) error {
	return p.applyStatus(name, -delta)
}

func (p *Player) applyStatus(name string, delta float64) error {
	if !finite(delta) {
		return fmt.Errorf("delta: %w", ErrInvalidArgument)
	}
	s, ok := p.status[name]
	if !ok {
		return fmt.Errorf("status %q: %w", name, ErrUnknownStatus)
	}
	p.status[name] = StatusLevel{Value: clampStatus(s.Value + delta)}
	p.dirty = true
	p.notify.StatusSync(p.sessionID, p.Status())
	return nil
}

// --- Persistence support ---

// Dirty reports whether state changed since the last successful save.
func (p *Player) Dirty() bool { return p.dirty }

// ClearDirty marks the entity clean after a successful save.
func (p *Player) ClearDirty() { p.dirty = false }

// SyncTransform snapshots the live actor transform into the persisted
// character data, capturing movement since the last explicit SetCoords.
func (p *Player) SyncTransform() {
	if c, ok := p.actor.Transform(p.sessionID); ok && c.Valid() {
		p.charData.Coords = c
	}
}

// MarshalRecord re-encodes the entity into its storage representation.
func (p *Player) MarshalRecord() (Record, error) {
	rec := Record{Group: p.group, Slots: p.slots}
	for _, f := range []struct {
		name string
		v    any
		dst  *[]byte
	}{
		{"accounts", p.accounts, &rec.Accounts},
		{"appearance", p.appearance, &rec.Appearance},
		{"char_data", p.charData, &rec.CharData},
		{"identity", p.identity, &rec.Identity},
		{"inventory", p.inventory, &rec.Inventory},
		{"job", p.job, &rec.Job},
		{"status", p.status, &rec.Status},
	} {
		raw, err := json.Marshal(f.v)
		if err != nil {
			return Record{}, fmt.Errorf("marshal %s: %w", f.name, err)
		}
		*f.dst = raw
	}
	return rec, nil
}

// ClientSnapshot builds the full entity snapshot sent with the
// character-loaded notification.
func (p *Player) ClientSnapshot() map[string]any {
	return map[string]any{
		"identifier": p.identifier,
		"charId":     p.charID,
		"accounts":   p.Accounts(),
		"appearance": p.appearance,
		"coords":     p.charData.Coords,
		"group":      p.group,
		"identity":   p.identity,
		"inventory":  p.inventory,
		"job":        p.job,
		"slots":      p.slots,
		"status":     p.Status(),
	}
}
