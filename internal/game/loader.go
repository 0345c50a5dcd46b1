package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atlrp/server/internal/data"
	"github.com/atlrp/server/internal/persist"
	"github.com/atlrp/server/internal/world"
	"go.uber.org/zap"
)

// ActorStore is the actor boundary the loader needs: everything the
// entity uses plus despawn on unload.
type ActorStore interface {
	world.Actor
	Despawn(sessionID uint64)
}

// CharacterStore is the storage surface the loader needs. Satisfied by
// persist.PlayerRepo.
type CharacterStore interface {
	LoadCharacter(ctx context.Context, charID int32) (*persist.CharacterRow, error)
	EnsureUser(ctx context.Context, identifier, group string, slots int) error
	CreateCharacter(ctx context.Context, row *persist.SaveRow) (int32, error)
	CharacterIDs(ctx context.Context, identifier string) ([]int32, error)
}

// Loader bridges storage rows and live player entities: it fetches
// character rows, constructs entities, and tracks them in the registry.
type Loader struct {
	repo    CharacterStore
	tables  *data.Tables
	players *world.Registry
	actors  ActorStore
	notify  world.Notifier
	log     *zap.Logger
}

func NewLoader(repo CharacterStore, tables *data.Tables, players *world.Registry, actors ActorStore, notify world.Notifier, log *zap.Logger) *Loader {
	return &Loader{
		repo:    repo,
		tables:  tables,
		players: players,
		actors:  actors,
		notify:  notify,
		log:     log,
	}
}

// LoadCharacter fetches a stored character, constructs the entity and
// registers it under the session. The character must belong to the
// given identifier.
func (l *Loader) LoadCharacter(ctx context.Context, sessionID uint64, identifier string, charID int32) (*world.Player, error) {
	row, err := l.repo.LoadCharacter(ctx, charID)
	if err != nil {
		return nil, fmt.Errorf("load character %d: %w", charID, err)
	}
	if row == nil {
		return nil, fmt.Errorf("character %d: not found", charID)
	}
	if row.Identifier != identifier {
		return nil, fmt.Errorf("character %d does not belong to %s", charID, identifier)
	}

	rec := world.Record{
		Accounts:   row.Accounts,
		Appearance: row.Appearance,
		CharData:   row.CharData,
		Identity:   row.Identity,
		Inventory:  row.Inventory,
		Job:        row.Job,
		Status:     row.Status,
		Group:      row.Group,
		Slots:      row.Slots,
	}
	p := world.Load(sessionID, identifier, charID, rec, l.tables, l.actors, l.notify)
	l.players.Add(p)

	l.log.Info("character loaded",
		zap.Uint64("session", sessionID),
		zap.String("identifier", identifier),
		zap.Int32("char_id", charID))
	return p, nil
}

// CreateCharacter inserts a fresh character for an identifier, creating
// the account row on first join. All blobs start from the configured
// defaults.
func (l *Loader) CreateCharacter(ctx context.Context, identifier string) (int32, error) {
	def := l.tables.Defaults
	if err := l.repo.EnsureUser(ctx, identifier, l.tables.Groups.First(), def.Slots); err != nil {
		return 0, fmt.Errorf("ensure user %s: %w", identifier, err)
	}

	row := &persist.SaveRow{Identifier: identifier}
	sp := def.Spawn
	charData := world.CharacterData{Coords: world.Coords{X: sp.X, Y: sp.Y, Z: sp.Z, Heading: sp.Heading}}
	status := make(map[string]world.StatusLevel, len(def.Status))
	for name, v := range def.Status {
		status[name] = world.StatusLevel{Value: v}
	}
	for _, f := range []struct {
		v   any
		dst *[]byte
	}{
		{def.Accounts, &row.Accounts},
		{status, &row.Status},
		{map[string]any{}, &row.Inventory},
		{world.JobData{Name: "unemployed"}, &row.Job},
		{charData, &row.CharData},
	} {
		raw, err := json.Marshal(f.v)
		if err != nil {
			return 0, fmt.Errorf("encode defaults: %w", err)
		}
		*f.dst = raw
	}

	id, err := l.repo.CreateCharacter(ctx, row)
	if err != nil {
		return 0, fmt.Errorf("create character for %s: %w", identifier, err)
	}
	l.log.Info("character created",
		zap.String("identifier", identifier),
		zap.Int32("char_id", id))
	return id, nil
}

// CharacterIDs lists the characters stored for an identifier, for the
// character-select surface.
func (l *Loader) CharacterIDs(ctx context.Context, identifier string) ([]int32, error) {
	return l.repo.CharacterIDs(ctx, identifier)
}

// Unload drops the session's entity from the registry and despawns its
// actor. Returns the removed entity, or nil if the session was unknown.
// The caller decides whether a final save happens first.
func (l *Loader) Unload(sessionID uint64) *world.Player {
	p := l.players.Remove(sessionID)
	if p == nil {
		return nil
	}
	l.actors.Despawn(sessionID)
	l.log.Info("character unloaded",
		zap.Uint64("session", sessionID),
		zap.String("identifier", p.Identifier()))
	return p
}
