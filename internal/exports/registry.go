package exports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atlrp/server/internal/game"
	"github.com/atlrp/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Saver flushes one player entity back to storage.
type Saver interface {
	SavePlayer(ctx context.Context, p *world.Player) error
}

// Registry wraps a single gopher-lua VM and publishes every player
// operation as a global function named atl_<operation>, addressed by
// session id. Single-goroutine access only (game loop).
//
// Mutators collapse to the boolean contract on the Lua side: true on
// success, false on any rejected call, with the reason logged here.
// Getters return the value, or nil when the lookup fails.
type Registry struct {
	vm      *lua.LState
	players *world.Registry
	loader  *game.Loader
	saver   Saver
	log     *zap.Logger
}

type export struct {
	name string
	fn   func(*Registry, *lua.LState) int
}

// exportList is the full capability surface, declared statically so the
// published set is auditable in one place.
var exportList = []export{
	{"getIdentifier", (*Registry).luaGetIdentifier},
	{"getCharId", (*Registry).luaGetCharID},
	{"getGroup", (*Registry).luaGetGroup},
	{"getSlots", (*Registry).luaGetSlots},
	{"getJob", (*Registry).luaGetJob},
	{"getJobLabel", (*Registry).luaGetJobLabel},
	{"getRankLabel", (*Registry).luaGetRankLabel},
	{"getCoords", (*Registry).luaGetCoords},
	{"getAccount", (*Registry).luaGetAccount},
	{"getAccounts", (*Registry).luaGetAccounts},
	{"getStatus", (*Registry).luaGetStatus},
	{"getIdentity", (*Registry).luaGetIdentity},
	{"getInventory", (*Registry).luaGetInventory},
	{"getAppearance", (*Registry).luaGetAppearance},
	{"hasPerms", (*Registry).luaHasPerms},

	{"setCoords", (*Registry).luaSetCoords},
	{"setSlots", (*Registry).luaSetSlots},
	{"setGroup", (*Registry).luaSetGroup},
	{"setJob", (*Registry).luaSetJob},
	{"setDuty", (*Registry).luaSetDuty},
	{"addAccountMoney", (*Registry).luaAddAccountMoney},
	{"removeAccountMoney", (*Registry).luaRemoveAccountMoney},
	{"setStatus", (*Registry).luaSetStatus},
	{"addStatus", (*Registry).luaAddStatus},
	{"subtractStatus", (*Registry).luaSubtractStatus},

	{"getSessionId", (*Registry).luaGetSessionID},
	{"createCharacter", (*Registry).luaCreateCharacter},
	{"getCharacters", (*Registry).luaGetCharacters},
	{"loadPlayer", (*Registry).luaLoadPlayer},
	{"savePlayer", (*Registry).luaSavePlayer},
	{"dropPlayer", (*Registry).luaDropPlayer},
}

// NewRegistry creates the Lua VM and publishes the export surface. The
// atl_exports global lists every published name for script-side
// discovery.
func NewRegistry(players *world.Registry, loader *game.Loader, saver Saver, log *zap.Logger) *Registry {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	r := &Registry{vm: vm, players: players, loader: loader, saver: saver, log: log}

	names := vm.NewTable()
	for i, e := range exportList {
		fn := e.fn
		full := "atl_" + e.name
		vm.SetGlobal(full, vm.NewFunction(func(L *lua.LState) int {
			return fn(r, L)
		}))
		names.RawSetInt(i+1, lua.LString(full))
	}
	vm.SetGlobal("atl_exports", names)

	log.Info("capability exports published", zap.Int("count", len(exportList)))
	return r
}

// LoadScripts runs all .lua files in a directory. A missing directory is
// not an error.
func (r *Registry) LoadScripts(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := r.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		r.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Count returns the number of published exports.
func (r *Registry) Count() int { return len(exportList) }

// Close shuts down the Lua VM.
func (r *Registry) Close() {
	r.vm.Close()
}

// player resolves the session-id first argument to a live entity.
func (r *Registry) player(L *lua.LState) *world.Player {
	sid := uint64(L.CheckNumber(1))
	p := r.players.GetBySession(sid)
	if p == nil {
		r.log.Warn("export call for unregistered session", zap.Uint64("session", sid))
	}
	return p
}

// result collapses a mutator error to the boolean contract.
func (r *Registry) result(L *lua.LState, name string, err error) int {
	if err != nil {
		r.log.Warn("export rejected", zap.String("export", name), zap.Error(err))
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LTrue)
	return 1
}

// --- Getters ---

func (r *Registry) luaGetIdentifier(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(p.Identifier()))
	return 1
}

func (r *Registry) luaGetCharID(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(p.CharID()))
	return 1
}

func (r *Registry) luaGetGroup(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(p.Group()))
	return 1
}

func (r *Registry) luaGetSlots(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(p.Slots()))
	return 1
}

func (r *Registry) luaGetJob(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(jobToLua(L, p.Job()))
	return 1
}

func (r *Registry) luaGetJobLabel(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	label, err := p.JobLabel()
	if err != nil {
		r.log.Warn("export rejected", zap.String("export", "getJobLabel"), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(label))
	return 1
}

func (r *Registry) luaGetRankLabel(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	label, err := p.RankLabel()
	if err != nil {
		r.log.Warn("export rejected", zap.String("export", "getRankLabel"), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(label))
	return 1
}

func (r *Registry) luaGetCoords(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(coordsToLua(L, p.Coords()))
	return 1
}

func (r *Registry) luaGetAccount(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	name := L.CheckString(2)
	v, err := p.Account(name)
	if err != nil {
		r.log.Warn("export rejected", zap.String("export", "getAccount"), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (r *Registry) luaGetAccounts(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	for name, v := range p.Accounts() {
		t.RawSetString(name, lua.LNumber(v))
	}
	L.Push(t)
	return 1
}

func (r *Registry) luaGetStatus(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(statusToLua(L, p.Status()))
	return 1
}

func (r *Registry) luaGetIdentity(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(anyToLua(L, p.Identity()))
	return 1
}

func (r *Registry) luaGetInventory(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(anyToLua(L, p.Inventory()))
	return 1
}

func (r *Registry) luaGetAppearance(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(anyToLua(L, p.Appearance()))
	return 1
}

func (r *Registry) luaHasPerms(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(p.HasPerms(L.CheckString(2))))
	return 1
}

// --- Setters ---

func (r *Registry) luaSetCoords(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	c, ok := coordsFromLua(L.CheckTable(2))
	if !ok {
		r.log.Warn("export rejected", zap.String("export", "setCoords"),
			zap.Error(world.ErrInvalidArgument))
		L.Push(lua.LFalse)
		return 1
	}
	teleportNow := L.OptBool(3, true)
	return r.result(L, "setCoords", p.SetCoords(c, teleportNow))
}

func (r *Registry) luaSetSlots(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	return r.result(L, "setSlots", p.SetSlots(int(L.CheckNumber(2))))
}

func (r *Registry) luaSetGroup(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	return r.result(L, "setGroup", p.SetGroup(L.CheckString(2)))
}

func (r *Registry) luaSetJob(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	name := L.CheckString(2)
	rank := int(L.CheckNumber(3))
	return r.result(L, "setJob", p.SetJob(name, rank))
}

func (r *Registry) luaSetDuty(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	return r.result(L, "setDuty", p.SetDuty(L.CheckBool(2)))
}

func (r *Registry) luaAddAccountMoney(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	name := L.CheckString(2)
	amount := float64(L.CheckNumber(3))
	return r.result(L, "addAccountMoney", p.AddAccountMoney(name, amount))
}

func (r *Registry) luaRemoveAccountMoney(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	name := L.CheckString(2)
	amount := float64(L.CheckNumber(3))
	return r.result(L, "removeAccountMoney", p.RemoveAccountMoney(name, amount))
}

func (r *Registry) luaSetStatus(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	values, ok := statusFromLua(L.CheckTable(2))
	if !ok {
		r.log.Warn("export rejected", zap.String("export", "setStatus"),
			zap.Error(world.ErrInvalidArgument))
		L.Push(lua.LFalse)
		return 1
	}
	return r.result(L, "setStatus", p.SetStatus(values))
}

func (r *Registry) luaAddStatus(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	name := L.CheckString(2)
	delta := float64(L.CheckNumber(3))
	return r.result(L, "addStatus", p.AddStatus(name, delta))
}

func (r *Registry) luaSubtractStatus(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	name := L.CheckString(2)
	delta := float64(L.CheckNumber(3))
	return r.result(L, "subtractStatus", p.SubtractStatus(name, delta))
}

// --- Lifecycle ---

// getSessionId resolves an identifier to its live session id, for
// scripts that address players by account rather than session.
func (r *Registry) luaGetSessionID(L *lua.LState) int {
	identifier := L.CheckString(1)
	p := r.players.GetByIdentifier(identifier)
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(p.SessionID()))
	return 1
}

// createCharacter inserts a fresh character (creating the account row on
// first join) and returns its id, or nil on failure.
func (r *Registry) luaCreateCharacter(L *lua.LState) int {
	identifier := L.CheckString(1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := r.loader.CreateCharacter(ctx, identifier)
	if err != nil {
		r.log.Warn("export rejected", zap.String("export", "createCharacter"), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(id))
	return 1
}

// getCharacters lists the stored character ids of an identifier.
func (r *Registry) luaGetCharacters(L *lua.LState) int {
	identifier := L.CheckString(1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ids, err := r.loader.CharacterIDs(ctx, identifier)
	if err != nil {
		r.log.Warn("export rejected", zap.String("export", "getCharacters"), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	for i, id := range ids {
		t.RawSetInt(i+1, lua.LNumber(id))
	}
	L.Push(t)
	return 1
}

func (r *Registry) luaLoadPlayer(L *lua.LState) int {
	sid := uint64(L.CheckNumber(1))
	identifier := L.CheckString(2)
	charID := int32(L.CheckNumber(3))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.loader.LoadCharacter(ctx, sid, identifier, charID)
	return r.result(L, "loadPlayer", err)
}

func (r *Registry) luaSavePlayer(L *lua.LState) int {
	p := r.player(L)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.result(L, "savePlayer", r.saver.SavePlayer(ctx, p))
}

// dropPlayer saves the entity, then unloads it. A failed final save is
// logged but does not keep the session registered.
func (r *Registry) luaDropPlayer(L *lua.LState) int {
	sid := uint64(L.CheckNumber(1))
	p := r.players.GetBySession(sid)
	if p == nil {
		L.Push(lua.LFalse)
		return 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.saver.SavePlayer(ctx, p); err != nil {
		r.log.Error("final save on drop failed",
			zap.String("identifier", p.Identifier()), zap.Error(err))
	}
	r.loader.Unload(sid)
	L.Push(lua.LTrue)
	return 1
}
