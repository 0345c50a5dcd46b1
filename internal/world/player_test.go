package world

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/atlrp/server/internal/data"
)

const testGroupsYAML = `groups:
  - name: user
  - name: mod
  - name: admin
`

const testJobsYAML = `jobs:
  - name: unemployed
    label: Unemployed
    ranks:
      - label: Unemployed
        salary: 200
  - name: police
    label: Police Department
    ranks:
      - label: Cadet
        salary: 700
      - label: Officer
        salary: 900
`

const testDefaultsYAML = `accounts:
  money: 500
  bank: 5000
status:
  hunger: 100
  thirst: 100
  stress: 0
slots: 40
spawn:
  x: -269.4
  y: -955.3
  z: 31.2
  heading: 205.0
`

func testTables(t *testing.T) *data.Tables {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"groups.yaml":   testGroupsYAML,
		"jobs.yaml":     testJobsYAML,
		"defaults.yaml": testDefaultsYAML,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	tables, err := data.LoadTables(dir)
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	return tables
}

type fakeActor struct {
	transforms map[uint64]Coords
	warps      int
}

func newFakeActor() *fakeActor {
	return &fakeActor{transforms: make(map[uint64]Coords)}
}

func (a *fakeActor) Transform(sessionID uint64) (Coords, bool) {
	c, ok := a.transforms[sessionID]
	return c, ok
}

func (a *fakeActor) Warp(sessionID uint64, c Coords) {
	a.transforms[sessionID] = c
	a.warps++
}

func (a *fakeActor) Despawn(sessionID uint64) {
	delete(a.transforms, sessionID)
}

type fakeNotifier struct {
	loaded      []map[string]any
	statusSyncs []map[string]StatusLevel
	permGroups  []string
}

func (n *fakeNotifier) CharacterLoaded(_ uint64, snapshot map[string]any) {
	n.loaded = append(n.loaded, snapshot)
}

func (n *fakeNotifier) StatusSync(_ uint64, status map[string]StatusLevel) {
	n.statusSyncs = append(n.statusSyncs, status)
}

func (n *fakeNotifier) PermissionsChanged(_ uint64, group string) {
	n.permGroups = append(n.permGroups, group)
}

func loadTestPlayer(t *testing.T, rec Record) (*Player, *fakeActor, *fakeNotifier) {
	t.Helper()
	actor := newFakeActor()
	notify := &fakeNotifier{}
	p := Load(7, "license:abc123", 42, rec, testTables(t), actor, notify)
	return p, actor, notify
}

func TestLoadAppliesDefaults(t *testing.T) {
	p, actor, notify := loadTestPlayer(t, Record{})

	if got, _ := p.Account("bank"); got != 5000 {
		t.Errorf("bank = %v, want 5000", got)
	}
	if got, _ := p.Account("money"); got != 500 {
		t.Errorf("money = %v, want 500", got)
	}
	if p.Group() != "user" {
		t.Errorf("group = %q, want user", p.Group())
	}
	if p.Slots() != 40 {
		t.Errorf("slots = %d, want 40", p.Slots())
	}
	if job := p.Job(); job.Name != "unemployed" || job.Rank != 0 || job.OnDuty {
		t.Errorf("job = %+v, want unemployed rank 0 off duty", job)
	}
	if c := p.Coords(); c.X != -269.4 || c.Heading != 205.0 {
		t.Errorf("coords = %+v, want spawn point", c)
	}
	if actor.warps != 1 {
		t.Errorf("warps = %d, want 1", actor.warps)
	}
	if len(notify.loaded) != 1 {
		t.Fatalf("character-loaded notifications = %d, want 1", len(notify.loaded))
	}
	if notify.loaded[0]["identifier"] != "license:abc123" {
		t.Errorf("snapshot identifier = %v", notify.loaded[0]["identifier"])
	}
}

func TestLoadFallsBackPerField(t *testing.T) {
	rec := Record{
		Accounts: []byte(`{"money":12,"bank":900}`),
		Status:   []byte(`{broken json`),
		Group:    "mod",
		Slots:    12,
	}
	p, _, _ := loadTestPlayer(t, rec)

	// Stored accounts survive a broken status blob.
	if got, _ := p.Account("money"); got != 12 {
		t.Errorf("money = %v, want 12", got)
	}
	if got := p.Status()["hunger"].Value; got != 100 {
		t.Errorf("hunger fell back to %v, want 100", got)
	}
	if p.Group() != "mod" {
		t.Errorf("group = %q, want mod", p.Group())
	}
	if p.Slots() != 12 {
		t.Errorf("slots = %d, want 12", p.Slots())
	}
}

func TestLoadClampsStoredStatus(t *testing.T) {
	rec := Record{
		Status: []byte(`{"hunger":{"value":250},"stress":{"value":-5}}`),
	}
	p, _, _ := loadTestPlayer(t, rec)

	status := p.Status()
	if status["hunger"].Value != 100 {
		t.Errorf("hunger = %v, want 100", status["hunger"].Value)
	}
	if status["stress"].Value != 0 {
		t.Errorf("stress = %v, want 0", status["stress"].Value)
	}
}

func TestLoadRejectsUnknownGroupAndJob(t *testing.T) {
	rec := Record{
		Group: "owner",
		Job:   []byte(`{"name":"astronaut","rank":3}`),
	}
	p, _, _ := loadTestPlayer(t, rec)

	if p.Group() != "user" {
		t.Errorf("group = %q, want fallback user", p.Group())
	}
	if p.Job().Name != "unemployed" {
		t.Errorf("job = %q, want fallback unemployed", p.Job().Name)
	}
}

func TestAccountArithmetic(t *testing.T) {
	p, _, _ := loadTestPlayer(t, Record{})

	if err := p.AddAccountMoney("bank", 250); err != nil {
		t.Fatalf("AddAccountMoney: %v", err)
	}
	if got, _ := p.Account("bank"); got != 5250 {
		t.Errorf("bank = %v, want 5250", got)
	}

	// Balances carry no floor.
	if err := p.RemoveAccountMoney("bank", 6000); err != nil {
		t.Fatalf("RemoveAccountMoney: %v", err)
	}
	if got, _ := p.Account("bank"); got != -750 {
		t.Errorf("bank = %v, want -750", got)
	}

	if err := p.AddAccountMoney("crypto", 1); !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("unknown account err = %v, want ErrUnknownAccount", err)
	}
	if err := p.AddAccountMoney("bank", math.NaN()); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NaN err = %v, want ErrInvalidArgument", err)
	}
	if _, err := p.Account("crypto"); !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("Account err = %v, want ErrUnknownAccount", err)
	}
}

func TestStatusMutatorsClamp(t *testing.T) {
	p, _, notify := loadTestPlayer(t, Record{})

	if err := p.AddStatus("hunger", 50); err != nil {
		t.Fatalf("AddStatus: %v", err)
	}
	if got := p.Status()["hunger"].Value; got != 100 {
		t.Errorf("hunger = %v, want clamp at 100", got)
	}

	if err := p.SubtractStatus("thirst", 300); err != nil {
		t.Fatalf("SubtractStatus: %v", err)
	}
	if got := p.Status()["thirst"].Value; got != 0 {
		t.Errorf("thirst = %v, want clamp at 0", got)
	}

	if err := p.AddStatus("stamina", 1); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("unknown status err = %v, want ErrUnknownStatus", err)
	}
	if err := p.AddStatus("hunger", math.Inf(1)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Inf err = %v, want ErrInvalidArgument", err)
	}

	// Two successful mutations, two syncs.
	if len(notify.statusSyncs) != 2 {
		t.Errorf("status syncs = %d, want 2", len(notify.statusSyncs))
	}
}

func TestSetStatusReplacesAndClamps(t *testing.T) {
	p, _, notify := loadTestPlayer(t, Record{})

	if err := p.SetStatus(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil err = %v, want ErrInvalidArgument", err)
	}
	if err := p.SetStatus(map[string]float64{"hunger": 180, "drunk": -3}); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	status := p.Status()
	if len(status) != 2 {
		t.Errorf("status size = %d, want full replacement with 2", len(status))
	}
	if status["hunger"].Value != 100 || status["drunk"].Value != 0 {
		t.Errorf("status = %+v, want clamped values", status)
	}
	if len(notify.statusSyncs) != 1 {
		t.Errorf("status syncs = %d, want 1", len(notify.statusSyncs))
	}
}

func TestSetGroup(t *testing.T) {
	p, _, notify := loadTestPlayer(t, Record{})

	if err := p.SetGroup("owner"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("unknown group err = %v, want ErrUnknownGroup", err)
	}
	if p.Group() != "user" {
		t.Errorf("group changed to %q on rejected call", p.Group())
	}
	if len(notify.permGroups) != 0 {
		t.Errorf("permission refresh fired on rejected call")
	}

	if err := p.SetGroup("admin"); err != nil {
		t.Fatalf("SetGroup: %v", err)
	}
	if p.Group() != "admin" {
		t.Errorf("group = %q, want admin", p.Group())
	}
	if len(notify.permGroups) != 1 || notify.permGroups[0] != "admin" {
		t.Errorf("permission refresh = %v, want [admin]", notify.permGroups)
	}
}

func TestHasPerms(t *testing.T) {
	p, _, _ := loadTestPlayer(t, Record{Group: "mod"})

	tests := []struct {
		target string
		want   bool
	}{
		{"user", true},
		{"mod", true}, // reflexive
		{"admin", false},
		{"owner", false}, // unknown never passes
	}
	for _, tt := range tests {
		if got := p.HasPerms(tt.target); got != tt.want {
			t.Errorf("HasPerms(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}

func TestSetJob(t *testing.T) {
	p, _, _ := loadTestPlayer(t, Record{})

	if err := p.SetDuty(true); err != nil {
		t.Fatal(err)
	}

	// Case-insensitive match, stored with configured spelling, duty reset.
	if err := p.SetJob("POLICE", 1); err != nil {
		t.Fatalf("SetJob: %v", err)
	}
	job := p.Job()
	if job.Name != "police" || job.Rank != 1 || job.OnDuty {
		t.Errorf("job = %+v, want police rank 1 off duty", job)
	}

	label, err := p.JobLabel()
	if err != nil || label != "Police Department" {
		t.Errorf("JobLabel = %q, %v", label, err)
	}
	rank, err := p.RankLabel()
	if err != nil || rank != "Officer" {
		t.Errorf("RankLabel = %q, %v", rank, err)
	}

	if err := p.SetJob("astronaut", 0); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("unknown job err = %v, want ErrUnknownJob", err)
	}
	if err := p.SetJob("police", 5); !errors.Is(err, ErrUnknownRank) {
		t.Errorf("bad rank err = %v, want ErrUnknownRank", err)
	}
	if p.Job().Name != "police" {
		t.Errorf("job changed to %q on rejected call", p.Job().Name)
	}
}

func TestSetCoords(t *testing.T) {
	p, actor, _ := loadTestPlayer(t, Record{})
	spawn := p.Coords()

	if err := p.SetCoords(Coords{X: math.NaN()}, true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NaN err = %v, want ErrInvalidArgument", err)
	}
	if p.Coords() != spawn {
		t.Errorf("coords changed on rejected call")
	}

	target := Coords{X: 10, Y: 20, Z: 30, Heading: 90}
	if err := p.SetCoords(target, false); err != nil {
		t.Fatalf("SetCoords: %v", err)
	}
	if p.Coords() != target {
		t.Errorf("coords = %+v, want %+v", p.Coords(), target)
	}
	// Only the stored transform moved; the actor stays put.
	if got, _ := actor.Transform(7); got != spawn {
		t.Errorf("actor moved without teleportNow: %+v", got)
	}

	if err := p.SetCoords(target, true); err != nil {
		t.Fatal(err)
	}
	if got, _ := actor.Transform(7); got != target {
		t.Errorf("actor = %+v, want warp to %+v", got, target)
	}
}

func TestSetSlots(t *testing.T) {
	p, _, _ := loadTestPlayer(t, Record{})

	if err := p.SetSlots(-1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("negative err = %v, want ErrInvalidArgument", err)
	}
	if err := p.SetSlots(60); err != nil {
		t.Fatal(err)
	}
	if p.Slots() != 60 {
		t.Errorf("slots = %d, want 60", p.Slots())
	}
}

func TestDirtyTracking(t *testing.T) {
	p, _, _ := loadTestPlayer(t, Record{})

	if p.Dirty() {
		t.Error("freshly loaded player is dirty")
	}
	if err := p.AddAccountMoney("money", 1); err != nil {
		t.Fatal(err)
	}
	if !p.Dirty() {
		t.Error("mutation did not set dirty flag")
	}
	p.ClearDirty()
	if p.Dirty() {
		t.Error("ClearDirty did not clear flag")
	}
}

func TestSyncTransformAndMarshal(t *testing.T) {
	p, actor, _ := loadTestPlayer(t, Record{})

	// Simulate in-world movement since the last explicit SetCoords.
	moved := Coords{X: 1, Y: 2, Z: 3, Heading: 4}
	actor.Warp(7, moved)
	p.SyncTransform()
	if p.Coords() != moved {
		t.Fatalf("coords = %+v, want live transform %+v", p.Coords(), moved)
	}

	rec, err := p.MarshalRecord()
	if err != nil {
		t.Fatalf("MarshalRecord: %v", err)
	}
	var cd CharacterData
	if err := json.Unmarshal(rec.CharData, &cd); err != nil {
		t.Fatalf("decode char_data: %v", err)
	}
	if cd.Coords != moved {
		t.Errorf("persisted coords = %+v, want %+v", cd.Coords, moved)
	}
	if rec.Group != "user" || rec.Slots != 40 {
		t.Errorf("record group/slots = %q/%d", rec.Group, rec.Slots)
	}
}
