package game

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/atlrp/server/internal/persist"
	"github.com/atlrp/server/internal/world"
)

// fakeSaveStore records committed rows and can be made to fail.
type fakeSaveStore struct {
	rows []*persist.SaveRow
	err  error
}

func (s *fakeSaveStore) Save(_ context.Context, row *persist.SaveRow) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}

func TestSavePlayerDirtyLifecycle(t *testing.T) {
	actors := newFakeActor()
	p := world.Load(7, "license:abc123", 42, world.Record{}, testTables(t), actors, fakeNotifier{})
	if err := p.AddAccountMoney("bank", 250); err != nil {
		t.Fatal(err)
	}
	if !p.Dirty() {
		t.Fatal("mutation did not set dirty flag")
	}

	store := &fakeSaveStore{err: errors.New("db down")}
	persister := NewPersister(store)

	// A failed commit must leave the entity dirty so the next flush
	// cycle retries it.
	if err := persister.SavePlayer(context.Background(), p); err == nil {
		t.Fatal("expected save error")
	}
	if !p.Dirty() {
		t.Error("dirty flag cleared on failed save")
	}

	// Movement since the last explicit SetCoords is captured at save time.
	moved := world.Coords{X: 1, Y: 2, Z: 3, Heading: 4}
	actors.Warp(7, moved)

	store.err = nil
	if err := persister.SavePlayer(context.Background(), p); err != nil {
		t.Fatalf("SavePlayer: %v", err)
	}
	if p.Dirty() {
		t.Error("dirty flag survived successful save")
	}
	if len(store.rows) != 1 {
		t.Fatalf("committed rows = %d, want 1", len(store.rows))
	}

	row := store.rows[0]
	if row.CharID != 42 || row.Identifier != "license:abc123" {
		t.Errorf("row keys = %d/%q", row.CharID, row.Identifier)
	}
	var accounts map[string]float64
	if err := json.Unmarshal(row.Accounts, &accounts); err != nil {
		t.Fatal(err)
	}
	if accounts["bank"] != 5250 {
		t.Errorf("bank = %v, want 5250", accounts["bank"])
	}
	var cd world.CharacterData
	if err := json.Unmarshal(row.CharData, &cd); err != nil {
		t.Fatal(err)
	}
	if cd.Coords != moved {
		t.Errorf("persisted coords = %+v, want live transform %+v", cd.Coords, moved)
	}
}
