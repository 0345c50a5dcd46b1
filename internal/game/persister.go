package game

import (
	"context"

	"github.com/atlrp/server/internal/persist"
	"github.com/atlrp/server/internal/world"
)

// SaveStore commits one storage row. Satisfied by persist.PlayerRepo.
type SaveStore interface {
	Save(ctx context.Context, row *persist.SaveRow) error
}

// Persister turns a live entity into a storage row and hands it to the
// repository. The dirty flag is cleared only after the transaction
// commits, so a failed save is retried on the next flush cycle.
type Persister struct {
	repo SaveStore
}

func NewPersister(repo SaveStore) *Persister {
	return &Persister{repo: repo}
}

func (s *Persister) SavePlayer(ctx context.Context, p *world.Player) error {
	p.SyncTransform()
	rec, err := p.MarshalRecord()
	if err != nil {
		return err
	}
	row := &persist.SaveRow{
		CharID:     p.CharID(),
		Identifier: p.Identifier(),
		Group:      rec.Group,
		Slots:      rec.Slots,
		Accounts:   rec.Accounts,
		Status:     rec.Status,
		Inventory:  rec.Inventory,
		Job:        rec.Job,
		CharData:   rec.CharData,
	}
	if err := s.repo.Save(ctx, row); err != nil {
		return err
	}
	p.ClearDirty()
	return nil
}
