package system

import (
	"context"
	"time"

	"github.com/atlrp/server/internal/world"
	"go.uber.org/zap"
)

// Saver flushes one player entity back to storage.
type Saver interface {
	SavePlayer(ctx context.Context, p *world.Player) error
}

// PersistenceSystem periodically flushes changed players back to storage.
type PersistenceSystem struct {
	players   *world.Registry
	saver     Saver
	log       *zap.Logger
	tickCount int
	interval  int // flush every N ticks
}

func NewPersistenceSystem(players *world.Registry, saver Saver, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	return &PersistenceSystem{
		players:  players,
		saver:    saver,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.savePlayers(true)
}

// SaveAllPlayers persists every in-session player immediately, ignoring
// dirty flags. Called on graceful shutdown so nothing is lost.
func (s *PersistenceSystem) SaveAllPlayers() {
	s.savePlayers(false)
}

// savePlayers flushes player state. With dirtyOnly set, clean players are
// skipped. A failed save is logged and the player stays dirty, so the
// next cycle retries it.
func (s *PersistenceSystem) savePlayers(dirtyOnly bool) {
	count := 0
	s.players.All(func(p *world.Player) {
		if dirtyOnly && !p.Dirty() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.saver.SavePlayer(ctx, p); err != nil {
			s.log.Error("autosave failed",
				zap.String("identifier", p.Identifier()),
				zap.Int32("char_id", p.CharID()),
				zap.Error(err))
			return
		}
		count++
	})
	if count > 0 {
		s.log.Info("autosave complete", zap.Int("players", count))
	}
}
