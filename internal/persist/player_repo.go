package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// CharacterRow is one stored character joined with its account row. The
// blob columns stay raw here; decoding them (with per-field defaults) is
// the entity loader's job.
type CharacterRow struct {
	ID         int32
	Identifier string
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

// SaveRow carries the fields the periodic flush writes back: the account
// row's group and slot count, and the character row's mutable blobs.
// Appearance and identity are load-only and not part of the flush.
type SaveRow struct {
	CharID     int32
	Identifier string
	Group      string
	Slots      int
	Accounts   []byte
	Status     []byte
	Inventory  []byte
	Job        []byte
	CharData   []byte
}

type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// LoadCharacter loads one character row by id, joined with the owning
// account row for group and slots. Returns nil when no such character.
func (r *PlayerRepo) LoadCharacter(ctx context.Context, charID int32) (*CharacterRow, error) {
	c := &CharacterRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT c.id, c.identifier,
		        c.accounts, c.appearance, c.char_data, c.identity,
		        c.inventory, c.job, c.status,
		        u."group", u.slots
		 FROM characters c
		 JOIN users u ON u.identifier = c.identifier
		 WHERE c.id = $1`, charID,
	).Scan(
		&c.ID, &c.Identifier,
		&c.Accounts, &c.Appearance, &c.CharData, &c.Identity,
		&c.Inventory, &c.Job, &c.Status,
		&c.Group, &c.Slots,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// EnsureUser creates the account row on first join.
func (r *PlayerRepo) EnsureUser(ctx context.Context, identifier, group string, slots int) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO users (identifier, "group", slots)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (identifier) DO NOTHING`,
		identifier, group, slots,
	)
	return err
}

// CreateCharacter inserts a fresh character row and returns its id.
func (r *PlayerRepo) CreateCharacter(ctx context.Context, row *SaveRow) (int32, error) {
	var id int32
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (identifier, accounts, status, inventory, job, char_data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		row.Identifier, row.Accounts, row.Status, row.Inventory, row.Job, row.CharData,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CharacterIDs returns the character ids stored for an identifier.
func (r *PlayerRepo) CharacterIDs(ctx context.Context, identifier string) ([]int32, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id FROM characters WHERE identifier = $1 ORDER BY id`, identifier,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// execer is the subset of pgx.Tx the save statements need, split out so
// the two-statement transaction can be exercised with injected failures.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Save flushes one player as a single transaction: the account row
// (group, slots) and the character row (JSONB blobs). Either both
// updates apply or neither does.
func (r *PlayerRepo) Save(ctx context.Context, row *SaveRow) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := runSave(ctx, tx, row); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save commit: %w", err)
	}

	r.db.log.Info("player saved",
		zap.String("identifier", row.Identifier),
		zap.Int32("char_id", row.CharID))
	return nil
}

func runSave(ctx context.Context, tx execer, row *SaveRow) error {
	if _, err := tx.Exec(ctx,
		`UPDATE users SET "group" = $1, slots = $2 WHERE identifier = $3`,
		row.Group, row.Slots, row.Identifier,
	); err != nil {
		return fmt.Errorf("update user row: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE characters
		 SET accounts = $1, status = $2, inventory = $3, job = $4, char_data = $5
		 WHERE id = $6`,
		row.Accounts, row.Status, row.Inventory, row.Job, row.CharData, row.CharID,
	); err != nil {
		return fmt.Errorf("update character row: %w", err)
	}
	return nil
}
