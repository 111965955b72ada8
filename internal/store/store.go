package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pokebot/internal/game"
)

var ErrCatalogNotLoaded = errors.New("catalog not loaded")

// Store is the Postgres repository for trainers, owned creatures and the
// reference catalog.
type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger

	mu      sync.RWMutex
	catalog *game.Catalog
}

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

// Catalog returns the catalog loaded by LoadCatalog.
func (s *Store) Catalog() (*game.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return nil, ErrCatalogNotLoaded
	}
	return s.catalog, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// LoadCatalog reads every reference table once and swaps the result in.
func (s *Store) LoadCatalog(ctx context.Context) (*game.Catalog, error) {
	var data game.CatalogData
	data.TypeColors = map[string]int{}

	rows, err := s.db.Query(ctx, `SELECT name, color FROM types`)
	if err != nil {
		return nil, fmt.Errorf("load types: %w", err)
	}
	for rows.Next() {
		var name string
		var color int
		if err := rows.Scan(&name, &color); err != nil {
			rows.Close()
			return nil, err
		}
		data.TypeColors[name] = color
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT num, form_id, name, form, type, legendary, mythical,
		       hp, attack, defense, sp_attack, sp_defense, speed,
		       hp_yield, attack_yield, defense_yield, sp_attack_yield, sp_defense_yield, speed_yield,
		       xp_yield
		FROM pokemon
		ORDER BY num, form_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load species: %w", err)
	}
	for rows.Next() {
		var sp game.Species
		var form *string
		if err := rows.Scan(
			&sp.Num, &sp.FormID, &sp.BaseName, &form, &sp.Types, &sp.Legendary, &sp.Mythical,
			&sp.Base.HP, &sp.Base.Attack, &sp.Base.Defense, &sp.Base.SpAttack, &sp.Base.SpDefense, &sp.Base.Speed,
			&sp.Yield.HP, &sp.Yield.Attack, &sp.Yield.Defense, &sp.Yield.SpAttack, &sp.Yield.SpDefense, &sp.Yield.Speed,
			&sp.XPYield,
		); err != nil {
			rows.Close()
			return nil, err
		}
		if form != nil {
			sp.Form = *form
		}
		data.Species = append(data.Species, sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `
		SELECT id, num, prev, next, level, item, trade, trade_for
		FROM evolutions
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load evolutions: %w", err)
	}
	for rows.Next() {
		var r game.EvolutionRule
		var item *string
		if err := rows.Scan(&r.ID, &r.Num, &r.Prev, &r.Next, &r.Level, &item, &r.Trade, &r.TradeFor); err != nil {
			rows.Close()
			return nil, err
		}
		if item != nil {
			r.Item = *item
		}
		data.Evolutions = append(data.Evolutions, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `SELECT mod, name, increase, decrease FROM natures`)
	if err != nil {
		return nil, fmt.Errorf("load natures: %w", err)
	}
	for rows.Next() {
		var n game.Nature
		var inc, dec string
		if err := rows.Scan(&n.Mod, &n.Name, &inc, &dec); err != nil {
			rows.Close()
			return nil, err
		}
		n.Increase, n.Decrease = game.Stat(inc), game.Stat(dec)
		data.Natures = append(data.Natures, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `SELECT id, name, price FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	for rows.Next() {
		var it game.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price); err != nil {
			rows.Close()
			return nil, err
		}
		data.Items = append(data.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, `SELECT name, num FROM rewards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load rewards: %w", err)
	}
	for rows.Next() {
		var rw game.Reward
		if err := rows.Scan(&rw.Name, &rw.Quantity); err != nil {
			rows.Close()
			return nil, err
		}
		data.Rewards = append(data.Rewards, rw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catalog, err := game.NewCatalog(data)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	s.log.Info("catalog loaded", "species", len(data.Species), "evolutions", len(data.Evolutions), "items", len(data.Items))
	return catalog, nil
}

// Trainer fetches the trainer row, creating it on first contact.
func (s *Store) Trainer(ctx context.Context, userID int64) (game.Trainer, error) {
	return upsertTrainer(ctx, s.db, userID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func upsertTrainer(ctx context.Context, q querier, userID int64) (game.Trainer, error) {
	var t game.Trainer
	var secret int32
	err := q.QueryRow(ctx, `
		INSERT INTO trainers (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, secret_id, inventory
	`, userID).Scan(&t.UserID, &secret, &t.Inventory)
	if err != nil {
		return t, fmt.Errorf("upsert trainer %d: %w", userID, err)
	}
	t.SecretID = uint32(secret)
	if t.Inventory == nil {
		t.Inventory = game.Inventory{}
	}
	return t, nil
}

// ApplyInventory adds delta to the trainer's inventory under a row lock.
// A delta that would leave money or any item negative fails with
// ErrTooPoor / ErrNoItem and changes nothing.
func (s *Store) ApplyInventory(ctx context.Context, userID int64, delta game.Inventory) (game.Inventory, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	inv, err := applyInventoryTx(ctx, tx, userID, delta)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inv, nil
}

func applyInventoryTx(ctx context.Context, tx pgx.Tx, userID int64, delta game.Inventory) (game.Inventory, error) {
	if _, err := upsertTrainer(ctx, tx, userID); err != nil {
		return nil, err
	}
	var current game.Inventory
	err := tx.QueryRow(ctx, `
		SELECT inventory FROM trainers WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&current)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = game.Inventory{}
	}
	for k, v := range delta {
		if current[k]+v >= 0 {
			continue
		}
		if k == game.MoneyKey {
			return nil, game.ErrTooPoor
		}
		return nil, fmt.Errorf("%s: %w", k, game.ErrNoItem)
	}
	next := current.Apply(delta)
	if _, ok := next[game.MoneyKey]; !ok {
		next[game.MoneyKey] = 0
	}
	if _, err := tx.Exec(ctx, `
		UPDATE trainers SET inventory = $1 WHERE user_id = $2
	`, next, userID); err != nil {
		return nil, err
	}
	return next, nil
}

// MarkSeen records species as encountered. Duplicates are ignored.
func (s *Store) MarkSeen(ctx context.Context, userID int64, nums ...int) error {
	if len(nums) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, n := range nums {
		batch.Queue(`INSERT INTO seen (user_id, num) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, n)
	}
	return s.db.SendBatch(ctx, batch).Close()
}

func markSeenTx(ctx context.Context, tx pgx.Tx, userID int64, nums []int) error {
	if len(nums) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO seen (user_id, num)
		SELECT $1, n FROM unnest($2::int[]) AS n
		ON CONFLICT DO NOTHING
	`, userID, nums)
	return err
}

func (s *Store) SeenSpecies(ctx context.Context, userID int64) ([]int, error) {
	rows, err := s.db.Query(ctx, `SELECT num FROM seen WHERE user_id = $1 ORDER BY num`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Plonk blacklists a user in a guild.
func (s *Store) Plonk(ctx context.Context, guildID, userID int64) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO plonks (guild_id, user_id) VALUES ($1, $2)`, guildID, userID)
	if isUniqueViolation(err) {
		return game.ErrAlreadyPlonked
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Unplonk reports whether an entry was removed.
func (s *Store) Unplonk(ctx context.Context, guildID, userID int64) (bool, error) {
	cmd, err := s.db.Exec(ctx, `DELETE FROM plonks WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (s *Store) IsPlonked(ctx context.Context, guildID, userID int64) (bool, error) {
	var plonked bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM plonks WHERE guild_id = $1 AND user_id = $2)
	`, guildID, userID).Scan(&plonked)
	return plonked, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
