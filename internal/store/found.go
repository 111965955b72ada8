package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pokebot/internal/game"
)

type OwnedFilter int

const (
	FilterAll OwnedFilter = iota
	FilterParty
)

const foundColumns = `
	f.id, f.num, f.form_id, f.name, f.ball, f.exp, f.item, f.party_position, f.owner,
	f.original_owner, f.personality,
	f.hp_iv, f.attack_iv, f.defense_iv, f.sp_attack_iv, f.sp_defense_iv, f.speed_iv,
	f.hp_ev, f.attack_ev, f.defense_ev, f.sp_attack_ev, f.sp_defense_ev, f.speed_ev,
	t.secret_id`

const foundFrom = `
	FROM found f
	JOIN trainers t ON t.user_id = f.original_owner`

type foundRow struct {
	id            int64
	num, formID   int
	nickname      *string
	ball          string
	exp           int
	item          *string
	partyPosition *int
	owner         *int64
	originalOwner int64
	personality   int64
	iv, ev        game.Stats
	secretID      int32
}

func scanFound(row pgx.Row) (foundRow, error) {
	var r foundRow
	err := row.Scan(
		&r.id, &r.num, &r.formID, &r.nickname, &r.ball, &r.exp, &r.item, &r.partyPosition, &r.owner,
		&r.originalOwner, &r.personality,
		&r.iv.HP, &r.iv.Attack, &r.iv.Defense, &r.iv.SpAttack, &r.iv.SpDefense, &r.iv.Speed,
		&r.ev.HP, &r.ev.Attack, &r.ev.Defense, &r.ev.SpAttack, &r.ev.SpDefense, &r.ev.Speed,
		&r.secretID,
	)
	return r, err
}

func materialize(c *game.Catalog, r foundRow) (game.FoundPokemon, error) {
	sp, err := c.Species(r.num, r.formID)
	if errors.Is(err, game.ErrNotFound) && r.formID != 0 {
		sp, err = c.Species(r.num, 0)
	}
	if err != nil {
		return game.FoundPokemon{}, fmt.Errorf("found %d: %w", r.id, err)
	}
	personality := uint32(r.personality)
	f := game.FoundPokemon{
		ID:            r.id,
		Species:       sp,
		Ball:          r.ball,
		Exp:           r.exp,
		PartyPosition: r.partyPosition,
		Owner:         r.owner,
		OriginalOwner: r.originalOwner,
		Personality:   personality,
		IV:            r.iv,
		EV:            r.ev,
		Nature:        c.Nature(personality),
		Shiny:         game.IsShiny(r.originalOwner, uint32(r.secretID), personality),
	}
	if r.nickname != nil {
		f.Nickname = *r.nickname
	}
	if r.item != nil {
		f.Item = *r.item
	}
	return f, nil
}

// OwnedPokemon lists a trainer's creatures, party members first in slot
// order, then by species.
func (s *Store) OwnedPokemon(ctx context.Context, owner int64, filter OwnedFilter) ([]game.FoundPokemon, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + foundColumns + foundFrom + ` WHERE f.owner = $1`
	if filter == FilterParty {
		query += ` AND f.party_position IS NOT NULL`
	}
	query += ` ORDER BY f.party_position, f.num, f.form_id, f.id`

	rows, err := s.db.Query(ctx, query, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []game.FoundPokemon
	for rows.Next() {
		r, err := scanFound(rows)
		if err != nil {
			return nil, err
		}
		f, err := materialize(catalog, r)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) FoundByID(ctx context.Context, id int64) (game.FoundPokemon, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return game.FoundPokemon{}, err
	}
	r, err := scanFound(s.db.QueryRow(ctx, `SELECT `+foundColumns+foundFrom+` WHERE f.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.FoundPokemon{}, fmt.Errorf("found %d: %w", id, game.ErrNotFound)
	}
	if err != nil {
		return game.FoundPokemon{}, err
	}
	return materialize(catalog, r)
}

// InsertCaught stores a new catch owned by, and originally owned by, c.Owner.
func (s *Store) InsertCaught(ctx context.Context, c game.NewCatch) (int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := upsertTrainer(ctx, tx, c.Owner); err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO found (num, form_id, ball, exp, owner, original_owner, personality,
		                   hp_iv, attack_iv, defense_iv, sp_attack_iv, sp_defense_iv, speed_iv)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, c.Species.Num, c.Species.FormID, c.Ball, c.Exp, c.Owner, int64(c.Personality),
		c.IV.HP, c.IV.Attack, c.IV.Defense, c.IV.SpAttack, c.IV.SpDefense, c.IV.Speed).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert caught: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// SetNickname reports false when owner no longer owns id. An empty nickname
// clears it.
func (s *Store) SetNickname(ctx context.Context, owner, id int64, nickname string) (bool, error) {
	var name *string
	if nickname != "" {
		name = &nickname
	}
	cmd, err := s.db.Exec(ctx, `UPDATE found SET name = $1 WHERE id = $2 AND owner = $3`, name, id, owner)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// SetSpecies evolves id into num. The base form is used since forms do not
// carry across evolution lines.
func (s *Store) SetSpecies(ctx context.Context, id int64, num int) error {
	_, err := s.db.Exec(ctx, `UPDATE found SET num = $1, form_id = 0 WHERE id = $2`, num, id)
	return err
}

// UseEvolutionItem consumes one item from owner's inventory and, when
// evolveTo is non-zero, evolves id in the same transaction.
func (s *Store) UseEvolutionItem(ctx context.Context, owner, id int64, item string, evolveTo int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM found WHERE id = $1 AND owner = $2)
	`, id, owner).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if _, err := applyInventoryTx(ctx, tx, owner, game.Inventory{item: -1}); err != nil {
		return false, err
	}
	if evolveTo != 0 {
		if _, err := tx.Exec(ctx, `UPDATE found SET num = $1, form_id = 0 WHERE id = $2`, evolveTo, id); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

// AddYield accumulates EVs and experience on id.
func (s *Store) AddYield(ctx context.Context, id int64, y game.Yield) (int, error) {
	var exp int
	err := s.db.QueryRow(ctx, `
		UPDATE found SET
			exp = exp + $2,
			hp_ev = hp_ev + $3, attack_ev = attack_ev + $4, defense_ev = defense_ev + $5,
			sp_attack_ev = sp_attack_ev + $6, sp_defense_ev = sp_defense_ev + $7, speed_ev = speed_ev + $8
		WHERE id = $1
		RETURNING exp
	`, id, y.Exp, y.EV.HP, y.EV.Attack, y.EV.Defense, y.EV.SpAttack, y.EV.SpDefense, y.EV.Speed).Scan(&exp)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("found %d: %w", id, game.ErrNotFound)
	}
	return exp, err
}

// AddToParty places id in the first free slot. It reports false when owner no
// longer owns id or it is already in the party.
func (s *Store) AddToParty(ctx context.Context, owner, id int64, max int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if err := lockTrainer(ctx, tx, owner); err != nil {
		return false, err
	}
	var size int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM found WHERE owner = $1 AND party_position IS NOT NULL
	`, owner).Scan(&size); err != nil {
		return false, err
	}
	if size >= max {
		return false, game.ErrPartyFull
	}
	cmd, err := tx.Exec(ctx, `
		UPDATE found SET party_position = $1
		WHERE id = $2 AND owner = $3 AND party_position IS NULL
	`, size, id, owner)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	return true, tx.Commit(ctx)
}

// RemoveFromParty clears id's slot and closes the gap behind it.
func (s *Store) RemoveFromParty(ctx context.Context, owner, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if err := lockTrainer(ctx, tx, owner); err != nil {
		return false, err
	}
	var pos *int
	err = tx.QueryRow(ctx, `SELECT party_position FROM found WHERE id = $1 AND owner = $2`, id, owner).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if pos == nil {
		return false, game.ErrNotInParty
	}
	if _, err := tx.Exec(ctx, `UPDATE found SET party_position = NULL WHERE id = $1`, id); err != nil {
		return false, err
	}
	if err := compactPartyTx(ctx, tx, owner); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// MoveInParty swaps id with its neighbour delta slots away (delta is +1 or -1).
// Moving past either end is a no-op reported as false.
func (s *Store) MoveInParty(ctx context.Context, owner, id int64, delta int) (bool, error) {
	if delta != 1 && delta != -1 {
		return false, fmt.Errorf("party move delta must be 1 or -1, got %d", delta)
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if err := lockTrainer(ctx, tx, owner); err != nil {
		return false, err
	}
	var pos *int
	err = tx.QueryRow(ctx, `SELECT party_position FROM found WHERE id = $1 AND owner = $2`, id, owner).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if pos == nil {
		return false, game.ErrNotInParty
	}
	target := *pos + delta
	cmd, err := tx.Exec(ctx, `
		UPDATE found SET party_position = $1 WHERE owner = $2 AND party_position = $3
	`, *pos, owner, target)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		return false, nil
	}
	if _, err := tx.Exec(ctx, `UPDATE found SET party_position = $1 WHERE id = $2`, target, id); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *Store) ClearParty(ctx context.Context, owner int64) (int64, error) {
	cmd, err := s.db.Exec(ctx, `
		UPDATE found SET party_position = NULL WHERE owner = $1 AND party_position IS NOT NULL
	`, owner)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func lockTrainer(ctx context.Context, tx pgx.Tx, userID int64) error {
	var id int64
	err := tx.QueryRow(ctx, `SELECT user_id FROM trainers WHERE user_id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("trainer %d: %w", userID, game.ErrNotFound)
	}
	return err
}

func compactPartyTx(ctx context.Context, tx pgx.Tx, owner int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE found f SET party_position = r.pos
		FROM (
			SELECT id, (row_number() OVER (ORDER BY party_position) - 1)::int AS pos
			FROM found
			WHERE owner = $1 AND party_position IS NOT NULL
		) r
		WHERE f.id = r.id AND f.party_position <> r.pos
	`, owner)
	return err
}

// lockOwned locks ids and fails with ErrStaleSelection unless owner still
// owns every one of them.
func lockOwned(ctx context.Context, tx pgx.Tx, owner int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT id FROM found WHERE id = ANY($1) AND owner = $2 FOR UPDATE
		) locked
	`, ids, owner).Scan(&n)
	if err != nil {
		return err
	}
	if n != len(ids) {
		return game.ErrStaleSelection
	}
	return nil
}

// Release sells ids: ownership is cleared and credit is added to owner's
// money in one transaction.
func (s *Store) Release(ctx context.Context, owner int64, ids []int64, credit int) (game.Inventory, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockOwned(ctx, tx, owner, ids); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE found SET owner = NULL, party_position = NULL WHERE id = ANY($1) AND owner = $2
	`, ids, owner); err != nil {
		return nil, err
	}
	if err := compactPartyTx(ctx, tx, owner); err != nil {
		return nil, err
	}
	inv, err := applyInventoryTx(ctx, tx, owner, game.Inventory{game.MoneyKey: credit})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inv, nil
}

// TradeSide is one party's outgoing creatures.
type TradeSide struct {
	UserID int64
	IDs    []int64
}

// Settlement is an agreed trade. Evolve maps found id to the species it
// turns into on arrival.
type Settlement struct {
	A, B   TradeSide
	Evolve map[int64]int
}

// SettleTrade applies evolutions, swaps ownership and marks seen for both
// sides atomically. Any id no longer owned by its side aborts the trade with
// ErrStaleSelection.
func (s *Store) SettleTrade(ctx context.Context, st Settlement) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, side := range []TradeSide{st.A, st.B} {
		if _, err := upsertTrainer(ctx, tx, side.UserID); err != nil {
			return err
		}
		if err := lockOwned(ctx, tx, side.UserID, side.IDs); err != nil {
			return err
		}
	}
	for id, num := range st.Evolve {
		if _, err := tx.Exec(ctx, `UPDATE found SET num = $1, form_id = 0 WHERE id = $2`, num, id); err != nil {
			return err
		}
	}
	moves := []struct {
		from, to TradeSide
	}{{st.A, st.B}, {st.B, st.A}}
	for _, m := range moves {
		if len(m.from.IDs) == 0 {
			continue
		}
		rows, err := tx.Query(ctx, `
			UPDATE found SET owner = $1, party_position = NULL
			WHERE id = ANY($2) AND owner = $3
			RETURNING num
		`, m.to.UserID, m.from.IDs, m.from.UserID)
		if err != nil {
			return err
		}
		var nums []int
		for rows.Next() {
			var n int
			if err := rows.Scan(&n); err != nil {
				rows.Close()
				return err
			}
			nums = append(nums, n)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(nums) != len(m.from.IDs) {
			return game.ErrStaleSelection
		}
		if err := markSeenTx(ctx, tx, m.to.UserID, nums); err != nil {
			return err
		}
	}
	for _, side := range []TradeSide{st.A, st.B} {
		if err := compactPartyTx(ctx, tx, side.UserID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
