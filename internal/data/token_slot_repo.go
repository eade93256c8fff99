package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-portal/internal/data/pgxutil"
	errs "github.com/target/mmk-portal/internal/errors"
	"github.com/target/mmk-portal/internal/ports"
)

var _ ports.TokenStore = (*TokenSlotRepo)(nil)

// TokenSlotRepo stores the session token as one row of token_slots.
type TokenSlotRepo struct {
	DB    *sql.DB
	Slot  string
	Clock TimeProvider
}

// NewTokenSlotRepo creates a repository bound to slot.
func NewTokenSlotRepo(db *sql.DB, slot string) *TokenSlotRepo {
	return &TokenSlotRepo{DB: db, Slot: slot, Clock: &RealTimeProvider{}}
}

func (r *TokenSlotRepo) now() TimeProvider {
	if r.Clock == nil {
		return &RealTimeProvider{}
	}
	return r.Clock
}

// Load reads the slot row. A missing row is an empty slot, not an error.
func (r *TokenSlotRepo) Load(ctx context.Context) (string, bool, error) {
	if r.Slot == "" {
		return "", false, ErrSlotRequired
	}

	var token string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT token FROM token_slots WHERE slot = $1`, r.Slot).Scan(&token)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load token slot %s: %w", r.Slot, errs.MapDBError(err))
	}
	return token, true, nil
}

// Save upserts the slot row.
func (r *TokenSlotRepo) Save(ctx context.Context, token string) error {
	if r.Slot == "" {
		return ErrSlotRequired
	}
	if token == "" {
		return ErrEmptyToken
	}

	const q = `
		INSERT INTO token_slots (slot, token, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (slot) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`
	if _, err := r.DB.ExecContext(ctx, q, r.Slot, token, r.now().Now().UTC()); err != nil {
		return fmt.Errorf("save token slot %s: %w", r.Slot, errs.MapDBError(err))
	}
	return nil
}

// Delete removes the slot row if present.
func (r *TokenSlotRepo) Delete(ctx context.Context) error {
	if r.Slot == "" {
		return ErrSlotRequired
	}
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DELETE FROM token_slots WHERE slot = $1`, r.Slot)
			return err
		},
	})
	if err != nil {
		return fmt.Errorf("delete token slot %s: %w", r.Slot, errs.MapDBError(err))
	}
	return nil
}
