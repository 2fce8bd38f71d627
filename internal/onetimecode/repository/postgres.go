package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pawplanner/backend/internal/onetimecode/domain"
)

const codeColumns = `id, kind, user_id, code_hash, expires_at, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a one-time code repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Replace runs the delete and insert in one transaction so a user never has two live codes of a kind.
func (r *PostgresRepository) Replace(ctx context.Context, c *domain.Code) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM one_time_codes WHERE user_id = $1 AND kind = $2`, c.UserID, string(c.Kind)); err != nil {
		return fmt.Errorf("delete pending codes: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO one_time_codes (`+codeColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, string(c.Kind), c.UserID, c.CodeHash, c.ExpiresAt, c.CreatedAt); err != nil {
		return fmt.Errorf("insert code: %w", err)
	}
	return tx.Commit()
}

// FindByHash matches the hash exactly; there is no prefix or case-insensitive comparison.
func (r *PostgresRepository) FindByHash(ctx context.Context, kind domain.Kind, hash string) (*domain.Code, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE kind = $1 AND code_hash = $2`, string(kind), hash)
	return scanOptional(row)
}

func (r *PostgresRepository) FindForUser(ctx context.Context, kind domain.Kind, userID, hash string) (*domain.Code, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM one_time_codes WHERE kind = $1 AND user_id = $2 AND code_hash = $3`,
		string(kind), userID, hash)
	return scanOptional(row)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM one_time_codes WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanOptional(row *sql.Row) (*domain.Code, error) {
	var (
		c    domain.Code
		kind string
	)
	err := row.Scan(&c.ID, &kind, &c.UserID, &c.CodeHash, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Kind = domain.Kind(kind)
	return &c, nil
}
