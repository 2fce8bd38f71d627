package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pawplanner/backend/internal/user/domain"
)

// ErrNotFound is returned by SetBan when no user has the given id.
var ErrNotFound = errors.New("user not found")

const userColumns = `id, org_id, role, name, email, banned_at, banned_until, timezone, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, domain.NormalizeEmail(email))
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// ListByOrg returns the users of orgID ordered by name.
func (r *PostgresRepository) ListByOrg(ctx context.Context, orgID string) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE org_id = $1 ORDER BY name, email`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Create persists the user to the database. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.OrgID, string(u.Role), nullString(u.Name), domain.NormalizeEmail(u.Email),
		timeToNullTime(u.BannedAt), timeToNullTime(u.BannedUntil), u.Timezone, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// SetBan updates the ban columns of userID. Returns ErrNotFound if no row was updated.
func (r *PostgresRepository) SetBan(ctx context.Context, userID string, bannedAt, bannedUntil *time.Time) error {
	if bannedAt == nil {
		bannedUntil = nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET banned_at = $2, banned_until = $3, updated_at = now() WHERE id = $1`,
		userID, timeToNullTime(bannedAt), timeToNullTime(bannedUntil),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*domain.User, error) {
	var (
		u           domain.User
		role        string
		name        sql.NullString
		bannedAt    sql.NullTime
		bannedUntil sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.OrgID, &role, &name, &u.Email, &bannedAt, &bannedUntil, &u.Timezone, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.Name = name.String
	u.BannedAt = nullTimeToPtr(bannedAt)
	u.BannedUntil = nullTimeToPtr(bannedUntil)
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
