package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"pawplanner/backend/internal/session/domain"
	userdomain "pawplanner/backend/internal/user/domain"
)

const uniqueViolation = "23505"

const sessionColumns = `id, user_id, created_at, updated_at, expires_at, last_active_at, ip_address, user_agent, city, country`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session. Returns ErrConflict when the id is taken.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.CreatedAt, s.UpdatedAt, s.ExpiresAt, s.LastActiveAt,
		nullString(s.IPAddress), nullString(s.UserAgent), nullString(s.City), nullString(s.Country),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Find returns the session for id joined with its user, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Find(ctx context.Context, id string) (*domain.Session, *userdomain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT s.id, s.user_id, s.created_at, s.updated_at, s.expires_at, s.last_active_at,
       s.ip_address, s.user_agent, s.city, s.country,
       u.id, u.org_id, u.role, u.name, u.email, u.banned_at, u.banned_until, u.timezone, u.created_at, u.updated_at
FROM sessions s
LEFT JOIN users u ON u.id = s.user_id
WHERE s.id = $1`, id)

	var (
		s                                   domain.Session
		ip, ua, city, country               sql.NullString
		uID, uOrg, uRole, uName, uEmail, tz sql.NullString
		bannedAt, bannedUntil               sql.NullTime
		uCreated, uUpdated                  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt, &s.LastActiveAt,
		&ip, &ua, &city, &country,
		&uID, &uOrg, &uRole, &uName, &uEmail, &bannedAt, &bannedUntil, &tz, &uCreated, &uUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	s.Fingerprint = domain.Fingerprint{IPAddress: ip.String, UserAgent: ua.String, City: city.String, Country: country.String}
	if !uID.Valid {
		return &s, nil, nil
	}
	u := &userdomain.User{
		ID:          uID.String,
		OrgID:       uOrg.String,
		Role:        userdomain.Role(uRole.String),
		Name:        uName.String,
		Email:       uEmail.String,
		BannedAt:    nullTimeToPtr(bannedAt),
		BannedUntil: nullTimeToPtr(bannedUntil),
		Timezone:    tz.String,
		CreatedAt:   uCreated.Time,
		UpdatedAt:   uUpdated.Time,
	}
	return &s, u, nil
}

// Touch advances the activity timestamps with GREATEST so concurrent or repeated
// touches converge on the latest time, and writes only the supplied fingerprint fields.
func (r *PostgresRepository) Touch(ctx context.Context, id string, at time.Time, upd domain.FingerprintUpdate) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE sessions SET
  last_active_at = GREATEST(last_active_at, $2),
  updated_at     = GREATEST(updated_at, $2),
  ip_address     = COALESCE($3, ip_address),
  user_agent     = COALESCE($4, user_agent),
  city           = COALESCE($5, city),
  country        = COALESCE($6, country)
WHERE id = $1`,
		id, at, nullStringPtr(upd.IPAddress), nullStringPtr(upd.UserAgent), nullStringPtr(upd.City), nullStringPtr(upd.Country),
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

// Delete removes the session with the given id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteAllForUser removes every session of userID and returns how many were removed.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListForUser returns all sessions of userID ordered by last activity, newest first.
func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY last_active_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*domain.Session, 0)
	for rows.Next() {
		var (
			s                     domain.Session
			ip, ua, city, country sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt, &s.LastActiveAt,
			&ip, &ua, &city, &country); err != nil {
			return nil, err
		}
		s.Fingerprint = domain.Fingerprint{IPAddress: ip.String, UserAgent: ua.String, City: city.String, Country: country.String}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeleteExpired removes sessions that expired at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
