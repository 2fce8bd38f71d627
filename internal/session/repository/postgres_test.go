package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"pawplanner/backend/internal/session/domain"
)

var findCols = []string{
	"id", "user_id", "created_at", "updated_at", "expires_at", "last_active_at",
	"ip_address", "user_agent", "city", "country",
	"id", "org_id", "role", "name", "email", "banned_at", "banned_until", "timezone", "created_at", "updated_at",
}

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresCreate(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)
	s := &domain.Session{
		ID: "s1", UserID: "u1", CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(720 * time.Hour), LastActiveAt: now,
		Fingerprint: domain.Fingerprint{IPAddress: "10.0.0.1", UserAgent: "Safari"},
	}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("s1", "u1", now, now, now.Add(720*time.Hour), now, "10.0.0.1", "Safari", nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mock.ExpectExec("INSERT INTO sessions").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	if err := repo.Create(context.Background(), s); err != ErrConflict {
		t.Errorf("duplicate Create: want ErrConflict, got %v", err)
	}

	mock.ExpectExec("INSERT INTO sessions").WillReturnError(errors.New("connection refused"))
	if err := repo.Create(context.Background(), s); err == nil || err == ErrConflict {
		t.Errorf("Create on broken connection: want raw error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresFind(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM sessions s\\s+LEFT JOIN users u").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(findCols).AddRow(
			"s1", "u1", now, now, now.Add(time.Hour), now, "10.0.0.1", "Safari", "Berlin", "DE",
			"u1", "o1", "owner", "Dana", "dana@example.com", nil, nil, "Europe/Berlin", now, now,
		))
	s, u, err := repo.Find(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if s == nil || s.ID != "s1" || s.City != "Berlin" || s.Country != "DE" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if u == nil || u.ID != "u1" || u.OrgID != "o1" || u.BannedAt != nil {
		t.Fatalf("unexpected user: %+v", u)
	}

	mock.ExpectQuery("FROM sessions s").
		WithArgs("orphan").
		WillReturnRows(sqlmock.NewRows(findCols).AddRow(
			"orphan", "gone", now, now, now.Add(time.Hour), now, nil, nil, nil, nil,
			nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
		))
	s, u, err = repo.Find(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("Find orphan: %v", err)
	}
	if s == nil || u != nil {
		t.Fatalf("orphan: session=%+v user=%+v, want session and nil user", s, u)
	}

	mock.ExpectQuery("FROM sessions s").WithArgs("missing").WillReturnError(sql.ErrNoRows)
	s, u, err = repo.Find(context.Background(), "missing")
	if err != nil || s != nil || u != nil {
		t.Fatalf("missing: got %+v %+v %v", s, u, err)
	}

	mock.ExpectQuery("FROM sessions s").WithArgs("s1").WillReturnError(errors.New("timeout"))
	if _, _, err := repo.Find(context.Background(), "s1"); err == nil {
		t.Fatal("Find should surface database errors")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresTouch(t *testing.T) {
	repo, mock := newMock(t)
	at := time.Date(2026, 2, 16, 12, 0, 46, 0, time.UTC)
	ip := "10.0.0.9"

	mock.ExpectExec("UPDATE sessions SET\\s+last_active_at = GREATEST\\(last_active_at, \\$2\\)").
		WithArgs("s1", at, ip, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Touch(context.Background(), "s1", at, domain.FingerprintUpdate{IPAddress: &ip}); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	mock.ExpectExec("UPDATE sessions SET").
		WithArgs("gone", at, nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Touch(context.Background(), "gone", at, domain.FingerprintUpdate{}); err != ErrNotFound {
		t.Errorf("Touch on missing session: want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresDeletes(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM sessions WHERE id = \\$1").WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	mock.ExpectExec("DELETE FROM sessions WHERE user_id = \\$1").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.DeleteAllForUser(context.Background(), "u1")
	if err != nil || n != 3 {
		t.Fatalf("DeleteAllForUser = %d, %v; want 3, nil", n, err)
	}

	mock.ExpectExec("DELETE FROM sessions WHERE expires_at <= \\$1").WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = repo.DeleteExpired(context.Background(), now)
	if err != nil || n != 2 {
		t.Fatalf("DeleteExpired = %d, %v; want 2, nil", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestPostgresListForUser(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 2, 16, 12, 0, 0, 0, time.UTC)
	cols := []string{"id", "user_id", "created_at", "updated_at", "expires_at", "last_active_at", "ip_address", "user_agent", "city", "country"}

	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE user_id = \\$1 ORDER BY last_active_at DESC").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("s2", "u1", now, now, now.Add(time.Hour), now.Add(time.Minute), "10.0.0.2", "Firefox", nil, nil).
			AddRow("s1", "u1", now, now, now.Add(time.Hour), now, "10.0.0.1", "Safari", "Berlin", "DE"))
	list, err := repo.ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != "s2" || list[1].City != "Berlin" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
