package repository

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"library_api/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T, d Dialect) (*Repository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	repo := NewRepository(db, d)
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	}
	return repo, mock, cleanup
}

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name           string
		mockExpect     func(sqlmock.Sqlmock)
		wantID         int
		wantErr        error
		errContainsStr string
	}{
		{
			name: "success",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("alice", "a@example.com", "h123", models.RoleUser).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
			},
			wantID: 42,
		},
		{
			name: "unique violation maps to ErrDuplicate",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("alice", "a@example.com", "h123", models.RoleUser).
					WillReturnError(errors.New("UNIQUE constraint failed: users.username"))
			},
			wantErr: ErrDuplicate,
		},
		{
			name: "driver error wrapped",
			mockExpect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("alice", "a@example.com", "h123", models.RoleUser).
					WillReturnError(errors.New("disk I/O error"))
			},
			errContainsStr: "insert user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, done := newMockRepo(t, SQLite)
			defer done()
			tt.mockExpect(mock)

			id, err := repo.Users.Create(context.Background(), &models.User{
				Username: "alice", Email: "a@example.com", PasswordHash: "h123", Role: models.RoleUser,
			})
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.errContainsStr != "":
				if err == nil || !strings.Contains(err.Error(), tt.errContainsStr) {
					t.Fatalf("expected error containing %q, got %v", tt.errContainsStr, err)
				}
				if errors.Is(err, ErrDuplicate) {
					t.Fatalf("plain driver error must not be reported as duplicate")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if id != tt.wantID {
					t.Fatalf("expected id %d, got %d", tt.wantID, id)
				}
			}
		})
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	repo, mock, done := newMockRepo(t, SQLite)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role"}).
			AddRow(7, "alice", "a@example.com", "hash", models.RoleAdmin))
	mock.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role"}))

	u, err := repo.Users.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil || u.ID != 7 || !u.IsAdmin() || u.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", u)
	}

	u, err = repo.Users.GetByUsername(context.Background(), "ghost")
	if err != nil || u != nil {
		t.Fatalf("expected (nil, nil) for missing user, got (%+v, %v)", u, err)
	}
}

func TestUserRepository_UpdateRole_PostgresPlaceholders(t *testing.T) {
	repo, mock, done := newMockRepo(t, Postgres)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET role = $1 WHERE id = $2`)).
		WithArgs(models.RoleAdmin, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET role = $1 WHERE id = $2`)).
		WithArgs(models.RoleAdmin, 4).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Users.UpdateRole(context.Background(), 3, models.RoleAdmin)
	if err != nil || !ok {
		t.Fatalf("expected (true, nil), got (%v, %v)", ok, err)
	}
	ok, err = repo.Users.UpdateRole(context.Background(), 4, models.RoleAdmin)
	if err != nil || ok {
		t.Fatalf("expected (false, nil) for missing user, got (%v, %v)", ok, err)
	}
}
