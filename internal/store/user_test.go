package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pulsecrm/apiserver/internal/db"
	"github.com/pulsecrm/apiserver/types"
)

func newTestRepo(t *testing.T) *UserRepository {
	t.Helper()

	ctx := context.Background()
	database, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "store_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	schema := `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL DEFAULT 'staff',
			active BOOLEAN NOT NULL DEFAULT 1,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`
	if _, err := database.ExecContext(ctx, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	return NewUserRepository(database)
}

func seedUser(t *testing.T, repo *UserRepository, email string, role types.Role) types.User {
	t.Helper()
	user, err := repo.Create(context.Background(), types.User{
		Name:         "Test User",
		Email:        email,
		Role:         role,
		Active:       true,
		PasswordHash: "$2a$10$fakefakefakefakefakefake",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	created := seedUser(t, repo, "Ada@Example.com", types.RoleAdministrator)
	if created.ID == 0 {
		t.Fatal("expected a generated id")
	}
	if created.Email != "ada@example.com" {
		t.Fatalf("email should be lowercased on write, got %q", created.Email)
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Email != "ada@example.com" || got.Role != types.RoleAdministrator || !got.Active {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestUserRepository_GetByEmailCaseInsensitive(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "ada@example.com", types.RoleStaff)

	got, err := repo.GetByEmail(ctx, "ADA@Example.COM")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Fatalf("unexpected email %q", got.Email)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetActive(ctx, 999, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_SetActive(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "staff@example.com", types.RoleStaff)

	if err := repo.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.Active {
		t.Fatal("user should be inactive")
	}
}

func TestUserRepository_List(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, "a@example.com", types.RoleAdministrator)
	seedUser(t, repo, "b@example.com", types.RoleStaff)

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].ID >= users[1].ID {
		t.Fatal("users should be ordered by id")
	}
}

func TestUserRepository_RejectsUnknownRole(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t)
	ctx := context.Background()
	user := seedUser(t, repo, "odd@example.com", types.RoleStaff)

	// Corrupt the row under the repository to simulate bad data.
	if _, err := repo.db.ExecContext(ctx, `UPDATE users SET role = 'superuser' WHERE id = ?`, user.ID); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, err := repo.GetByID(ctx, user.ID); err == nil {
		t.Fatal("expected an error for an unknown role")
	}
}
