package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreFindByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "password_hash", "role", "status", "created_at", "updated_at"}).
		AddRow("u1", "admin@demo.com", "Dana", "Reyes", "hash", "admin", "active", now, now)
	mock.ExpectQuery("select id, email, first_name, last_name, password_hash, role, status, created_at, updated_at from users where email=").
		WithArgs("admin@demo.com").
		WillReturnRows(rows)

	store := NewPGStore(db)
	u, err := store.FindByEmail(context.Background(), "Admin@Demo.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if u.ID != "u1" || u.Role != RoleAdmin {
		t.Fatalf("unexpected user: %+v", u)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, email").WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewPGStore(db)
	if _, err := store.Find(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), "agent@demo.com", "Marco", "Lindqvist", "hash", "agent", "active").
		WillReturnError(errors.New(`duplicate key value violates unique constraint "users_email_key" (SQLSTATE 23505)`))

	store := NewPGStore(db)
	u := &User{Email: "Agent@demo.com", FirstName: "Marco", LastName: "Lindqvist", PasswordHash: "hash", Role: RoleAgent}
	if err := store.Create(context.Background(), u); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPGStoreUpdateRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update users set role=").
		WithArgs("u1", "agent").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update users set role=").
		WithArgs("missing", "agent").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.UpdateRole(context.Background(), "u1", RoleAgent); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if err := store.UpdateRole(context.Background(), "missing", RoleAgent); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateRole(context.Background(), "u1", Role("landlord")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
