package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool() error = %v", err)
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sehri_kv").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	s, err := NewPostgresStore(context.Background(), mock)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	return s, mock
}

func TestPostgresStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("present", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectQuery("SELECT value FROM sehri_kv WHERE key").
			WithArgs("reminder.active").
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(`{"active":true}`))

		got, ok, err := s.Get(ctx, "reminder.active")
		if err != nil || !ok {
			t.Fatalf("Get() = ok %v, err %v", ok, err)
		}
		if got != `{"active":true}` {
			t.Errorf("Get() = %q", got)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		mock.ExpectQuery("SELECT value FROM sehri_kv WHERE key").
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		_, ok, err := s.Get(ctx, "nope")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if ok {
			t.Error("Get() ok = true for missing key")
		}
	})

	t.Run("driver error", func(t *testing.T) {
		s, mock := newMockPostgres(t)
		boom := errors.New("connection reset")
		mock.ExpectQuery("SELECT value FROM sehri_kv WHERE key").
			WithArgs("k").
			WillReturnError(boom)

		if _, _, err := s.Get(ctx, "k"); !errors.Is(err, boom) {
			t.Errorf("Get() error = %v, want %v", err, boom)
		}
	})
}

func TestPostgresStore_SetDelete(t *testing.T) {
	ctx := context.Background()
	s, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO sehri_kv").
		WithArgs("location.saved", `{"latitude":22.84}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM sehri_kv WHERE key").
		WithArgs("location.saved").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := s.Set(ctx, "location.saved", `{"latitude":22.84}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Delete(ctx, "location.saved"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNewPostgresStore_CreateTableFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool() error = %v", err)
	}
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	if _, err := NewPostgresStore(context.Background(), mock); err == nil {
		t.Fatal("NewPostgresStore() expected error")
	}
}
