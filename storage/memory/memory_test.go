package memory

import (
	"errors"
	"testing"

	"github.com/jmcleod/keyrelay/storage"
)

func TestRepository(t *testing.T) {
	repo := NewRepository()

	t.Run("PutGet", func(t *testing.T) {
		if err := repo.Put("sessions", "ps", "0", []byte(`{"uid":"u1"}`)); err != nil {
			t.Fatalf("put: %v", err)
		}
		got, err := repo.Get("sessions", "ps", "0")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got) != `{"uid":"u1"}` {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get("sessions", "ps", "999")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("GetMissingScope", func(t *testing.T) {
		_, err := repo.Get("nope", "ps", "0")
		if !errors.Is(err, storage.ErrScopeNotFound) {
			t.Fatalf("want ErrScopeNotFound, got %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		repo.Put("sessions", "ps", "1", []byte("a"))
		repo.Put("sessions", "ps", "1", []byte("b"))
		got, err := repo.Get("sessions", "ps", "1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got) != "b" {
			t.Fatalf("got %q, want b", got)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo.Put("sessions", "refresh", "u1", []byte("t"))
		ids, err := repo.List("sessions", "ps")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(ids) != 2 {
			t.Fatalf("got %d ids %v, want 2", len(ids), ids)
		}
		// Records of other types must not leak into the listing.
		for _, id := range ids {
			if id == "u1" {
				t.Fatal("refresh record listed under ps")
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo.Put("sessions", "ps", "2", []byte("x"))
		if err := repo.Delete("sessions", "ps", "2"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := repo.Get("sessions", "ps", "2"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("want ErrNotFound after delete, got %v", err)
		}
		if err := repo.Delete("sessions", "ps", "2"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("want ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("ValueIsolation", func(t *testing.T) {
		v := []byte("mutable")
		repo.Put("sessions", "ps", "3", v)
		v[0] = 'X'
		got, _ := repo.Get("sessions", "ps", "3")
		if string(got) != "mutable" {
			t.Fatalf("stored value aliased caller slice: %q", got)
		}
	})
}
