package policy

import (
	"testing"
	"time"
)

func TestStoreInterface(t *testing.T) {
	var _ Store = (*InMemoryStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}

func TestInMemoryStoreAddAndGet(t *testing.T) {
	store := NewInMemoryStore()

	p := &Policy{
		ID:         "pol-1",
		Name:       "Block user scope",
		Expression: `Installer.scope == "user"`,
		Action:     ActionBlock,
		Active:     true,
	}

	if err := store.Add(p); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, err := store.Get("pol-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != p.Name || got.Action != ActionBlock {
		t.Errorf("Get() = %+v, want %+v", got, p)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Add() should stamp timestamps")
	}
}

func TestInMemoryStoreAddDuplicate(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Add(&Policy{ID: "dup", Name: "First"}); err != nil {
		t.Fatalf("first Add() failed: %v", err)
	}
	if err := store.Add(&Policy{ID: "dup", Name: "Second"}); err == nil {
		t.Error("Add() with duplicate ID should fail")
	}

	got, _ := store.Get("dup")
	if got.Name != "First" {
		t.Errorf("duplicate Add() should not overwrite, Name = %s", got.Name)
	}
}

func TestInMemoryStoreGetNotFound(t *testing.T) {
	store := NewInMemoryStore()

	if _, err := store.Get("missing"); err == nil {
		t.Error("Get() with unknown ID should fail")
	}
}

func TestInMemoryStoreListActive(t *testing.T) {
	store := NewInMemoryStore()

	store.Add(&Policy{ID: "a", Active: true})
	store.Add(&Policy{ID: "b", Active: false})
	store.Add(&Policy{ID: "c", Active: true})

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("ListActive() returned %d policies, want 2", len(active))
	}
}

func TestInMemoryStoreUpdatePreservesCreatedAt(t *testing.T) {
	store := NewInMemoryStore()

	p := &Policy{ID: "u", Name: "Before", Active: true}
	if err := store.Add(p); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	created := p.CreatedAt

	time.Sleep(time.Millisecond)

	updated := &Policy{ID: "u", Name: "After", Active: true}
	if err := store.Update(updated); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, _ := store.Get("u")
	if got.Name != "After" {
		t.Errorf("Name = %s, want After", got.Name)
	}
	if !got.CreatedAt.Equal(created) {
		t.Error("Update() should preserve CreatedAt")
	}
	if !got.UpdatedAt.After(created) {
		t.Error("Update() should advance UpdatedAt")
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()

	store.Add(&Policy{ID: "d"})
	if err := store.Delete("d"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get("d"); err == nil {
		t.Error("Get() after Delete() should fail")
	}
	if err := store.Delete("d"); err == nil {
		t.Error("second Delete() should fail")
	}
}
