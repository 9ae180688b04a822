package catalog

import (
	"testing"

	"github.com/jthornton/deploycart/detection"
)

func TestStoreInterface(t *testing.T) {
	var _ Store = (*InMemoryStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}

func testApp(id string) *App {
	inst := detection.Installer{
		Type:         detection.TypeMsi,
		Architecture: detection.ArchX64,
		Scope:        detection.ScopeMachine,
		URL:          "https://example.com/app.msi",
		ProductCode:  "{12345678-1234-1234-1234-123456789012}",
	}
	return &App{
		ID:               id,
		Name:             "Test App",
		Installer:        inst,
		Rules:            detection.Synthesize(inst, "Test App", "", ""),
		InstallCommand:   detection.BuildInstallCommand(inst, inst.Scope),
		UninstallCommand: detection.BuildUninstallCommand(inst, "Test App"),
		Provenance:       "engine",
	}
}

func TestInMemoryStoreAddAndGet(t *testing.T) {
	store := NewInMemoryStore()

	app := testApp("app-1")
	if err := store.Add(app); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	got, err := store.Get("app-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "Test App" {
		t.Errorf("Name = %s, want Test App", got.Name)
	}
	if len(got.Rules) != 1 {
		t.Fatalf("Rules = %d, want 1", len(got.Rules))
	}
	if _, ok := got.Rules[0].(detection.MsiRule); !ok {
		t.Errorf("rule is %T, want MsiRule", got.Rules[0])
	}
	if got.CreatedAt.IsZero() {
		t.Error("Add() should stamp CreatedAt")
	}
}

func TestInMemoryStoreAddDuplicate(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Add(testApp("dup")); err != nil {
		t.Fatalf("first Add() failed: %v", err)
	}
	if err := store.Add(testApp("dup")); err == nil {
		t.Error("Add() with duplicate ID should fail")
	}
}

func TestInMemoryStoreList(t *testing.T) {
	store := NewInMemoryStore()

	store.Add(testApp("a"))
	store.Add(testApp("b"))

	apps, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(apps) != 2 {
		t.Errorf("List() returned %d apps, want 2", len(apps))
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()

	store.Add(testApp("d"))
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
