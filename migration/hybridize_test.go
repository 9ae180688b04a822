package migration

import (
	"context"
	"strings"
	"testing"

	"github.com/jthornton/deploycart/detection"
	"github.com/jthornton/deploycart/policy"
)

func msiItem(id string) Item {
	return Item{
		AppID:       id,
		DisplayName: "Test App",
		Installer: &detection.Installer{
			Type:         detection.TypeMsi,
			Architecture: detection.ArchX64,
			Scope:        detection.ScopeMachine,
			URL:          "https://example.com/app.msi",
			ProductCode:  "{12345678-1234-1234-1234-123456789012}",
		},
	}
}

func externalRules() detection.RuleSet {
	return detection.RuleSet{
		detection.FileRule{
			Path:             `%ProgramFiles%`,
			FileOrFolderName: "Legacy App",
			DetectionType:    detection.FileDetectionExists,
		},
	}
}

func TestMigrateEngineProvenance(t *testing.T) {
	h := NewHybridizer(nil)

	result := h.Migrate(msiItem("app-1"), Options{})

	if result.Blocked() {
		t.Fatalf("item should not be blocked: %v", result.BlockingReasons)
	}
	if result.Provenance != ProvenanceEngine {
		t.Errorf("Provenance = %s, want engine", result.Provenance)
	}
	if len(result.Rules) != 1 {
		t.Fatalf("Rules = %d, want 1", len(result.Rules))
	}
	if _, ok := result.Rules[0].(detection.MsiRule); !ok {
		t.Errorf("rule is %T, want MsiRule", result.Rules[0])
	}
	if !strings.Contains(result.InstallCommand, "msiexec /i") {
		t.Errorf("InstallCommand = %q", result.InstallCommand)
	}
}

func TestMigratePreservesExternalRules(t *testing.T) {
	h := NewHybridizer(nil)

	item := msiItem("app-2")
	item.ExternalRules = externalRules()

	result := h.Migrate(item, Options{PreserveExternal: true})

	if result.Provenance != ProvenanceExternal {
		t.Errorf("Provenance = %s, want external", result.Provenance)
	}
	file, ok := result.Rules[0].(detection.FileRule)
	if !ok {
		t.Fatalf("rule is %T, want FileRule", result.Rules[0])
	}
	if file.FileOrFolderName != "Legacy App" {
		t.Errorf("external rule should be preserved verbatim, got %+v", file)
	}
}

func TestMigrateHybridIsLabelOnly(t *testing.T) {
	h := NewHybridizer(nil)

	item := msiItem("app-3")
	item.ExternalRules = externalRules()

	result := h.Migrate(item, Options{AllowMixing: true})

	if result.Provenance != ProvenanceHybrid {
		t.Errorf("Provenance = %s, want hybrid", result.Provenance)
	}
	// The hybrid path tags provenance without merging the two sets.
	if len(result.Rules) != 1 {
		t.Errorf("hybrid path should not interleave rule sets, got %d rules", len(result.Rules))
	}
}

func TestMigrateBlockedItems(t *testing.T) {
	h := NewHybridizer(nil)

	testCases := []struct {
		name   string
		item   Item
		reason string
	}{
		{"Already migrated", Item{AppID: "a", AlreadyMigrated: true}, "already migrated"},
		{"No installer", Item{AppID: "b"}, "no installer found"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := h.Migrate(tc.item, Options{})
			if !result.Blocked() {
				t.Fatal("item should be blocked")
			}
			if result.BlockingReasons[0] != tc.reason {
				t.Errorf("reason = %q, want %q", result.BlockingReasons[0], tc.reason)
			}
		})
	}
}

func TestMigrateValidatorErrorsBecomeWarnings(t *testing.T) {
	h := NewHybridizer(nil)

	item := msiItem("app-4")
	item.ExternalRules = detection.RuleSet{detection.MsiRule{}} // invalid: empty product code

	result := h.Migrate(item, Options{PreserveExternal: true})

	if result.Blocked() {
		t.Fatalf("validator findings must not block: %v", result.BlockingReasons)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "product code") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings %v should surface the validator error", result.Warnings)
	}
}

func TestMigratePlaceholderUninstallWarns(t *testing.T) {
	h := NewHybridizer(nil)

	item := msiItem("app-5")
	item.Installer.ProductCode = ""

	result := h.Migrate(item, Options{})

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "manual completion") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings %v should flag the placeholder uninstall command", result.Warnings)
	}
}

func TestMigrateWithPolicies(t *testing.T) {
	store := policy.NewInMemoryStore()
	store.Add(&policy.Policy{
		ID:         "block-user",
		Name:       "No user-scope installs",
		Expression: `Installer.scope == "user"`,
		Action:     policy.ActionBlock,
		Active:     true,
	})
	store.Add(&policy.Policy{
		ID:         "warn-x86",
		Name:       "Prefer 64-bit",
		Expression: `Installer.architecture == "x86"`,
		Action:     policy.ActionWarn,
		Active:     true,
	})

	engine, err := policy.NewEngine(store)
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	h := NewHybridizer(engine)

	item := msiItem("app-6")
	item.Installer.Scope = detection.ScopeUser
	item.Installer.Architecture = detection.ArchX86

	result := h.Migrate(item, Options{})

	if !result.Blocked() {
		t.Fatal("user-scope item should be blocked by policy")
	}
	if !strings.Contains(result.BlockingReasons[0], "No user-scope installs") {
		t.Errorf("blocking reason = %q", result.BlockingReasons[0])
	}

	warned := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "Prefer 64-bit") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("warnings %v should include the warn policy", result.Warnings)
	}
}

func TestMigrateBatchOrderAndProgress(t *testing.T) {
	h := NewHybridizer(nil)

	items := []Item{
		msiItem("app-a"),
		{AppID: "app-b", AlreadyMigrated: true},
		msiItem("app-c"),
	}

	var seen []string
	results := h.MigrateBatch(context.Background(), items, Options{}, func(i, n int, r Result) {
		if n != 3 {
			t.Errorf("total = %d, want 3", n)
		}
		seen = append(seen, r.AppID)
	})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"app-a", "app-b", "app-c"} {
		if results[i].AppID != want {
			t.Errorf("results[%d].AppID = %s, want %s", i, results[i].AppID, want)
		}
		if seen[i] != want {
			t.Errorf("progress[%d] = %s, want %s", i, seen[i], want)
		}
	}

	// A blocked item never aborts the batch.
	if !results[1].Blocked() {
		t.Error("app-b should be blocked")
	}
	if results[2].Blocked() {
		t.Error("app-c should have migrated despite app-b being blocked")
	}
}

func TestMigrateBatchContextCancellation(t *testing.T) {
	h := NewHybridizer(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := h.MigrateBatch(ctx, []Item{msiItem("app-x")}, Options{}, nil)
	if len(results) != 0 {
		t.Errorf("cancelled batch should produce no results, got %d", len(results))
	}
}

func TestMigrateDeterministicAcrossReruns(t *testing.T) {
	h := NewHybridizer(nil)

	item := msiItem("app-7")
	first := h.Migrate(item, Options{})
	second := h.Migrate(item, Options{})

	if first.InstallCommand != second.InstallCommand ||
		first.UninstallCommand != second.UninstallCommand ||
		first.Provenance != second.Provenance {
		t.Error("migration previews must be stable across re-runs")
	}
}
