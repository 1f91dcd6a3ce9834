package slaconfig

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
)

const validYAML = `
tiers:
  gold:
    high:
      response: 30
      resolution: 240
  silver:
    low:
      response: 240
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sla_config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestStore_ReloadAndLookup(t *testing.T) {
	store := NewStore(writeConfig(t, validYAML), zap.NewNop())
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	cfg := store.Current()
	if target, ok := cfg.Target("gold", "high", domain.SLATypeResponse); !ok || target != 30 {
		t.Errorf("gold/high/response: got %v/%v, want 30/true", target, ok)
	}
	if target, ok := cfg.Target("gold", "high", domain.SLATypeResolution); !ok || target != 240 {
		t.Errorf("gold/high/resolution: got %v/%v, want 240/true", target, ok)
	}
}

func TestTarget_MissingEntries(t *testing.T) {
	store := NewStore(writeConfig(t, validYAML), zap.NewNop())
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	cfg := store.Current()

	cases := []struct {
		name           string
		tier, priority string
		slaType        domain.SLAType
	}{
		{"unknown tier", "platinum", "high", domain.SLATypeResponse},
		{"unknown priority", "gold", "urgent", domain.SLATypeResponse},
		{"unset sla type", "silver", "low", domain.SLATypeResolution},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := cfg.Target(tc.tier, tc.priority, tc.slaType); ok {
				t.Errorf("Target(%s,%s,%s): got ok, want miss", tc.tier, tc.priority, tc.slaType)
			}
		})
	}
}

func TestStore_InvalidReloadKeepsPreviousSnapshot(t *testing.T) {
	path := writeConfig(t, validYAML)
	store := NewStore(path, zap.NewNop())
	if err := store.Reload(); err != nil {
		t.Fatalf("initial Reload: %v", err)
	}

	if err := os.WriteFile(path, []byte("{{not yaml"), 0o644); err != nil {
		t.Fatalf("write invalid config: %v", err)
	}
	if err := store.Reload(); err == nil {
		t.Fatal("expected reload error for invalid yaml")
	}

	// Previous snapshot stays active.
	if target, ok := store.Current().Target("gold", "high", domain.SLATypeResponse); !ok || target != 30 {
		t.Errorf("snapshot after failed reload: got %v/%v, want 30/true", target, ok)
	}
}

func TestStore_MissingTiersKeyRejected(t *testing.T) {
	store := NewStore(writeConfig(t, "targets: {}\n"), zap.NewNop())
	if err := store.Reload(); err == nil {
		t.Fatal("expected error for config without 'tiers'")
	}
}

func TestStore_MissingFileRejected(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop())
	if err := store.Reload(); err == nil {
		t.Fatal("expected error for missing file")
	}
	// Current still returns a usable (empty) snapshot.
	if _, ok := store.Current().Target("gold", "high", domain.SLATypeResponse); ok {
		t.Error("empty snapshot should miss every lookup")
	}
}

func TestStore_ConcurrentReadsDuringReload(t *testing.T) {
	path := writeConfig(t, validYAML)
	store := NewStore(path, zap.NewNop())
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = store.Reload()
		}
	}()

	for i := 0; i < 2000; i++ {
		cfg := store.Current()
		// Every observed snapshot must be complete.
		if target, ok := cfg.Target("gold", "high", domain.SLATypeResponse); !ok || target != 30 {
			t.Fatalf("partial snapshot observed: %v/%v", target, ok)
		}
	}
	<-done
}
