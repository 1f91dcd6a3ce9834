package slaconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
)

func responseYAML(minutes float64) string {
	return fmt.Sprintf("tiers:\n  gold:\n    high:\n      response: %g\n", minutes)
}

func startWatch(t *testing.T, store *Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = Watch(ctx, store, zap.NewNop())
	}()
	// Give the watcher a moment to attach before mutating the file.
	time.Sleep(100 * time.Millisecond)
}

func waitForTarget(t *testing.T, store *Store, want float64) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if target, ok := store.Current().Target("gold", "high", domain.SLATypeResponse); ok && target == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("config never reloaded to response target %v", want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, responseYAML(30))
	store := NewStore(path, zap.NewNop())
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	startWatch(t, store)

	if err := os.WriteFile(path, []byte(responseYAML(5)), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	waitForTarget(t, store, 5)
}

func TestWatch_SurvivesAtomicSaveByRename(t *testing.T) {
	path := writeConfig(t, responseYAML(30))
	store := NewStore(path, zap.NewNop())
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	startWatch(t, store)

	// vim-style atomic save: write a temp file, rename it over the target.
	// The watched inode disappears; the watcher must re-attach to the path.
	tmp := filepath.Join(filepath.Dir(path), "sla_config.yaml.tmp")
	if err := os.WriteFile(tmp, []byte(responseYAML(5)), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename over config: %v", err)
	}
	waitForTarget(t, store, 5)

	// Hot reload still works for the save after that.
	if err := os.WriteFile(path, []byte(responseYAML(7)), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	waitForTarget(t, store, 7)
}
