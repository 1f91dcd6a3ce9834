// Package slaconfig holds the hot-reloadable SLA target table. Readers get
// an immutable snapshot; reloads swap the whole table atomically, so a
// reader never observes a partially merged config.
package slaconfig

import (
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
)

// Targets holds the per-SLA-type deadlines in minutes.
type Targets struct {
	Response   float64 `yaml:"response"`
	Resolution float64 `yaml:"resolution"`
}

// SLAConfig maps tier -> priority -> targets. A snapshot is never mutated
// after it is published.
type SLAConfig map[string]map[string]Targets

// Target resolves the deadline for a tier/priority/SLA-type combination.
// The second return is false when no usable entry exists; callers treat that
// as "skip, warn" rather than an error.
func (c SLAConfig) Target(tier, priority string, slaType domain.SLAType) (float64, bool) {
	priorities, ok := c[tier]
	if !ok {
		return 0, false
	}
	targets, ok := priorities[priority]
	if !ok {
		return 0, false
	}
	var minutes float64
	switch slaType {
	case domain.SLATypeResponse:
		minutes = targets.Response
	case domain.SLATypeResolution:
		minutes = targets.Resolution
	default:
		return 0, false
	}
	if minutes <= 0 {
		return 0, false
	}
	return minutes, true
}

type configFile struct {
	Tiers SLAConfig `yaml:"tiers"`
}

// Store owns the current SLA target snapshot. Reload is single-writer;
// Current never blocks on a concurrent reload.
type Store struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[SLAConfig]
}

// NewStore creates a store bound to path with an empty snapshot. Call
// Reload to populate it.
func NewStore(path string, logger *zap.Logger) *Store {
	s := &Store{path: path, logger: logger}
	empty := SLAConfig{}
	s.current.Store(&empty)
	return s
}

// Path returns the config file location the store reloads from.
func (s *Store) Path() string {
	return s.path
}

// Current returns the active snapshot.
func (s *Store) Current() SLAConfig {
	return *s.current.Load()
}

// Reload parses the config file and swaps the snapshot in one step. On any
// failure the previous snapshot stays active and the error is returned to
// the reload caller.
func (s *Store) Reload() error {
	cfg, err := parseFile(s.path)
	if err != nil {
		s.logger.Error("sla config reload failed; keeping previous snapshot",
			zap.String("path", s.path), zap.Error(err))
		return err
	}

	s.current.Store(&cfg)
	s.logger.Info("sla config loaded",
		zap.String("path", s.path), zap.Int("tiers", len(cfg)))
	return nil
}

func parseFile(path string) (SLAConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sla config: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse sla config: %w", err)
	}
	if file.Tiers == nil {
		return nil, fmt.Errorf("sla config %s: missing top-level 'tiers' mapping", path)
	}
	return file.Tiers, nil
}
