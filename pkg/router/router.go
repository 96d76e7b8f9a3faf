// Package router detects the remote platform version and selects the
// protocol adapter that speaks it.
//
// Selection is pure: the version table is injected at construction and the
// only remote call is the liveness probe in Resolve.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/storesync/pkg/logging"
	"github.com/Sternrassler/storesync/pkg/platform"
)

// ErrConnectivity is returned when the platform cannot be probed or no
// adapter can serve it.
var ErrConnectivity = errors.New("platform connectivity")

// Router resolves platform identity and selects adapters.
type Router struct {
	prober   platform.Prober
	table    Table
	adapters map[string]platform.ProtocolAdapter
	logger   zerolog.Logger
}

// New creates a router. adapters must contain every name the table can produce.
func New(prober platform.Prober, table Table, adapters map[string]platform.ProtocolAdapter) (*Router, error) {
	if prober == nil {
		return nil, errors.New("router: prober is required")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	for _, name := range table.AdapterNames() {
		if adapters[name] == nil {
			return nil, fmt.Errorf("router: no adapter registered for %q", name)
		}
	}

	return &Router{
		prober:   prober,
		table:    table,
		adapters: adapters,
		logger:   logging.NewLogger(logging.ComponentRouter),
	}, nil
}

// Probe returns the platform's answer without judging it.
func (r *Router) Probe(ctx context.Context) (platform.Identity, error) {
	id, err := r.prober.PlatformInfo(ctx)
	if err != nil {
		return platform.Identity{}, fmt.Errorf("%w: probe failed: %w", ErrConnectivity, err)
	}
	return id, nil
}

// Resolve probes the platform. An identity with neither version nor edition
// is not working and is reported as a connectivity error.
func (r *Router) Resolve(ctx context.Context) (platform.Identity, error) {
	id, err := r.Probe(ctx)
	if err != nil {
		return id, err
	}
	if !id.Working() {
		return id, fmt.Errorf("%w: probe returned no version or edition", ErrConnectivity)
	}

	r.logger.Debug().
		Str("version", id.Version).
		Str("edition", id.Edition).
		Msg("Platform resolved")
	return id, nil
}

// Select maps an identity to an adapter. With applyLegacyOverride, editions
// on the table's legacy list go to the legacy adapter regardless of version.
func (r *Router) Select(id platform.Identity, applyLegacyOverride bool) (platform.ProtocolAdapter, error) {
	name := r.selectName(id, applyLegacyOverride)
	adapter, ok := r.adapters[name]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: no adapter for version %q edition %q", ErrConnectivity, id.Version, id.Edition)
	}
	return adapter, nil
}

// Legacy returns the legacy adapter.
func (r *Router) Legacy() (platform.ProtocolAdapter, error) {
	adapter, ok := r.adapters[r.table.LegacyAdapter]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: no legacy adapter configured", ErrConnectivity)
	}
	return adapter, nil
}

// ResolveAndSelect probes and selects in one step.
func (r *Router) ResolveAndSelect(ctx context.Context, applyLegacyOverride bool) (platform.Identity, platform.ProtocolAdapter, error) {
	id, err := r.Resolve(ctx)
	if err != nil {
		return id, nil, err
	}
	adapter, err := r.Select(id, applyLegacyOverride)
	return id, adapter, err
}

func (r *Router) selectName(id platform.Identity, applyLegacyOverride bool) string {
	if applyLegacyOverride && r.table.isLegacyEdition(id.Edition) {
		r.logger.Debug().
			Str("edition", id.Edition).
			Str("adapter", r.table.LegacyAdapter).
			Msg("Legacy edition override")
		return r.table.LegacyAdapter
	}
	return r.table.closest(id.Version)
}
