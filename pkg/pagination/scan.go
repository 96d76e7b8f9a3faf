// Package pagination scans paged remote collections that have no stable
// cursor and unreliable total counts.
//
// Termination is driven by observed repetition: once past the last full
// page the remote re-serves records it already returned, so a page that
// shares an identity with the page before it marks the end of the
// collection. An empty page also ends a scan.
//
// Known limitation: a collection mutated during a scan can lose or repeat
// records near the page where the mutation happened.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/storesync/pkg/identity"
)

// ErrPageLimit is returned when a scan reaches Config.MaxPages without converging.
var ErrPageLimit = errors.New("page limit reached before convergence")

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_pages_fetched_total",
		Help: "Pages fetched by scan name",
	}, []string{"scan"})

	convergenceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesync_scan_convergence_total",
		Help: "Scans that ended by repetition, short first page or empty page",
	}, []string{"scan", "reason"})
)

// Config holds scan configuration.
type Config struct {
	// Name labels logs and metrics.
	Name string

	// PageSize is the number of records requested per page.
	PageSize int

	// MaxPages bounds the page number a scan may request.
	MaxPages int
}

// DefaultConfig returns the page shape of the resource protocol.
func DefaultConfig() Config {
	return Config{
		Name:     "scan",
		PageSize: 100,
		MaxPages: 10000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	return c
}

// FetchFunc returns one page (1-based) of at most limit records.
type FetchFunc[T any] func(ctx context.Context, page, limit int) ([]T, error)

// ScanAll fetches pages in order until two consecutive pages share an
// identity. Only records of the final page not seen before are kept.
// Page N+1 is never requested before page N has been compared.
func ScanAll[T any, K comparable](ctx context.Context, cfg Config, key identity.KeyFunc[T, K], fetch FetchFunc[T]) ([]T, error) {
	cfg = cfg.withDefaults()
	start := time.Now()

	first, err := fetchPage(ctx, cfg, fetch, 1)
	if err != nil {
		return nil, err
	}
	if len(first) < cfg.PageSize {
		convergenceTotal.WithLabelValues(cfg.Name, "short_first_page").Inc()
		return identity.Distinct(first, key), nil
	}

	seen := identity.Set(first, key)
	received := identity.Distinct(first, key)
	prev := first

	for page := 2; ; page++ {
		if page > cfg.MaxPages {
			return received, fmt.Errorf("scan %s: %w (%d pages)", cfg.Name, ErrPageLimit, cfg.MaxPages)
		}

		cur, err := fetchPage(ctx, cfg, fetch, page)
		if err != nil {
			return received, err
		}

		if len(cur) == 0 {
			convergenceTotal.WithLabelValues(cfg.Name, "empty_page").Inc()
			break
		}

		repeated := len(identity.Intersect(cur, prev, key)) > 0
		for _, item := range cur {
			k := key(item)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			received = append(received, item)
		}
		prev = cur

		if repeated {
			convergenceTotal.WithLabelValues(cfg.Name, "repetition").Inc()
			log.Debug().
				Str("scan", cfg.Name).
				Int("pages", page).
				Int("records", len(received)).
				Dur("duration", time.Since(start)).
				Msg("Scan converged")
			break
		}
	}

	return received, nil
}

func fetchPage[T any](ctx context.Context, cfg Config, fetch FetchFunc[T], page int) ([]T, error) {
	items, err := fetch(ctx, page, cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("scan %s: page %d: %w", cfg.Name, page, err)
	}
	pagesFetchedTotal.WithLabelValues(cfg.Name).Inc()
	return items, nil
}
