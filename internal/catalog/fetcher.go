package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"llm_router/internal/logging"
)

const (
	// DefaultTTL is how long a full catalog population stays fresh.
	DefaultTTL = 12 * time.Hour

	lastFetchFile = ".last-fetch"
	bootstrapFile = ".bootstrap"
)

// Fetcher keeps the file-based model catalog fresh. Each invocation of
// RefreshIfStale is self-contained and idempotent under a quiescent schedule;
// it is not safe to run two invocations concurrently against the same root.
type Fetcher struct {
	root       string
	ttl        time.Duration
	categories []string
	orders     []string
	upstream   Upstream

	now func() time.Time // stubbed in tests
}

// NewFetcher creates a fetcher for the given data root. A zero TTL falls
// back to DefaultTTL.
func NewFetcher(root string, ttl time.Duration, categories, orders []string, upstream Upstream) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Fetcher{
		root:       root,
		ttl:        ttl,
		categories: categories,
		orders:     orders,
		upstream:   upstream,
		now:        time.Now,
	}
}

// RefreshIfStale bootstraps the directory layout on first run, then
// re-populates the whole catalog when the freshness marker is older than the
// TTL. A fresh marker makes the call a no-op with zero upstream fetches.
func (f *Fetcher) RefreshIfStale(ctx context.Context) error {
	if err := f.bootstrap(); err != nil {
		return err
	}

	stale, age, err := f.stale()
	if err != nil {
		return err
	}
	if !stale {
		logging.Debugf("catalog fresh age=%s ttl=%s, skipping refresh", age, f.ttl)
		return nil
	}

	start := f.now()
	if err := f.populate(ctx); err != nil {
		// Marker stays untouched: the next invocation retries in full.
		logging.Errorf("catalog refresh failed, marker not updated: %v", err)
		return err
	}

	if err := f.writeMarker(start); err != nil {
		return err
	}

	logging.Infof("catalog refreshed pairs=%d took=%s", len(f.categories)*len(f.orders), f.now().Sub(start))
	return nil
}

// bootstrap scaffolds the category directories once per data root. The
// bootstrap marker is separate from the freshness marker so a crash between
// scaffolding and first population still reads as "never populated" rather
// than "fresh".
func (f *Fetcher) bootstrap() error {
	markerPath := filepath.Join(f.root, bootstrapFile)
	if _, err := os.Stat(markerPath); err == nil {
		return nil
	}

	logging.Infof("bootstrapping catalog layout root=%s categories=%d", f.root, len(f.categories))

	for _, category := range f.categories {
		if err := os.MkdirAll(filepath.Join(f.root, category), 0o755); err != nil {
			return fmt.Errorf("failed to create catalog directory for %s: %w", category, err)
		}
	}

	fetchMarker := filepath.Join(f.root, lastFetchFile)
	if _, err := os.Stat(fetchMarker); os.IsNotExist(err) {
		if err := os.WriteFile(fetchMarker, []byte{}, 0o644); err != nil {
			return fmt.Errorf("failed to create freshness marker: %w", err)
		}
	}

	if err := os.WriteFile(markerPath, []byte{}, 0o644); err != nil {
		return fmt.Errorf("failed to create bootstrap marker: %w", err)
	}

	return nil
}

// stale reads the freshness marker. An absent, empty, or unparsable marker
// counts as stale.
func (f *Fetcher) stale() (bool, time.Duration, error) {
	data, err := os.ReadFile(filepath.Join(f.root, lastFetchFile))
	if err != nil {
		if os.IsNotExist(err) {
			return true, 0, nil
		}
		return false, 0, fmt.Errorf("failed to read freshness marker: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return true, 0, nil
	}

	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logging.Warningf("unparsable freshness marker %q, treating as stale", raw)
		return true, 0, nil
	}

	age := f.now().Sub(time.UnixMilli(millis))
	return age >= f.ttl, age, nil
}

// populate fetches the full categories × orders cross-product, all pairs
// concurrently, and writes each raw response to {category}/{order}.json.
// The join is fail-fast: the first failure cancels the remaining fetches
// and the whole population counts as failed.
func (f *Fetcher) populate(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, category := range f.categories {
		for _, order := range f.orders {
			wg.Add(1)
			go func(category, order string) {
				defer wg.Done()

				if err := f.fetchPair(ctx, category, order); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					mu.Unlock()
				}
			}(category, order)
		}
	}

	wg.Wait()
	return firstErr
}

func (f *Fetcher) fetchPair(ctx context.Context, category, order string) error {
	body, err := f.upstream.FetchListing(ctx, category, order)
	if err != nil {
		return err
	}

	path := filepath.Join(f.root, category, order+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog entry %s/%s: %w", category, order, err)
	}

	return nil
}

func (f *Fetcher) writeMarker(t time.Time) error {
	value := strconv.FormatInt(t.UnixMilli(), 10)
	path := filepath.Join(f.root, lastFetchFile)
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("failed to write freshness marker: %w", err)
	}
	return nil
}
