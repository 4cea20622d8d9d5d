package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"poke-arena/internal/config"
	"poke-arena/internal/domain"
	"poke-arena/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

type Upstream interface {
	FetchEntry(ctx context.Context, category domain.Category, key string) (*domain.CatalogEntry, error)
}

// CatalogGateway is the only path to the provider. Hits younger than the TTL
// are served from memory; misses wait for one of a fixed number of slots,
// granted in arrival order.
type CatalogGateway struct {
	upstream     Upstream
	slots        *semaphore.Weighted
	maxSlots     int
	cacheEnabled bool
	ttl          time.Duration
	callTimeout  time.Duration
	queueTimeout time.Duration
	now          func() time.Time

	mu    sync.RWMutex
	cache map[string]domain.CacheEntry

	active  atomic.Int64
	waiting atomic.Int64

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewCatalogGateway(upstream Upstream, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *CatalogGateway {
	return &CatalogGateway{
		upstream:     upstream,
		slots:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		maxSlots:     cfg.MaxConcurrent,
		cacheEnabled: cfg.CacheEnabled,
		ttl:          cfg.CacheTTL,
		callTimeout:  cfg.UpstreamTimeout,
		queueTimeout: cfg.QueueTimeout,
		now:          time.Now,
		cache:        make(map[string]domain.CacheEntry),
		metrics:      m,
		logger:       logger,
	}
}

func (g *CatalogGateway) Fetch(ctx context.Context, category domain.Category, key string) (*domain.CatalogEntry, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return nil, domain.Validationf("empty %s key", category)
	}
	cacheKey := domain.CacheKey(category, key)

	if entry, ok := g.cached(cacheKey); ok {
		g.metrics.CacheHits.Inc()
		g.logger.Debug().Str("cache_key", cacheKey).Msg("using cached data")
		return entry, nil
	}
	g.metrics.CacheMisses.Inc()

	release, err := g.acquire(ctx, category, key)
	if err != nil {
		return nil, err
	}
	defer release()

	// filled by another caller while this one was queued
	if entry, ok := g.cached(cacheKey); ok {
		return entry, nil
	}

	entry, err := g.call(ctx, category, key)
	if err != nil {
		g.metrics.UpstreamRequests.WithLabelValues(string(category), outcomeLabel(err)).Inc()
		g.logger.Warn().Err(err).Str("cache_key", cacheKey).Msg("upstream fetch failed")
		return nil, err
	}
	g.metrics.UpstreamRequests.WithLabelValues(string(category), "ok").Inc()

	if entry.Pokemon != nil {
		entry.Pokemon.Stats = domain.NormalizeStats(entry.Pokemon.Stats)
	}

	g.store(cacheKey, entry)
	return entry, nil
}

func (g *CatalogGateway) FetchPokemon(ctx context.Context, key string) (*domain.Pokemon, error) {
	entry, err := g.Fetch(ctx, domain.CategoryPokemon, key)
	if err != nil {
		return nil, err
	}
	return entry.Pokemon, nil
}

// ActiveCalls is the number of upstream calls holding a slot.
func (g *CatalogGateway) ActiveCalls() int {
	return int(g.active.Load())
}

// Waiting is the number of callers queued for a slot.
func (g *CatalogGateway) Waiting() int {
	return int(g.waiting.Load())
}

func (g *CatalogGateway) cached(cacheKey string) (*domain.CatalogEntry, bool) {
	if !g.cacheEnabled {
		return nil, false
	}
	g.mu.RLock()
	entry, ok := g.cache[cacheKey]
	g.mu.RUnlock()
	if !ok || !entry.Fresh(g.now(), g.ttl) {
		return nil, false
	}
	return entry.Data, true
}

func (g *CatalogGateway) store(cacheKey string, entry *domain.CatalogEntry) {
	if !g.cacheEnabled {
		return
	}
	g.mu.Lock()
	g.cache[cacheKey] = domain.CacheEntry{Data: entry, FetchedAt: g.now()}
	g.mu.Unlock()
	g.logger.Debug().Str("cache_key", cacheKey).Msg("cached data")
}

func (g *CatalogGateway) acquire(ctx context.Context, category domain.Category, key string) (func(), error) {
	waitCtx, cancel := withOptionalTimeout(ctx, g.queueTimeout)
	defer cancel()

	queued := g.waiting.Add(1)
	g.metrics.UpstreamQueued.Inc()
	if active := g.active.Load(); active >= int64(g.maxSlots) {
		g.logger.Debug().
			Int64("active", active).
			Int("max", g.maxSlots).
			Int64("queued", queued).
			Msg("request throttled, waiting for slot")
	}

	err := g.slots.Acquire(waitCtx, 1)
	g.waiting.Add(-1)
	g.metrics.UpstreamQueued.Dec()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("waiting for upstream slot: %w", ctx.Err())
		}
		return nil, &domain.UpstreamError{Category: category, Key: key, Err: domain.ErrUpstreamTimeout}
	}

	g.active.Add(1)
	g.metrics.UpstreamInFlight.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.active.Add(-1)
			g.metrics.UpstreamInFlight.Dec()
			g.slots.Release(1)
		})
	}, nil
}

func (g *CatalogGateway) call(ctx context.Context, category domain.Category, key string) (*domain.CatalogEntry, error) {
	callCtx, cancel := withOptionalTimeout(ctx, g.callTimeout)
	defer cancel()

	entry, err := g.upstream.FetchEntry(callCtx, category, key)
	if err != nil {
		var ue *domain.UpstreamError
		if errors.As(err, &ue) {
			return nil, err
		}
		return nil, &domain.UpstreamError{Category: category, Key: key, Err: err}
	}
	if entry == nil || (category == domain.CategoryPokemon && entry.Pokemon == nil) {
		return nil, &domain.UpstreamError{Category: category, Key: key, Err: errors.New("empty record")}
	}
	return entry, nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return "timeout"
	default:
		return "error"
	}
}
