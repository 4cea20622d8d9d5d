package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"poke-arena/internal/api"
	"poke-arena/internal/config"
	"poke-arena/internal/constants"
	"poke-arena/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type ResourceLister interface {
	ListResources(ctx context.Context, category domain.Category, limit int) ([]api.NamedResource, error)
}

// CatalogIndex holds the id, type and ability lists loaded once at startup.
type CatalogIndex struct {
	lister  ResourceLister
	idLimit int
	logger  zerolog.Logger

	mu        sync.RWMutex
	ids       []int
	idSet     map[int]struct{}
	types     []string
	typeSet   map[string]struct{}
	abilities []string
	abilSet   map[string]struct{}
}

func NewCatalogIndex(lister ResourceLister, cfg *config.Config, logger zerolog.Logger) *CatalogIndex {
	return &CatalogIndex{
		lister:  lister,
		idLimit: cfg.CatalogIDLimit,
		logger:  logger,
	}
}

func (i *CatalogIndex) Load(ctx context.Context) error {
	var pokemon, types, abilities []api.NamedResource

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pokemon, err = i.lister.ListResources(gCtx, domain.CategoryPokemon, i.idLimit)
		return err
	})
	g.Go(func() error {
		var err error
		types, err = i.lister.ListResources(gCtx, domain.CategoryType, constants.CatalogNameLimit)
		return err
	})
	g.Go(func() error {
		var err error
		abilities, err = i.lister.ListResources(gCtx, domain.CategoryAbility, constants.CatalogNameLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load catalog index: %w", err)
	}

	ids := make([]int, 0, len(pokemon))
	for _, p := range pokemon {
		if id, ok := api.ResourceID(p.URL); ok {
			ids = append(ids, id)
		}
	}
	i.Set(ids, names(types), names(abilities))

	i.logger.Info().
		Int("ids", len(ids)).
		Int("types", len(types)).
		Int("abilities", len(abilities)).
		Msg("catalog index loaded")
	return nil
}

// LoadWithRetry keeps trying Load until it succeeds, attempts run out or
// ctx ends.
func (i *CatalogIndex) LoadWithRetry(ctx context.Context, attempts int, delay time.Duration) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = i.Load(ctx); err == nil {
			return nil
		}
		i.logger.Warn().Err(err).Int("attempt", attempt).Msg("catalog index load failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (i *CatalogIndex) Set(ids []int, types, abilities []string) {
	idSet := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append([]int(nil), ids...)
	i.idSet = idSet
	i.types = append([]string(nil), types...)
	i.typeSet = toSet(types)
	i.abilities = append([]string(nil), abilities...)
	i.abilSet = toSet(abilities)
}

func (i *CatalogIndex) Ready() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.ids) > 0
}

func (i *CatalogIndex) IDs() []int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]int(nil), i.ids...)
}

func (i *CatalogIndex) Types() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]string(nil), i.types...)
}

func (i *CatalogIndex) Abilities() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]string(nil), i.abilities...)
}

// RandomID draws a catalog id uniformly; intn must return a value in [0, n).
func (i *CatalogIndex) RandomID(intn func(n int) int) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if len(i.ids) == 0 {
		return 0, domain.ErrCatalogNotReady
	}
	return i.ids[intn(len(i.ids))], nil
}

// IsValid reports whether each set parameter is a known id, type or
// ability. Empty and "null" mean unset.
func (i *CatalogIndex) IsValid(id, typeName, ability string) bool {
	id, typeName, ability = unsetParam(id), unsetParam(typeName), unsetParam(ability)

	i.mu.RLock()
	defer i.mu.RUnlock()

	if id != "" {
		n, err := strconv.Atoi(id)
		if err != nil {
			return false
		}
		if _, ok := i.idSet[n]; !ok {
			return false
		}
	}
	if typeName != "" {
		if _, ok := i.typeSet[typeName]; !ok {
			return false
		}
	}
	if ability != "" {
		if _, ok := i.abilSet[ability]; !ok {
			return false
		}
	}
	return true
}

func names(resources []api.NamedResource) []string {
	out := make([]string, len(resources))
	for i, r := range resources {
		out[i] = r.Name
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
