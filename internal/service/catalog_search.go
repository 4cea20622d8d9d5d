package service

import (
	"context"
	"fmt"
	"strings"

	"poke-arena/internal/domain"

	"golang.org/x/sync/errgroup"
)

// Search finds Pokemon by id, type and ability. Unset parameters are empty
// or the literal "null".
func (g *CatalogGateway) Search(ctx context.Context, id, typeName, ability string) ([]*domain.Pokemon, error) {
	id, typeName, ability = unsetParam(id), unsetParam(typeName), unsetParam(ability)

	if id != "" {
		p, err := g.FetchPokemon(ctx, id)
		if err != nil {
			return nil, err
		}
		if (typeName != "" && !p.HasType(typeName)) || (ability != "" && !p.HasAbility(ability)) {
			return nil, fmt.Errorf("pokemon %s with type %q and ability %q: %w", id, typeName, ability, domain.ErrNotFound)
		}
		return []*domain.Pokemon{p}, nil
	}

	if typeName == "" && ability == "" {
		return nil, domain.Validationf("search needs an id, a type or an ability")
	}

	var lists [][]string
	for _, q := range []struct {
		category domain.Category
		key      string
	}{
		{domain.CategoryType, typeName},
		{domain.CategoryAbility, ability},
	} {
		if q.key == "" {
			continue
		}
		entry, err := g.Fetch(ctx, q.category, q.key)
		if err != nil {
			return nil, err
		}
		lists = append(lists, entry.Members)
	}

	names := intersect(lists)
	if len(names) == 0 {
		return nil, fmt.Errorf("no pokemon with type %q and ability %q: %w", typeName, ability, domain.ErrNotFound)
	}

	results := make([]*domain.Pokemon, len(names))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, name := range names {
		eg.Go(func() error {
			p, err := g.FetchPokemon(egCtx, name)
			if err != nil {
				return err
			}
			results[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g.logger.Debug().Str("type", typeName).Str("ability", ability).Int("count", len(results)).Msg("search completed")
	return results, nil
}

// intersect keeps the names present in every list, in first-list order.
func intersect(lists [][]string) []string {
	if len(lists) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, list := range lists {
		seen := make(map[string]bool, len(list))
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				counts[name]++
			}
		}
	}

	var out []string
	emitted := make(map[string]bool)
	for _, name := range lists[0] {
		if counts[name] == len(lists) && !emitted[name] {
			emitted[name] = true
			out = append(out, name)
		}
	}
	return out
}

func unsetParam(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}
