package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"poke-arena/internal/config"
	"poke-arena/internal/domain"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

type PokeAPIClient struct {
	baseURL string
	client  *fasthttp.Client
}

func NewPokeAPIClient(cfg *config.Config) *PokeAPIClient {
	return &PokeAPIClient{
		baseURL: strings.TrimRight(cfg.PokeAPIBaseURL, "/"),
		client: &fasthttp.Client{
			MaxConnsPerHost:     50,
			ReadTimeout:         cfg.UpstreamTimeout,
			WriteTimeout:        cfg.UpstreamTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

// FetchEntry fetches one catalog record and converts it to its domain shape.
// Stat normalization is left to the caller.
func (c *PokeAPIClient) FetchEntry(ctx context.Context, category domain.Category, key string) (*domain.CatalogEntry, error) {
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, category, url.PathEscape(key))
	entry := &domain.CatalogEntry{Category: category, Key: key}

	switch category {
	case domain.CategoryPokemon:
		resp, err := doRequest[PokemonResponse](ctx, c, u)
		if err != nil {
			return nil, upstreamError(category, key, err)
		}
		entry.Pokemon = resp.toDomain()
	case domain.CategoryType:
		resp, err := doRequest[TypeResponse](ctx, c, u)
		if err != nil {
			return nil, upstreamError(category, key, err)
		}
		for _, m := range resp.Pokemon {
			entry.Members = append(entry.Members, m.Pokemon.Name)
		}
	case domain.CategoryAbility:
		resp, err := doRequest[AbilityResponse](ctx, c, u)
		if err != nil {
			return nil, upstreamError(category, key, err)
		}
		for _, m := range resp.Pokemon {
			entry.Members = append(entry.Members, m.Pokemon.Name)
		}
	default:
		return nil, domain.Validationf("unknown category %q", category)
	}

	return entry, nil
}

// ListResources returns the named resources of a category, e.g. all type names.
func (c *PokeAPIClient) ListResources(ctx context.Context, category domain.Category, limit int) ([]NamedResource, error) {
	u := fmt.Sprintf("%s/%s?limit=%d", c.baseURL, category, limit)
	resp, err := doRequest[NamedResourceList](ctx, c, u)
	if err != nil {
		return nil, upstreamError(category, "list", err)
	}
	return resp.Results, nil
}

func doRequest[T any](ctx context.Context, client *PokeAPIClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			if err == fasthttp.ErrTimeout {
				return nil, context.DeadlineExceeded
			}
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, &statusError{code: resp.StatusCode()}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error: %d", e.code)
}

func upstreamError(category domain.Category, key string, err error) error {
	ue := &domain.UpstreamError{Category: category, Key: key, Err: err}
	if se, ok := err.(*statusError); ok {
		ue.StatusCode = se.code
	}
	return ue
}

// ResourceID extracts the trailing numeric id of a resource URL such as
// https://pokeapi.co/api/v2/pokemon/25/.
func ResourceID(resourceURL string) (int, bool) {
	parts := strings.Split(strings.TrimRight(resourceURL, "/"), "/")
	if len(parts) == 0 {
		return 0, false
	}
	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, false
	}
	return id, true
}

type NamedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type NamedResourceList struct {
	Count   int             `json:"count"`
	Results []NamedResource `json:"results"`
}

type PokemonResponse struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Stats []struct {
		BaseStat int            `json:"base_stat"`
		Effort   int            `json:"effort"`
		Stat     *NamedResource `json:"stat"`
	} `json:"stats"`
	Types []struct {
		Slot int           `json:"slot"`
		Type NamedResource `json:"type"`
	} `json:"types"`
	Abilities []struct {
		IsHidden bool          `json:"is_hidden"`
		Slot     int           `json:"slot"`
		Ability  NamedResource `json:"ability"`
	} `json:"abilities"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
		Other        struct {
			OfficialArtwork struct {
				FrontDefault string `json:"front_default"`
			} `json:"official-artwork"`
		} `json:"other"`
	} `json:"sprites"`
}

func (r *PokemonResponse) toDomain() *domain.Pokemon {
	p := &domain.Pokemon{
		ID:         r.ID,
		Name:       r.Name,
		SpriteURL:  r.Sprites.FrontDefault,
		ArtworkURL: r.Sprites.Other.OfficialArtwork.FrontDefault,
	}
	for _, s := range r.Stats {
		stat := domain.Stat{BaseStat: s.BaseStat, Effort: s.Effort}
		if s.Stat != nil {
			stat.Name = s.Stat.Name
		}
		p.Stats = append(p.Stats, stat)
	}
	for _, t := range r.Types {
		p.Types = append(p.Types, t.Type.Name)
	}
	for _, a := range r.Abilities {
		p.Abilities = append(p.Abilities, a.Ability.Name)
	}
	return p
}

type TypeResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Pokemon []struct {
		Slot    int           `json:"slot"`
		Pokemon NamedResource `json:"pokemon"`
	} `json:"pokemon"`
}

type AbilityResponse struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Pokemon []struct {
		IsHidden bool          `json:"is_hidden"`
		Slot     int           `json:"slot"`
		Pokemon  NamedResource `json:"pokemon"`
	} `json:"pokemon"`
}
