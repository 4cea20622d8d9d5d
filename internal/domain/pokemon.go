package domain

import "strings"

const (
	StatHP             = "hp"
	StatAttack         = "attack"
	StatDefense        = "defense"
	StatSpecialAttack  = "special-attack"
	StatSpecialDefense = "special-defense"
	StatSpeed          = "speed"
)

// CanonicalStats is the provider's stat order. Unnamed stat entries are
// named by their position in this list.
var CanonicalStats = []string{
	StatHP,
	StatAttack,
	StatDefense,
	StatSpecialAttack,
	StatSpecialDefense,
	StatSpeed,
}

type Stat struct {
	Name     string `json:"name"`
	BaseStat int    `json:"base_stat"`
	Effort   int    `json:"effort"`
}

type Pokemon struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Stats      []Stat   `json:"stats"`
	Types      []string `json:"types"`
	Abilities  []string `json:"abilities"`
	SpriteURL  string   `json:"sprite,omitempty"`
	ArtworkURL string   `json:"artwork,omitempty"`
}

// Stat returns the base value of the named stat, 0 when absent.
func (p *Pokemon) Stat(name string) int {
	if p == nil {
		return 0
	}
	for _, s := range p.Stats {
		if s.Name == name {
			return s.BaseStat
		}
	}
	return 0
}

func (p *Pokemon) HasStats() bool {
	return p != nil && len(p.Stats) > 0
}

func (p *Pokemon) HasType(name string) bool {
	return containsFold(p.Types, name)
}

func (p *Pokemon) HasAbility(name string) bool {
	return containsFold(p.Abilities, name)
}

// Sprite prefers the official artwork.
func (p *Pokemon) Sprite() string {
	if p == nil {
		return ""
	}
	if p.ArtworkURL != "" {
		return p.ArtworkURL
	}
	return p.SpriteURL
}

func (p *Pokemon) Ref() PokemonRef {
	if p == nil {
		return PokemonRef{}
	}
	return PokemonRef{Name: p.Name, SpriteURL: p.Sprite()}
}

// NormalizeStats rewrites stats into the canonical per-name shape: unnamed
// entries take the canonical name of their position, canonical stats that
// are still missing are appended with a zero base value. Unnamed entries
// past the canonical list are dropped.
func NormalizeStats(stats []Stat) []Stat {
	out := make([]Stat, 0, len(CanonicalStats))
	seen := make(map[string]bool, len(CanonicalStats))

	for i, s := range stats {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			if i >= len(CanonicalStats) {
				continue
			}
			name = CanonicalStats[i]
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Stat{Name: name, BaseStat: s.BaseStat, Effort: s.Effort})
	}

	for _, name := range CanonicalStats {
		if !seen[name] {
			out = append(out, Stat{Name: name})
		}
	}
	return out
}

func containsFold(list []string, name string) bool {
	for _, v := range list {
		if strings.EqualFold(v, name) {
			return true
		}
	}
	return false
}
