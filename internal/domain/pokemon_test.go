package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeStats(t *testing.T) {
	tests := []struct {
		name  string
		in    []Stat
		check map[string]int
	}{
		{
			name:  "empty input yields all canonical stats at zero",
			in:    nil,
			check: map[string]int{StatHP: 0, StatAttack: 0, StatDefense: 0, StatSpeed: 0, StatSpecialAttack: 0, StatSpecialDefense: 0},
		},
		{
			name:  "unnamed entries take their positional name",
			in:    []Stat{{BaseStat: 45}, {BaseStat: 49}, {Name: "defense", BaseStat: 49}},
			check: map[string]int{StatHP: 45, StatAttack: 49, StatDefense: 49, StatSpeed: 0},
		},
		{
			name:  "names are lower-cased and duplicates ignored",
			in:    []Stat{{Name: "HP", BaseStat: 10}, {Name: "hp", BaseStat: 99}, {Name: "speed", BaseStat: 7}},
			check: map[string]int{StatHP: 10, StatSpeed: 7, StatAttack: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeStats(tt.in)
			if len(got) < len(CanonicalStats) {
				t.Fatalf("got %d stats, want at least %d", len(got), len(CanonicalStats))
			}
			p := &Pokemon{Stats: got}
			for name, want := range tt.check {
				if v := p.Stat(name); v != want {
					t.Fatalf("stat %s = %d, want %d (stats %+v)", name, v, want, got)
				}
			}
		})
	}
}

func TestPokemonSpritePrefersArtwork(t *testing.T) {
	p := &Pokemon{Name: "bulbasaur", SpriteURL: "front.png", ArtworkURL: "art.png"}
	if p.Sprite() != "art.png" {
		t.Fatalf("Sprite() = %q", p.Sprite())
	}
	p.ArtworkURL = ""
	if ref := p.Ref(); ref.SpriteURL != "front.png" || ref.Name != "bulbasaur" {
		t.Fatalf("Ref() = %+v", ref)
	}
}

func TestBattleStatusForwardOnly(t *testing.T) {
	if !BattleStatusPending.CanAdvance(BattleStatusActive) || !BattleStatusActive.CanAdvance(BattleStatusResolved) {
		t.Fatalf("forward transitions must be allowed")
	}
	if BattleStatusResolved.CanAdvance(BattleStatusActive) || BattleStatusActive.CanAdvance(BattleStatusActive) {
		t.Fatalf("backward or self transitions must be rejected")
	}
}

func TestUpstreamErrorMatching(t *testing.T) {
	status := &UpstreamError{Category: CategoryPokemon, Key: "1", StatusCode: 404}
	if !errors.Is(status, ErrUpstream) || errors.Is(status, ErrUpstreamTimeout) {
		t.Fatalf("status error should match ErrUpstream only")
	}

	timeout := fmt.Errorf("wrapped: %w", &UpstreamError{Category: CategoryType, Key: "fire", Err: context.DeadlineExceeded})
	if !errors.Is(timeout, ErrUpstreamTimeout) || !errors.Is(timeout, ErrUpstream) {
		t.Fatalf("deadline error should match both sentinels")
	}

	var nf error = &NoFavoritesError{PlayerName: "lolo"}
	if !errors.Is(nf, ErrNoFavorites) {
		t.Fatalf("NoFavoritesError should match ErrNoFavorites")
	}
}
