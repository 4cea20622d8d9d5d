package service

import (
	"math"
	"math/rand/v2"

	"poke-arena/internal/constants"
	"poke-arena/internal/domain"
)

// Jitter returns the random bonus added to a base score.
type Jitter func() float64

// RandomJitter draws uniformly from [0, MaxJitter).
func RandomJitter() float64 {
	return rand.Float64() * constants.MaxJitter
}

// BaseScore weighs hp, attack, defense and speed. Missing stats count as 0.
func BaseScore(p *domain.Pokemon) float64 {
	if p == nil {
		return 0
	}
	return float64(p.Stat(domain.StatHP))*0.3 +
		float64(p.Stat(domain.StatAttack))*0.4 +
		float64(p.Stat(domain.StatDefense))*0.2 +
		float64(p.Stat(domain.StatSpeed))*0.1
}

func Score(p *domain.Pokemon, jitter float64) float64 {
	return round2(BaseScore(p) + jitter)
}

// Player1Wins is true only for a strictly greater score; ties go to player2.
func Player1Wins(player1Score, player2Score float64) bool {
	return player1Score > player2Score
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
