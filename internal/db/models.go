package db

import (
	"time"
)

type UserStat struct {
	UserID       string
	Username     string
	TotalBattles int64
	Wins         int64
	Losses       int64
	WinRate      float64
	UpdatedAt    time.Time
}

type BattleHistory struct {
	ID                    string
	BattleID              string
	UserID                string
	Date                  time.Time
	OpponentName          string
	OpponentKind          string
	OwnPokemonName        string
	OwnPokemonSprite      string
	OpponentPokemonName   string
	OpponentPokemonSprite string
	OwnScore              float64
	OpponentScore         float64
	Outcome               string
}

type Favorite struct {
	UserID    string
	Name      string
	Payload   string
	CreatedAt time.Time
}
