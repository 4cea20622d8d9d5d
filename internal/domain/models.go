package domain

import (
	"time"
)

type Category string

const (
	CategoryPokemon Category = "pokemon"
	CategoryType    Category = "type"
	CategoryAbility Category = "ability"
)

// CatalogEntry is one provider record. Pokemon is set for CategoryPokemon,
// Members (pokemon names) for type and ability records.
type CatalogEntry struct {
	Category Category
	Key      string
	Pokemon  *Pokemon
	Members  []string
}

func (e CatalogEntry) CacheKey() string {
	return CacheKey(e.Category, e.Key)
}

func CacheKey(category Category, key string) string {
	return string(category) + ":" + key
}

type CacheEntry struct {
	Data      *CatalogEntry
	FetchedAt time.Time
}

func (c CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.FetchedAt) < ttl
}

type PresenceRecord struct {
	UserID      string
	DisplayName string
	LastSeen    time.Time
}

type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type BattleKind string

const (
	BattleKindPvP BattleKind = "pvp"
	BattleKindBot BattleKind = "bot"
)

type BattleStatus string

const (
	BattleStatusPending  BattleStatus = "pending"
	BattleStatusActive   BattleStatus = "active"
	BattleStatusResolved BattleStatus = "resolved"
)

// CanAdvance reports whether s -> next moves strictly forward.
func (s BattleStatus) CanAdvance(next BattleStatus) bool {
	return s.rank() < next.rank()
}

func (s BattleStatus) rank() int {
	switch s {
	case BattleStatusPending:
		return 0
	case BattleStatusActive:
		return 1
	case BattleStatusResolved:
		return 2
	}
	return -1
}

type BattleSession struct {
	ID              string        `json:"battleId"`
	Kind            BattleKind    `json:"type"`
	Player1         Participant   `json:"player1"`
	Player2         Participant   `json:"player2"`
	Player1Snapshot *Pokemon      `json:"player1Pokemon,omitempty"`
	Player2Snapshot *Pokemon      `json:"player2Pokemon,omitempty"`
	Status          BattleStatus  `json:"status"`
	Result          *BattleResult `json:"result,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

type BattleResult struct {
	BattleID       string     `json:"battleId"`
	Kind           BattleKind `json:"type"`
	WinnerID       string     `json:"winner"`
	LoserID        string     `json:"loser"`
	Player1Score   float64    `json:"player1Score"`
	Player2Score   float64    `json:"player2Score"`
	Player1Pokemon *Pokemon   `json:"player1Pokemon"`
	Player2Pokemon *Pokemon   `json:"player2Pokemon"`
	IsBotBattle    bool       `json:"isBotBattle"`
	ResolvedAt     time.Time  `json:"resolvedAt"`
}

// Standing is the jitter-free projection of a battle that has not been
// committed.
type Standing struct {
	BattleID         string  `json:"battleId"`
	Player1BaseScore float64 `json:"player1BaseScore"`
	Player2BaseScore float64 `json:"player2BaseScore"`
	Player1Favoured  bool    `json:"player1Favoured"`
	Resolved         bool    `json:"resolved"`
}

type UserBattleStats struct {
	TotalBattles int     `json:"totalBattles"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"`
}

type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

type OpponentKind string

const (
	OpponentPlayer OpponentKind = "player"
	OpponentBot    OpponentKind = "bot"
)

type PokemonRef struct {
	Name      string `json:"name"`
	SpriteURL string `json:"sprite"`
}

type BattleHistoryEntry struct {
	BattleID        string       `json:"battleId"`
	Date            time.Time    `json:"date"`
	OpponentName    string       `json:"opponent"`
	OpponentKind    OpponentKind `json:"opponentType"`
	OwnPokemon      PokemonRef   `json:"userPokemon"`
	OpponentPokemon PokemonRef   `json:"opponentPokemon"`
	OwnScore        float64      `json:"userScore"`
	OpponentScore   float64      `json:"opponentScore"`
	Outcome         Outcome      `json:"result"`
}

type RankingEntry struct {
	UserID       string  `json:"-"`
	Username     string  `json:"username"`
	TotalBattles int     `json:"totalBattles"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"`
}
