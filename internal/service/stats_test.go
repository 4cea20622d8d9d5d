package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"poke-arena/internal/config"
	"poke-arena/internal/constants"
	"poke-arena/internal/database"
	"poke-arena/internal/db"
	"poke-arena/internal/domain"
	"poke-arena/internal/repository"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
)

func newTestStatsService(t *testing.T) *StatsService {
	t.Helper()
	sqlDB, err := database.New(&config.Config{DBPath: ":memory:"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := repository.NewStatsRepository(sqlDB, db.New(sqlDB), zerolog.Nop())
	return NewStatsService(repo, zerolog.Nop())
}

func botSession(id, userID string, userWins bool) (*domain.BattleSession, *domain.BattleResult) {
	s := &domain.BattleSession{
		ID:              id,
		Kind:            domain.BattleKindBot,
		Player1:         domain.Participant{ID: userID, Name: userID},
		Player2:         domain.Participant{ID: constants.BotID, Name: constants.BotName},
		Player1Snapshot: mon("pikachu", 35, 55, 40, 90),
		Player2Snapshot: mon("bulbasaur", 45, 49, 49, 45),
		Status:          domain.BattleStatusActive,
	}
	r := &domain.BattleResult{
		BattleID:       id,
		Kind:           domain.BattleKindBot,
		WinnerID:       constants.BotID,
		LoserID:        userID,
		Player1Score:   40,
		Player2Score:   50,
		Player1Pokemon: s.Player1Snapshot,
		Player2Pokemon: s.Player2Snapshot,
		IsBotBattle:    true,
		ResolvedAt:     time.Now(),
	}
	if userWins {
		r.WinnerID, r.LoserID = userID, constants.BotID
		r.Player1Score, r.Player2Score = 50, 40
	}
	return s, r
}

func TestBattleRecordsSkipBot(t *testing.T) {
	s, r := botSession("b1", "ash", true)
	records := BattleRecords(s, r)
	if len(records) != 1 {
		t.Fatalf("records = %+v", records)
	}
	e := records[0].Entry
	if records[0].UserID != "ash" || e.Outcome != domain.OutcomeWin || e.OpponentKind != domain.OpponentBot {
		t.Fatalf("record = %+v", records[0])
	}
	if e.OwnPokemon.Name != "pikachu" || e.OwnPokemon.SpriteURL != "pikachu.png" || e.OpponentScore != 40 {
		t.Fatalf("entry = %+v", e)
	}
}

func TestBattleRecordsPvp(t *testing.T) {
	s := &domain.BattleSession{
		ID:              "b1",
		Kind:            domain.BattleKindPvP,
		Player1:         domain.Participant{ID: "ash", Name: "Ash"},
		Player2:         domain.Participant{ID: "misty", Name: "Misty"},
		Player1Snapshot: mon("pikachu", 35, 55, 40, 90),
		Player2Snapshot: mon("staryu", 30, 45, 55, 85),
	}
	r := &domain.BattleResult{
		BattleID:       "b1",
		WinnerID:       "misty",
		LoserID:        "ash",
		Player1Score:   41,
		Player2Score:   42,
		Player1Pokemon: s.Player1Snapshot,
		Player2Pokemon: s.Player2Snapshot,
	}

	records := BattleRecords(s, r)
	if len(records) != 2 {
		t.Fatalf("records = %+v", records)
	}
	ash, misty := records[0].Entry, records[1].Entry
	if ash.Outcome != domain.OutcomeLoss || ash.OpponentName != "Misty" || ash.OwnScore != 41 || ash.OpponentKind != domain.OpponentPlayer {
		t.Fatalf("ash entry = %+v", ash)
	}
	if misty.Outcome != domain.OutcomeWin || misty.OwnPokemon.Name != "staryu" || misty.OpponentPokemon.Name != "pikachu" {
		t.Fatalf("misty entry = %+v", misty)
	}
}

func TestStatsServiceRecordsThroughManager(t *testing.T) {
	stats := newTestStatsService(t)
	fetcher := &fakeFetcher{byKey: map[string]*domain.Pokemon{"1": mon("bulbasaur", 45, 49, 49, 45)}}
	favs := fakeFavorites{"ash": {"pikachu": mon("pikachu", 35, 55, 40, 90)}}
	m := newBattleFixture(favs).manager
	m.pokemon = fetcher
	m.stats = stats
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := m.CreateBotBattle(ctx, "ash", "Ash")
		if err != nil {
			t.Fatalf("CreateBotBattle: %v", err)
		}
		if _, err := m.Resolve(ctx, id); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if _, err := m.Resolve(ctx, id); err != nil {
			t.Fatalf("Resolve again: %v", err)
		}
	}

	got, err := m.Stats(ctx, "ash")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	// pikachu 49.5 beats bulbasaur 47.4 with no jitter
	if got.TotalBattles != 3 || got.Wins != 3 || got.WinRate != 100 {
		t.Fatalf("stats = %+v", got)
	}
	history, err := m.History(ctx, "ash")
	if err != nil || len(history) != 3 {
		t.Fatalf("history = %+v, %v", history, err)
	}
	if bot, _ := m.Stats(ctx, constants.BotID); bot.TotalBattles != 0 {
		t.Fatalf("bot must not have stats: %+v", bot)
	}
}

func TestChallengerCannotRenameOpponent(t *testing.T) {
	stats := newTestStatsService(t)
	m := newBattleFixture(fakeFavorites{
		"ash":   {"pikachu": mon("pikachu", 35, 55, 40, 90)},
		"misty": {"staryu": mon("staryu", 30, 45, 55, 85)},
	}).manager
	m.stats = stats
	ctx := context.Background()

	botID, err := m.CreateBotBattle(ctx, "misty", "Misty")
	if err != nil {
		t.Fatalf("CreateBotBattle: %v", err)
	}
	if _, err := m.Resolve(ctx, botID); err != nil {
		t.Fatalf("Resolve bot battle: %v", err)
	}

	pvpID, err := m.CreatePvpChallenge("ash", "Ash", "misty", "")
	if err != nil {
		t.Fatalf("CreatePvpChallenge: %v", err)
	}
	if _, err := m.Resolve(ctx, pvpID); err != nil {
		t.Fatalf("Resolve pvp: %v", err)
	}

	ranking, err := stats.Rank(ctx)
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	for _, e := range ranking {
		if e.UserID == "misty" && e.Username != "Misty" {
			t.Fatalf("misty ranked as %q", e.Username)
		}
	}
	history, err := stats.History(ctx, "ash")
	if err != nil || len(history) != 1 || history[0].OpponentName != "Misty" {
		t.Fatalf("ash history = %+v, %v", history, err)
	}
}

func TestHistoryIsCapped(t *testing.T) {
	stats := newTestStatsService(t)
	ctx := context.Background()

	for i := 0; i <= constants.HistoryPageSize; i++ {
		s, r := botSession(fmt.Sprintf("b%d", i), "ash", i%2 == 0)
		if err := stats.Record(ctx, s, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	history, err := stats.History(ctx, "ash")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != constants.HistoryPageSize {
		t.Fatalf("history len = %d, want %d", len(history), constants.HistoryPageSize)
	}
	if got, _ := stats.Stats(ctx, "ash"); got.TotalBattles != constants.HistoryPageSize+1 {
		t.Fatalf("stats must count every battle: %+v", got)
	}
}

func TestStatsConsistencyProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("wins + losses == total == k and winRate matches", prop.ForAll(
		func(outcomes []bool) bool {
			stats := newTestStatsService(t)
			ctx := context.Background()
			for i, win := range outcomes {
				s, r := botSession(fmt.Sprintf("b%d", i), "ash", win)
				if err := stats.Record(ctx, s, r); err != nil {
					return false
				}
			}

			got, err := stats.Stats(ctx, "ash")
			if err != nil {
				return false
			}
			k := len(outcomes)
			if got.Wins+got.Losses != got.TotalBattles || got.TotalBattles != k {
				return false
			}
			if k == 0 {
				return got.WinRate == 0
			}
			want := float64(got.Wins) / float64(k) * 100
			return math.Abs(got.WinRate-want) < 0.01
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestRankingOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("ranking is sorted by wins, win rate, total battles", prop.ForAll(
		func(wins, losses []int) bool {
			stats := newTestStatsService(t)
			ctx := context.Background()
			battle := 0
			for u := range wins {
				user := fmt.Sprintf("user%d", u)
				loss := 0
				if u < len(losses) {
					loss = losses[u]
				}
				for i := 0; i < wins[u]+loss; i++ {
					s, r := botSession(fmt.Sprintf("b%d", battle), user, i < wins[u])
					battle++
					if err := stats.Record(ctx, s, r); err != nil {
						return false
					}
				}
			}

			ranking, err := stats.Rank(ctx)
			if err != nil {
				return false
			}
			for i := 1; i < len(ranking); i++ {
				a, b := ranking[i-1], ranking[i]
				if a.TotalBattles == 0 || b.TotalBattles == 0 {
					return false
				}
				if a.Wins != b.Wins {
					if a.Wins < b.Wins {
						return false
					}
					continue
				}
				if a.WinRate != b.WinRate {
					if a.WinRate < b.WinRate {
						return false
					}
					continue
				}
				if a.TotalBattles < b.TotalBattles {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.IntRange(0, 4)),
		gen.SliceOfN(6, gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}
