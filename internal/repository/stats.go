package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"poke-arena/internal/db"
	"poke-arena/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// BattleRecord is one participant's view of a resolved battle.
type BattleRecord struct {
	UserID   string
	Username string
	Entry    domain.BattleHistoryEntry
}

type StatsRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewStatsRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *StatsRepository {
	return &StatsRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// RecordBattle applies every participant's history row and stats increment
// in one transaction. A battle already recorded for a participant fails the
// whole batch with domain.ErrAlreadyRecorded.
func (r *StatsRepository) RecordBattle(ctx context.Context, records []BattleRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)
	now := time.Now()

	for _, rec := range records {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}

		e := rec.Entry
		err = qtx.InsertBattleHistory(ctx, db.InsertBattleHistoryParams{
			ID:                    id,
			BattleID:              e.BattleID,
			UserID:                rec.UserID,
			Date:                  e.Date,
			OpponentName:          e.OpponentName,
			OpponentKind:          string(e.OpponentKind),
			OwnPokemonName:        e.OwnPokemon.Name,
			OwnPokemonSprite:      e.OwnPokemon.SpriteURL,
			OpponentPokemonName:   e.OpponentPokemon.Name,
			OpponentPokemonSprite: e.OpponentPokemon.SpriteURL,
			OwnScore:              e.OwnScore,
			OpponentScore:         e.OpponentScore,
			Outcome:               string(e.Outcome),
		})
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("battle %s for %s: %w", e.BattleID, rec.UserID, domain.ErrAlreadyRecorded)
			}
			return fmt.Errorf("failed to insert battle history: %w", err)
		}

		var wins, losses int64
		if e.Outcome == domain.OutcomeWin {
			wins = 1
		} else {
			losses = 1
		}
		if err := qtx.UpsertUserStats(ctx, db.UpsertUserStatsParams{
			UserID:    rec.UserID,
			Username:  rec.Username,
			Wins:      wins,
			Losses:    losses,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to upsert user stats: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit battle records: %w", err)
	}
	r.logger.Debug().Str("battle_id", records[0].Entry.BattleID).Int("records", len(records)).Msg("battle recorded")
	return nil
}

func (r *StatsRepository) GetStats(ctx context.Context, userID string) (domain.UserBattleStats, error) {
	row, err := r.queries.GetUserStats(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserBattleStats{}, nil
	}
	if err != nil {
		return domain.UserBattleStats{}, err
	}
	return domain.UserBattleStats{
		TotalBattles: int(row.TotalBattles),
		Wins:         int(row.Wins),
		Losses:       int(row.Losses),
		WinRate:      row.WinRate,
	}, nil
}

func (r *StatsRepository) ListRankings(ctx context.Context) ([]domain.RankingEntry, error) {
	rows, err := r.queries.ListRankings(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.RankingEntry, len(rows))
	for i, row := range rows {
		result[i] = domain.RankingEntry{
			UserID:       row.UserID,
			Username:     row.Username,
			TotalBattles: int(row.TotalBattles),
			Wins:         int(row.Wins),
			Losses:       int(row.Losses),
			WinRate:      row.WinRate,
		}
	}
	return result, nil
}

// ListHistory returns the user's battles most recent first.
func (r *StatsRepository) ListHistory(ctx context.Context, userID string, limit int) ([]domain.BattleHistoryEntry, error) {
	rows, err := r.queries.ListBattleHistoryByUser(ctx, db.ListBattleHistoryByUserParams{
		UserID: userID,
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.BattleHistoryEntry, len(rows))
	for i, row := range rows {
		result[i] = domain.BattleHistoryEntry{
			BattleID:     row.BattleID,
			Date:         row.Date,
			OpponentName: row.OpponentName,
			OpponentKind: domain.OpponentKind(row.OpponentKind),
			OwnPokemon: domain.PokemonRef{
				Name:      row.OwnPokemonName,
				SpriteURL: row.OwnPokemonSprite,
			},
			OpponentPokemon: domain.PokemonRef{
				Name:      row.OpponentPokemonName,
				SpriteURL: row.OpponentPokemonSprite,
			},
			OwnScore:      row.OwnScore,
			OpponentScore: row.OpponentScore,
			Outcome:       domain.Outcome(row.Outcome),
		}
	}
	return result, nil
}
