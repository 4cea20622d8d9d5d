package service

import (
	"context"
	"fmt"

	"poke-arena/internal/constants"
	"poke-arena/internal/domain"
	"poke-arena/internal/repository"

	"github.com/rs/zerolog"
)

// StatsService turns resolved battles into per-user history rows and stats,
// and serves the ranking.
type StatsService struct {
	repo   *repository.StatsRepository
	logger zerolog.Logger
}

func NewStatsService(repo *repository.StatsRepository, logger zerolog.Logger) *StatsService {
	return &StatsService{
		repo:   repo,
		logger: logger,
	}
}

// Record stores the result for every human participant. The bot has no
// history or stats.
func (s *StatsService) Record(ctx context.Context, session *domain.BattleSession, result *domain.BattleResult) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	records := BattleRecords(session, result)
	if err := s.repo.RecordBattle(ctx, records); err != nil {
		return fmt.Errorf("failed to record battle %s: %w", session.ID, err)
	}

	s.logger.Info().
		Str("battle_id", session.ID).
		Str("winner", result.WinnerID).
		Float64("player1_score", result.Player1Score).
		Float64("player2_score", result.Player2Score).
		Msg("battle result recorded")
	return nil
}

func (s *StatsService) Rank(ctx context.Context) ([]domain.RankingEntry, error) {
	return s.repo.ListRankings(ctx)
}

func (s *StatsService) History(ctx context.Context, userID string) ([]domain.BattleHistoryEntry, error) {
	return s.repo.ListHistory(ctx, userID, constants.HistoryPageSize)
}

func (s *StatsService) Stats(ctx context.Context, userID string) (domain.UserBattleStats, error) {
	return s.repo.GetStats(ctx, userID)
}

// BattleRecords builds one record per human side of the battle.
func BattleRecords(session *domain.BattleSession, result *domain.BattleResult) []repository.BattleRecord {
	sides := []struct {
		self, opponent          domain.Participant
		own, other              *domain.Pokemon
		ownScore, opponentScore float64
	}{
		{session.Player1, session.Player2, result.Player1Pokemon, result.Player2Pokemon, result.Player1Score, result.Player2Score},
		{session.Player2, session.Player1, result.Player2Pokemon, result.Player1Pokemon, result.Player2Score, result.Player1Score},
	}

	var records []repository.BattleRecord
	for _, side := range sides {
		if side.self.ID == constants.BotID {
			continue
		}

		kind := domain.OpponentPlayer
		if side.opponent.ID == constants.BotID {
			kind = domain.OpponentBot
		}
		outcome := domain.OutcomeLoss
		if result.WinnerID == side.self.ID {
			outcome = domain.OutcomeWin
		}

		records = append(records, repository.BattleRecord{
			UserID:   side.self.ID,
			Username: side.self.Name,
			Entry: domain.BattleHistoryEntry{
				BattleID:        session.ID,
				Date:            result.ResolvedAt,
				OpponentName:    side.opponent.Name,
				OpponentKind:    kind,
				OwnPokemon:      side.own.Ref(),
				OpponentPokemon: side.other.Ref(),
				OwnScore:        side.ownScore,
				OpponentScore:   side.opponentScore,
				Outcome:         outcome,
			},
		})
	}
	return records
}
