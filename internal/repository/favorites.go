package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"poke-arena/internal/db"
	"poke-arena/internal/domain"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// FavoritesRepository stores each user's saved Pokemon snapshots keyed by
// name (case-insensitive).
type FavoritesRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewFavoritesRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *FavoritesRepository {
	return &FavoritesRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *FavoritesRepository) Favorites(ctx context.Context, userID string) (map[string]*domain.Pokemon, error) {
	rows, err := r.queries.ListFavoritesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	result := make(map[string]*domain.Pokemon, len(rows))
	for _, row := range rows {
		var p domain.Pokemon
		if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
			r.logger.Warn().Err(err).Str("user_id", userID).Str("name", row.Name).Msg("skipping unreadable favorite")
			continue
		}
		result[row.Name] = &p
	}
	return result, nil
}

func (r *FavoritesRepository) Add(ctx context.Context, userID string, p *domain.Pokemon) error {
	if userID == "" || p == nil || strings.TrimSpace(p.Name) == "" {
		return domain.Validationf("favorite requires a user and a named pokemon")
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode favorite: %w", err)
	}

	err = r.queries.InsertFavorite(ctx, db.InsertFavoriteParams{
		UserID:    userID,
		Name:      p.Name,
		Payload:   string(payload),
		CreatedAt: time.Now(),
	})
	if isUniqueViolation(err) {
		return domain.Validationf("%s is already in favorites", p.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert favorite: %w", err)
	}
	return nil
}

func (r *FavoritesRepository) Remove(ctx context.Context, userID, name string) error {
	n, err := r.queries.DeleteFavorite(ctx, userID, strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("favorite %q: %w", name, domain.ErrNotFound)
	}
	return nil
}
