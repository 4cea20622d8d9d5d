package fx

import (
	"context"
	"database/sql"

	"poke-arena/internal/api"
	"poke-arena/internal/config"
	"poke-arena/internal/constants"
	"poke-arena/internal/database"
	"poke-arena/internal/db"
	"poke-arena/internal/logger"
	"poke-arena/internal/metrics"
	"poke-arena/internal/repository"
	"poke-arena/internal/server"
	"poke-arena/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

func ProvideGateway(client *api.PokeAPIClient, cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *service.CatalogGateway {
	return service.NewCatalogGateway(client, cfg, m, logger)
}

func ProvideIndex(client *api.PokeAPIClient, cfg *config.Config, logger zerolog.Logger) *service.CatalogIndex {
	return service.NewCatalogIndex(client, cfg, logger)
}

func ProvideBattleManager(
	favorites *repository.FavoritesRepository,
	gateway *service.CatalogGateway,
	index *service.CatalogIndex,
	stats *service.StatsService,
	presence *service.PresenceTracker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *service.BattleManager {
	return service.NewBattleManager(favorites, gateway, index, stats, presence, m, logger)
}

// LoadIndex fills the catalog index in the background once the app starts.
// Requests that need it fail with ErrCatalogNotReady until it is loaded.
func LoadIndex(lc fx.Lifecycle, index *service.CatalogIndex, logger zerolog.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := index.LoadWithRetry(ctx, constants.CatalogLoadAttempts, constants.CatalogRetryDelay); err != nil {
					logger.Error().Err(err).Msg("catalog index unavailable")
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(metrics.New),
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(repository.NewStatsRepository),
	fx.Provide(repository.NewFavoritesRepository),
	// api client
	fx.Provide(api.NewPokeAPIClient),
	// svc
	fx.Provide(ProvideGateway),
	fx.Provide(ProvideIndex),
	fx.Provide(service.NewPresenceTracker),
	fx.Provide(service.NewStatsService),
	fx.Provide(ProvideBattleManager),
	fx.Invoke(LoadIndex),
	// server
	fx.Provide(server.NewArenaServer),
)
