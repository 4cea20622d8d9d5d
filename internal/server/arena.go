package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"poke-arena/internal/domain"
	"poke-arena/internal/metrics"
	"poke-arena/internal/middleware"
	"poke-arena/internal/repository"
	"poke-arena/internal/service"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type ArenaServer struct {
	presence  *service.PresenceTracker
	battles   *service.BattleManager
	stats     *service.StatsService
	catalog   *service.CatalogGateway
	index     *service.CatalogIndex
	favorites *repository.FavoritesRepository
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewArenaServer(
	presence *service.PresenceTracker,
	battles *service.BattleManager,
	stats *service.StatsService,
	catalog *service.CatalogGateway,
	index *service.CatalogIndex,
	favorites *repository.FavoritesRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ArenaServer {
	return &ArenaServer{
		presence:  presence,
		battles:   battles,
		stats:     stats,
		catalog:   catalog,
		index:     index,
		favorites: favorites,
		metrics:   m,
		logger:    logger,
	}
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handler routes every endpoint. All routes except the debug and metrics
// ones require an identity.
func (s *ArenaServer) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := middleware.Identity(s.presence)

	protected := map[string]handlerFunc{
		"GET /heartbeat":                    s.heartbeat,
		"GET /online-players":               s.onlinePlayers,
		"POST /logout":                      s.logout,
		"POST /challenge-player":            s.challengePlayer,
		"POST /battle-bot":                  s.battleBot,
		"GET /battle/{id}":                  s.battle,
		"GET /battle/{id}/result":           s.battleResult,
		"GET /battle/{id}/standing":         s.battleStanding,
		"GET /battle/{id}/status":           s.battleStatus,
		"GET /battle-bot/{id}/result":       s.botBattleResult,
		"GET /player-ranking":               s.playerRanking,
		"GET /battle-history":               s.battleHistory,
		"GET /idList":                       s.idList,
		"GET /typeList":                     s.typeList,
		"GET /abilityList":                  s.abilityList,
		"GET /search/{id}/{type}/{ability}": s.search,
		"GET /favorites":                    s.listFavorites,
		"POST /favorites":                   s.addFavorite,
		"DELETE /favorites":                 s.removeFavorite,
	}
	for pattern, h := range protected {
		mux.Handle(pattern, auth(s.wrap(h)))
	}

	mux.Handle("GET /debug/online-users", s.wrap(s.debugOnlineUsers))
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

func (s *ArenaServer) wrap(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	})
}

func (s *ArenaServer) heartbeat(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Heartbeat received",
		"onlineUsers": s.presence.Size(),
	})
}

func (s *ArenaServer) onlinePlayers(w http.ResponseWriter, r *http.Request) error {
	user, _ := middleware.GetUser(r.Context())
	players := s.presence.ListOthers(user.ID)
	return writeJSON(w, http.StatusOK, map[string]any{
		"players":     players,
		"currentUser": user.Name,
		"totalOnline": s.presence.Size(),
	})
}

func (s *ArenaServer) logout(w http.ResponseWriter, r *http.Request) error {
	user, _ := middleware.GetUser(r.Context())
	s.presence.Remove(user.ID)
	return writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *ArenaServer) debugOnlineUsers(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, s.presence.Snapshot())
}

type challengeRequest struct {
	OpponentID   string `json:"opponentId"`
	OpponentName string `json:"opponentName"`
}

func (s *ArenaServer) challengePlayer(w http.ResponseWriter, r *http.Request) error {
	user, _ := middleware.GetUser(r.Context())

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return domain.Validationf("invalid challenge body: %v", err)
	}

	id, err := s.battles.CreatePvpChallenge(user.ID, user.Name, req.OpponentID, req.OpponentName)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{
		"status":   "accepted",
		"battleId": id,
		"message":  "Challenge accepted! Battle starting...",
	})
}

func (s *ArenaServer) battleBot(w http.ResponseWriter, r *http.Request) error {
	user, _ := middleware.GetUser(r.Context())

	id, err := s.battles.CreateBotBattle(r.Context(), user.ID, user.Name)
	if err != nil {
		return err
	}
	session, err := s.battles.GetSnapshot(r.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, session)
}

func (s *ArenaServer) battle(w http.ResponseWriter, r *http.Request) error {
	session, err := s.battles.GetSnapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, session)
}

func (s *ArenaServer) battleResult(w http.ResponseWriter, r *http.Request) error {
	result, err := s.battles.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

func (s *ArenaServer) botBattleResult(w http.ResponseWriter, r *http.Request) error {
	result, err := s.battles.ResolveBot(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
}

func (s *ArenaServer) battleStanding(w http.ResponseWriter, r *http.Request) error {
	standing, err := s.battles.Standing(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, standing)
}

func (s *ArenaServer) battleStatus(w http.ResponseWriter, r *http.Request) error {
	status, err := s.battles.Status(r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]domain.BattleStatus{"status": status})
}

func (s *ArenaServer) playerRanking(w http.ResponseWriter, r *http.Request) error {
	rankings, err := s.stats.Rank(r.Context())
	if err != nil {
		return err
	}
	if rankings == nil {
		rankings = []domain.RankingEntry{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{"rankings": rankings})
}

func (s *ArenaServer) battleHistory(w http.ResponseWriter, r *http.Request) error {
	user, _ := middleware.GetUser(r.Context())

	history, err := s.battles.History(r.Context(), user.ID)
	if err != nil {
		return err
	}
	stats, err := s.battles.Stats(r.Context(), user.ID)
	if err != nil {
		return err
	}
	if history == nil {
		history = []domain.BattleHistoryEntry{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"stats":   stats,
	})
}

func (s *ArenaServer) idList(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string][]int{"idList": s.index.IDs()})
}

func (s *ArenaServer) typeList(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string][]string{"typeList": s.index.Types()})
}

func (s *ArenaServer) abilityList(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string][]string{"abilityList": s.index.Abilities()})
}

func (s *ArenaServer) search(w http.ResponseWriter, r *http.Request) error {
	id, typeName, ability := r.PathValue("id"), r.PathValue("type"), r.PathValue("ability")
	if !s.index.IsValid(id, typeName, ability) {
		return domain.Validationf("Invalid search parameters")
	}

	results, err := s.catalog.Search(r.Context(), id, typeName, ability)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"allPokemons": results})
}

func (s *ArenaServer) listFavorites(w http.ResponseWriter, r *http.Request) error {
	user, _ := middleware.GetUser(r.Context())

	favs, err := s.favorites.Favorites(r.Context(), user.ID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"favorites": favs})
}

// addFavorite stores the posted snapshot. A body carrying only a name is
// completed through the catalog.
func (s *ArenaServer) addFavorite(w http.ResponseWriter, r *http.Request) error {
	user, _ := middleware.GetUser(r.Context())

	var p domain.Pokemon
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return domain.Validationf("invalid pokemon body: %v", err)
	}
	if strings.TrimSpace(p.Name) == "" {
		return domain.Validationf("pokemon name is required")
	}

	fav := &p
	if !p.HasStats() {
		fetched, err := s.catalog.FetchPokemon(r.Context(), p.Name)
		if err != nil {
			return err
		}
		fav = fetched
	}

	if err := s.favorites.Add(r.Context(), user.ID, fav); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, fav)
}

func (s *ArenaServer) removeFavorite(w http.ResponseWriter, r *http.Request) error {
	user, _ := middleware.GetUser(r.Context())

	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		return domain.Validationf("name query parameter is required")
	}
	if err := s.favorites.Remove(r.Context(), user.ID, name); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]string{"message": "Favorite removed"})
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (s *ArenaServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)

	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	} else {
		logger.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}

	if werr := writeJSON(w, status, body); werr != nil {
		s.logger.Warn().Err(werr).Msg("failed to write error response")
	}
}

func errorResponse(err error) (int, errorBody) {
	var nf *domain.NoFavoritesError
	var ue *domain.UpstreamError
	switch {
	case errors.As(err, &nf):
		return http.StatusBadRequest, errorBody{
			Error:   "Cannot start battle",
			Message: nf.Error() + ". Please add some Pokemon to your favorites before battling.",
		}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.Is(err, domain.ErrCatalogNotReady):
		return http.StatusServiceUnavailable, errorBody{Error: "Pokemon database not ready"}
	case errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound:
		return http.StatusNotFound, errorBody{Error: "No results found"}
	case errors.Is(err, domain.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, errorBody{Error: "Pokemon provider timed out"}
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, errorBody{Error: "Pokemon provider unavailable"}
	default:
		return http.StatusInternalServerError, errorBody{Error: "Internal server error"}
	}
}

// writeJSON encodes before writing so an encode failure can still become an
// error response.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
	return nil
}
