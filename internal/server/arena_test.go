package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"poke-arena/internal/config"
	"poke-arena/internal/database"
	"poke-arena/internal/db"
	"poke-arena/internal/domain"
	"poke-arena/internal/metrics"
	"poke-arena/internal/repository"
	"poke-arena/internal/service"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type stubUpstream struct{}

func (stubUpstream) FetchEntry(_ context.Context, category domain.Category, key string) (*domain.CatalogEntry, error) {
	if key == "missingno" {
		return nil, &domain.UpstreamError{Category: category, Key: key, StatusCode: http.StatusNotFound}
	}
	entry := &domain.CatalogEntry{Category: category, Key: key}
	switch category {
	case domain.CategoryPokemon:
		entry.Pokemon = &domain.Pokemon{
			ID:   1,
			Name: key,
			Stats: []domain.Stat{
				{Name: "hp", BaseStat: 45},
				{Name: "attack", BaseStat: 49},
				{Name: "defense", BaseStat: 49},
				{Name: "speed", BaseStat: 45},
			},
			Types: []string{"grass"},
		}
	default:
		entry.Members = []string{"bulbasaur"}
	}
	return entry, nil
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		DBPath:          ":memory:",
		CacheEnabled:    true,
		CacheTTL:        time.Hour,
		MaxConcurrent:   3,
		UpstreamTimeout: time.Second,
		QueueTimeout:    time.Second,
		PresenceTTL:     5 * time.Minute,
		CatalogIDLimit:  1000,
	}
	logger := zerolog.Nop()
	m := metrics.New()

	sqlDB, err := database.New(cfg, logger)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	queries := db.New(sqlDB)

	favorites := repository.NewFavoritesRepository(sqlDB, queries, logger)
	stats := service.NewStatsService(repository.NewStatsRepository(sqlDB, queries, logger), logger)
	gateway := service.NewCatalogGateway(stubUpstream{}, cfg, m, logger)
	index := service.NewCatalogIndex(nil, cfg, logger)
	index.Set([]int{1, 4, 7}, []string{"grass", "fire"}, []string{"overgrow"})
	presence := service.NewPresenceTracker(cfg, m, logger)
	battles := service.NewBattleManager(favorites, gateway, index, stats, presence, m, logger)

	return NewArenaServer(presence, battles, stats, gateway, index, favorites, m, logger).Handler()
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("X-User-Name", strings.ToUpper(user[:1])+user[1:])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, out
}

func TestRequiresIdentity(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodGet, "/heartbeat", "", nil)
	if rec.Code != http.StatusUnauthorized || body["message"] != "Authentication required" {
		t.Fatalf("got %d %v", rec.Code, body)
	}

	rec, _ = do(t, h, http.MethodGet, "/debug/online-users", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("debug endpoint should be open, got %d", rec.Code)
	}
}

func TestPresenceRoutes(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodGet, "/heartbeat", "misty", nil)
	rec, body := do(t, h, http.MethodGet, "/online-players", "ash", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("online-players = %d", rec.Code)
	}
	players := body["players"].([]any)
	if len(players) != 1 || players[0].(map[string]any)["id"] != "misty" || body["totalOnline"].(float64) != 2 {
		t.Fatalf("online-players body = %v", body)
	}

	do(t, h, http.MethodPost, "/logout", "misty", nil)
	_, body = do(t, h, http.MethodGet, "/online-players", "ash", nil)
	if len(body["players"].([]any)) != 0 {
		t.Fatalf("logout should remove presence: %v", body)
	}
}

func TestBotBattleFlow(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodPost, "/battle-bot", "ash", nil)
	if rec.Code != http.StatusBadRequest || body["error"] != "Cannot start battle" {
		t.Fatalf("battle without favorites = %d %v", rec.Code, body)
	}

	rec, _ = do(t, h, http.MethodPost, "/favorites", "ash", map[string]string{"name": "bulbasaur"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add favorite = %d", rec.Code)
	}

	rec, body = do(t, h, http.MethodPost, "/battle-bot", "ash", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("battle-bot = %d %v", rec.Code, body)
	}
	id := body["battleId"].(string)
	if body["player1Pokemon"] == nil || body["player2Pokemon"] == nil {
		t.Fatalf("bot battle should carry both creatures: %v", body)
	}

	_, standing := do(t, h, http.MethodGet, "/battle/"+id+"/standing", "ash", nil)
	if standing["resolved"] != false {
		t.Fatalf("standing = %v", standing)
	}

	rec, first := do(t, h, http.MethodGet, "/battle-bot/"+id+"/result", "ash", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("result = %d %v", rec.Code, first)
	}
	_, second := do(t, h, http.MethodGet, "/battle/"+id+"/result", "ash", nil)
	if first["player1Score"] != second["player1Score"] || first["winner"] != second["winner"] {
		t.Fatalf("result changed between reads: %v vs %v", first, second)
	}

	_, status := do(t, h, http.MethodGet, "/battle/"+id+"/status", "ash", nil)
	if status["status"] != string(domain.BattleStatusResolved) {
		t.Fatalf("status = %v", status)
	}

	_, history := do(t, h, http.MethodGet, "/battle-history", "ash", nil)
	if len(history["history"].([]any)) != 1 || history["stats"].(map[string]any)["totalBattles"].(float64) != 1 {
		t.Fatalf("history = %v", history)
	}

	_, ranking := do(t, h, http.MethodGet, "/player-ranking", "misty", nil)
	rankings := ranking["rankings"].([]any)
	if len(rankings) != 1 || rankings[0].(map[string]any)["username"] != "Ash" {
		t.Fatalf("ranking = %v", ranking)
	}
}

func TestChallengeFlow(t *testing.T) {
	h := newTestServer(t)

	rec, body := do(t, h, http.MethodPost, "/challenge-player", "ash", map[string]string{"opponentId": "ash"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("self challenge = %d %v", rec.Code, body)
	}

	rec, _ = do(t, h, http.MethodPost, "/challenge-player", "ash", map[string]string{"opponentId": "misty", "opponentName": "Misty"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("offline opponent = %d", rec.Code)
	}

	do(t, h, http.MethodGet, "/heartbeat", "misty", nil)
	rec, body = do(t, h, http.MethodPost, "/challenge-player", "ash", map[string]string{"opponentId": "misty", "opponentName": ""})
	if rec.Code != http.StatusOK || body["status"] != "accepted" {
		t.Fatalf("challenge = %d %v", rec.Code, body)
	}
	id := body["battleId"].(string)

	_, session := do(t, h, http.MethodGet, "/battle/"+id+"/status", "ash", nil)
	if session["status"] != string(domain.BattleStatusActive) {
		t.Fatalf("status = %v", session)
	}

	rec, _ = do(t, h, http.MethodGet, "/battle-bot/"+id+"/result", "ash", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("pvp battle on bot route = %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/battle/unknown/status", "ash", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown battle = %d", rec.Code)
	}
}

func TestCatalogRoutes(t *testing.T) {
	h := newTestServer(t)

	_, body := do(t, h, http.MethodGet, "/idList", "ash", nil)
	if len(body["idList"].([]any)) != 3 {
		t.Fatalf("idList = %v", body)
	}

	rec, body := do(t, h, http.MethodGet, "/search/null/grass/overgrow", "ash", nil)
	if rec.Code != http.StatusOK || len(body["allPokemons"].([]any)) != 1 {
		t.Fatalf("search = %d %v", rec.Code, body)
	}

	rec, _ = do(t, h, http.MethodGet, "/search/null/water/null", "ash", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid search = %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodPost, "/favorites", "ash", map[string]string{"name": "missingno"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown pokemon favorite = %d", rec.Code)
	}
}

func TestFavoritesRoutes(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodPost, "/favorites", "ash", map[string]string{"name": "pikachu"})
	rec, _ := do(t, h, http.MethodPost, "/favorites", "ash", map[string]string{"name": "pikachu"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate favorite = %d", rec.Code)
	}

	_, body := do(t, h, http.MethodGet, "/favorites", "ash", nil)
	if _, ok := body["favorites"].(map[string]any)["pikachu"]; !ok {
		t.Fatalf("favorites = %v", body)
	}

	rec, _ = do(t, h, http.MethodDelete, "/favorites?name=Pikachu", "ash", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove favorite = %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodDelete, "/favorites?name=pikachu", "ash", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second remove = %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	h := newTestServer(t)

	do(t, h, http.MethodGet, "/heartbeat", "ash", nil)
	rec, _ := do(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "arena_presence_online_users 1") {
		t.Fatalf("metrics = %d %s", rec.Code, rec.Body.String())
	}
}
