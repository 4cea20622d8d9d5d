package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"poke-arena/internal/constants"
	"poke-arena/internal/domain"
	"poke-arena/internal/metrics"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const battleIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

type FavoritesProvider interface {
	Favorites(ctx context.Context, userID string) (map[string]*domain.Pokemon, error)
}

type PokemonFetcher interface {
	FetchPokemon(ctx context.Context, key string) (*domain.Pokemon, error)
}

type BotPool interface {
	RandomID(intn func(n int) int) (int, error)
}

// Roster answers for the players currently online.
type Roster interface {
	DisplayName(userID string) (string, bool)
}

type StatsRecorder interface {
	Record(ctx context.Context, session *domain.BattleSession, result *domain.BattleResult) error
	History(ctx context.Context, userID string) ([]domain.BattleHistoryEntry, error)
	Stats(ctx context.Context, userID string) (domain.UserBattleStats, error)
}

// battleEntry serializes every mutation of one session.
type battleEntry struct {
	mu      sync.Mutex
	session domain.BattleSession
}

// BattleManager owns all battle sessions. A session's creatures are drawn
// once and reused for scoring; its result is computed and recorded once.
type BattleManager struct {
	favorites FavoritesProvider
	pokemon   PokemonFetcher
	bots      BotPool
	stats     StatsRecorder
	roster    Roster

	jitter Jitter
	intn   func(n int) int
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*battleEntry

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewBattleManager(
	favorites FavoritesProvider,
	pokemon PokemonFetcher,
	bots BotPool,
	stats StatsRecorder,
	roster Roster,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *BattleManager {
	return &BattleManager{
		favorites: favorites,
		pokemon:   pokemon,
		bots:      bots,
		stats:     stats,
		roster:    roster,
		jitter:    RandomJitter,
		intn:      rand.IntN,
		now:       time.Now,
		sessions:  make(map[string]*battleEntry),
		metrics:   m,
		logger:    logger,
	}
}

// CreatePvpChallenge opens an accepted challenge. Creatures are drawn on
// first snapshot. The opponent must be online and is named by the roster,
// never by the challenger.
func (m *BattleManager) CreatePvpChallenge(challengerID, challengerName, opponentID, opponentName string) (string, error) {
	if challengerID == "" || opponentID == "" {
		return "", domain.Validationf("challenger and opponent ids are required")
	}
	if challengerID == opponentID {
		return "", domain.Validationf("cannot challenge yourself")
	}
	if opponentID == constants.BotID {
		return "", domain.Validationf("use a bot battle to fight the bot")
	}
	name, online := m.roster.DisplayName(opponentID)
	if !online {
		return "", domain.Validationf("player %s is not online", opponentID)
	}
	if opponentName != "" && opponentName != name {
		m.logger.Debug().
			Str("opponent", opponentID).
			Str("requested_name", opponentName).
			Msg("challenge opponent name replaced by roster name")
	}

	id, err := m.newID("battle")
	if err != nil {
		return "", err
	}

	m.add(domain.BattleSession{
		ID:        id,
		Kind:      domain.BattleKindPvP,
		Player1:   domain.Participant{ID: challengerID, Name: challengerName},
		Player2:   domain.Participant{ID: opponentID, Name: name},
		Status:    domain.BattleStatusActive,
		CreatedAt: m.now(),
	})

	m.logger.Info().
		Str("battle_id", id).
		Str("challenger", challengerID).
		Str("opponent", opponentID).
		Msg("challenge created")
	return id, nil
}

// CreateBotBattle draws the user's creature from their favorites and the
// bot's from the full catalog.
func (m *BattleManager) CreateBotBattle(ctx context.Context, userID, userName string) (string, error) {
	if userID == "" {
		return "", domain.Validationf("user id is required")
	}
	user := domain.Participant{ID: userID, Name: userName}

	own, err := m.drawFavorite(ctx, user)
	if err != nil {
		return "", err
	}
	bot, err := m.drawBot(ctx)
	if err != nil {
		return "", err
	}

	id, err := m.newID("bot_battle")
	if err != nil {
		return "", err
	}

	m.add(domain.BattleSession{
		ID:              id,
		Kind:            domain.BattleKindBot,
		Player1:         user,
		Player2:         domain.Participant{ID: constants.BotID, Name: constants.BotName},
		Player1Snapshot: own,
		Player2Snapshot: bot,
		Status:          domain.BattleStatusActive,
		CreatedAt:       m.now(),
	})

	m.logger.Info().
		Str("battle_id", id).
		Str("user_id", userID).
		Str("user_pokemon", own.Name).
		Str("bot_pokemon", bot.Name).
		Msg("bot battle created")
	return id, nil
}

// GetSnapshot returns the session with both creatures attached.
func (m *BattleManager) GetSnapshot(ctx context.Context, sessionID string) (domain.BattleSession, error) {
	entry, err := m.get(sessionID)
	if err != nil {
		return domain.BattleSession{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := m.attachSnapshots(ctx, &entry.session); err != nil {
		return domain.BattleSession{}, err
	}
	out := entry.session
	if out.Result != nil {
		result := *out.Result
		out.Result = &result
	}
	return out, nil
}

// Resolve scores the battle and records it. Later calls return the stored
// result unchanged.
func (m *BattleManager) Resolve(ctx context.Context, sessionID string) (*domain.BattleResult, error) {
	entry, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s := &entry.session

	if s.Result != nil {
		result := *s.Result
		return &result, nil
	}
	if !s.Status.CanAdvance(domain.BattleStatusResolved) {
		return nil, fmt.Errorf("battle %s cannot move from %s to resolved", s.ID, s.Status)
	}
	if err := m.attachSnapshots(ctx, s); err != nil {
		return nil, err
	}

	p1 := Score(s.Player1Snapshot, m.jitter())
	p2 := Score(s.Player2Snapshot, m.jitter())
	winner, loser := s.Player2, s.Player1
	if Player1Wins(p1, p2) {
		winner, loser = s.Player1, s.Player2
	}

	result := &domain.BattleResult{
		BattleID:       s.ID,
		Kind:           s.Kind,
		WinnerID:       winner.ID,
		LoserID:        loser.ID,
		Player1Score:   p1,
		Player2Score:   p2,
		Player1Pokemon: s.Player1Snapshot,
		Player2Pokemon: s.Player2Snapshot,
		IsBotBattle:    s.Kind == domain.BattleKindBot,
		ResolvedAt:     m.now(),
	}

	if err := m.stats.Record(ctx, s, result); err != nil {
		if !errors.Is(err, domain.ErrAlreadyRecorded) {
			return nil, err
		}
		m.logger.Warn().Err(err).Str("battle_id", s.ID).Msg("battle was already recorded")
	}

	s.Result = result
	s.Status = domain.BattleStatusResolved
	m.metrics.BattlesResolved.WithLabelValues(string(s.Kind)).Inc()

	m.logger.Info().
		Str("battle_id", s.ID).
		Str("winner", winner.ID).
		Float64("player1_score", p1).
		Float64("player2_score", p2).
		Msg("battle resolved")

	out := *result
	return &out, nil
}

// ResolveBot resolves a bot battle; other kinds are not found.
func (m *BattleManager) ResolveBot(ctx context.Context, sessionID string) (*domain.BattleResult, error) {
	entry, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	kind := entry.session.Kind
	entry.mu.Unlock()

	if kind != domain.BattleKindBot {
		return nil, fmt.Errorf("bot battle %s: %w", sessionID, domain.ErrNotFound)
	}
	return m.Resolve(ctx, sessionID)
}

// Standing projects the base scores without jitter and without resolving.
func (m *BattleManager) Standing(ctx context.Context, sessionID string) (domain.Standing, error) {
	entry, err := m.get(sessionID)
	if err != nil {
		return domain.Standing{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s := &entry.session
	if err := m.attachSnapshots(ctx, s); err != nil {
		return domain.Standing{}, err
	}

	p1 := round2(BaseScore(s.Player1Snapshot))
	p2 := round2(BaseScore(s.Player2Snapshot))
	return domain.Standing{
		BattleID:         s.ID,
		Player1BaseScore: p1,
		Player2BaseScore: p2,
		Player1Favoured:  Player1Wins(p1, p2),
		Resolved:         s.Status == domain.BattleStatusResolved,
	}, nil
}

func (m *BattleManager) Status(sessionID string) (domain.BattleStatus, error) {
	entry, err := m.get(sessionID)
	if err != nil {
		return "", err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Status, nil
}

func (m *BattleManager) History(ctx context.Context, userID string) ([]domain.BattleHistoryEntry, error) {
	return m.stats.History(ctx, userID)
}

func (m *BattleManager) Stats(ctx context.Context, userID string) (domain.UserBattleStats, error) {
	return m.stats.Stats(ctx, userID)
}

func (m *BattleManager) add(s domain.BattleSession) {
	m.mu.Lock()
	m.sessions[s.ID] = &battleEntry{session: s}
	m.mu.Unlock()
	m.metrics.BattlesCreated.WithLabelValues(string(s.Kind)).Inc()
}

func (m *BattleManager) get(sessionID string) (*battleEntry, error) {
	if sessionID == "" {
		return nil, domain.Validationf("battle id is required")
	}
	m.mu.RLock()
	entry, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("battle %s: %w", sessionID, domain.ErrNotFound)
	}
	return entry, nil
}

// attachSnapshots draws any missing creatures. Both are attached together
// or not at all. Caller holds the entry lock.
func (m *BattleManager) attachSnapshots(ctx context.Context, s *domain.BattleSession) error {
	if s.Player1Snapshot != nil && s.Player2Snapshot != nil {
		return nil
	}

	p1, p2 := s.Player1Snapshot, s.Player2Snapshot
	var err error
	if p1 == nil {
		if p1, err = m.drawFor(ctx, s.Player1); err != nil {
			return err
		}
	}
	if p2 == nil {
		if p2, err = m.drawFor(ctx, s.Player2); err != nil {
			return err
		}
	}

	s.Player1Snapshot, s.Player2Snapshot = p1, p2
	m.logger.Debug().
		Str("battle_id", s.ID).
		Str("player1_pokemon", p1.Name).
		Str("player2_pokemon", p2.Name).
		Msg("battle snapshots attached")
	return nil
}

func (m *BattleManager) drawFor(ctx context.Context, p domain.Participant) (*domain.Pokemon, error) {
	if p.ID == constants.BotID {
		return m.drawBot(ctx)
	}
	return m.drawFavorite(ctx, p)
}

// drawFavorite picks uniformly among the user's favorites. A saved snapshot
// without stats is refetched by name.
func (m *BattleManager) drawFavorite(ctx context.Context, p domain.Participant) (*domain.Pokemon, error) {
	favs, err := m.favorites.Favorites(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites for %s: %w", p.ID, err)
	}
	if len(favs) == 0 {
		name := p.Name
		if name == "" {
			name = p.ID
		}
		return nil, &domain.NoFavoritesError{PlayerName: name}
	}

	names := make([]string, 0, len(favs))
	for name := range favs {
		names = append(names, name)
	}
	sort.Strings(names)
	name := names[m.intn(len(names))]

	pick := favs[name]
	if pick.HasStats() {
		normalized := *pick
		normalized.Stats = domain.NormalizeStats(pick.Stats)
		return &normalized, nil
	}

	m.logger.Debug().Str("user_id", p.ID).Str("pokemon", name).Msg("favorite has no stats, refetching")
	return m.pokemon.FetchPokemon(ctx, strings.ToLower(name))
}

func (m *BattleManager) drawBot(ctx context.Context) (*domain.Pokemon, error) {
	id, err := m.bots.RandomID(m.intn)
	if err != nil {
		return nil, err
	}
	return m.pokemon.FetchPokemon(ctx, strconv.Itoa(id))
}

func (m *BattleManager) newID(prefix string) (string, error) {
	suffix, err := gonanoid.Generate(battleIDAlphabet, constants.BattleIDSuffix)
	if err != nil {
		return "", fmt.Errorf("failed to generate battle id: %w", err)
	}
	return fmt.Sprintf("%s_%d_%s", prefix, m.now().UnixMilli(), suffix), nil
}
