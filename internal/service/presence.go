package service

import (
	"sort"
	"sync"
	"time"

	"poke-arena/internal/config"
	"poke-arena/internal/domain"
	"poke-arena/internal/metrics"

	"github.com/rs/zerolog"
)

// PresenceTracker records who has been active within the presence TTL.
// Expired records are purged lazily on read.
type PresenceTracker struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]domain.PresenceRecord

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

type PresenceSnapshot struct {
	Total int             `json:"total"`
	Users []PresenceEntry `json:"users"`
}

type PresenceEntry struct {
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	SecondsAgo int64  `json:"secondsAgo"`
}

func NewPresenceTracker(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{
		ttl:     cfg.PresenceTTL,
		now:     time.Now,
		records: make(map[string]domain.PresenceRecord),
		metrics: m,
		logger:  logger,
	}
}

func (p *PresenceTracker) Touch(userID, displayName string) {
	if userID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[userID]; !ok {
		p.logger.Debug().Str("user_id", userID).Msg("user online")
	}
	p.records[userID] = domain.PresenceRecord{
		UserID:      userID,
		DisplayName: displayName,
		LastSeen:    p.now(),
	}
	p.metrics.OnlineUsers.Set(float64(len(p.records)))
}

// ListOthers returns every live participant except excludingUserID.
func (p *PresenceTracker) ListOthers(excludingUserID string) []domain.Participant {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purgeLocked()

	others := make([]domain.Participant, 0, len(p.records))
	for id, rec := range p.records {
		if id == excludingUserID {
			continue
		}
		others = append(others, domain.Participant{ID: id, Name: rec.DisplayName})
	}
	return others
}

// DisplayName returns the name a live user last reported.
func (p *PresenceTracker) DisplayName(userID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[userID]
	if !ok || p.now().Sub(rec.LastSeen) > p.ttl {
		return "", false
	}
	return rec.DisplayName, true
}

func (p *PresenceTracker) Remove(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, userID)
	p.metrics.OnlineUsers.Set(float64(len(p.records)))
}

func (p *PresenceTracker) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purgeLocked()
	return len(p.records)
}

// Snapshot lists live records, most recently seen first.
func (p *PresenceTracker) Snapshot() PresenceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purgeLocked()

	now := p.now()
	users := make([]PresenceEntry, 0, len(p.records))
	for _, rec := range p.records {
		users = append(users, PresenceEntry{
			UserID:     rec.UserID,
			Name:       rec.DisplayName,
			SecondsAgo: int64(now.Sub(rec.LastSeen) / time.Second),
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].SecondsAgo < users[j].SecondsAgo })
	return PresenceSnapshot{Total: len(users), Users: users}
}

// caller holds p.mu
func (p *PresenceTracker) purgeLocked() {
	now := p.now()
	for id, rec := range p.records {
		if now.Sub(rec.LastSeen) > p.ttl {
			delete(p.records, id)
			p.logger.Debug().Str("user_id", id).Msg("presence expired")
		}
	}
	p.metrics.OnlineUsers.Set(float64(len(p.records)))
}
