package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/groupwarden/groupwarden/internal/config"
	"github.com/groupwarden/groupwarden/internal/db"
)

// Store persists per-chat antispam profiles in the KV store and keeps a
// small in-process read cache. Writes invalidate the local cache entry,
// staleness from out-of-band writers is bounded by the cache TTL.
type Store struct {
	kv       db.KVStore
	ttl      time.Duration
	cacheTTL time.Duration

	mutex sync.RWMutex
	cache map[int64]cacheEntry
}

type cacheEntry struct {
	profile  *Antispam
	cachedAt time.Time
}

func NewStore(kv db.KVStore) *Store {
	cfg := config.Get()
	return &Store{
		kv:       kv,
		ttl:      cfg.Antispam.SettingsTTL,
		cacheTTL: cfg.Antispam.SettingsCacheTTL,
		cache:    map[int64]cacheEntry{},
	}
}

func settingsKey(chatID int64) string {
	return fmt.Sprintf("settings:antispam:%d", chatID)
}

// Get returns the chat profile, lazily creating defaults for chats that
// have none. Corrupt payloads are replaced with defaults rather than
// surfaced, moderation must not stall on a bad row.
func (s *Store) Get(ctx context.Context, chatID int64) (*Antispam, error) {
	s.mutex.RLock()
	entry, ok := s.cache[chatID]
	s.mutex.RUnlock()
	if ok && time.Since(entry.cachedAt) < s.cacheTTL {
		return entry.profile, nil
	}

	raw, err := s.kv.GetKV(ctx, settingsKey(chatID))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			profile := Default()
			if err := s.Set(ctx, chatID, profile); err != nil {
				return nil, errors.WithMessage(err, "initialize default settings")
			}
			return profile, nil
		}
		return nil, errors.WithMessage(err, "load settings")
	}

	profile := Default()
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("corrupt settings payload, resetting to defaults")
		profile = Default()
		if err := s.Set(ctx, chatID, profile); err != nil {
			return nil, errors.WithMessage(err, "reset corrupt settings")
		}
		return profile, nil
	}

	s.mutex.Lock()
	s.cache[chatID] = cacheEntry{profile: profile, cachedAt: time.Now()}
	s.mutex.Unlock()
	return profile, nil
}

// Set validates and persists the profile, refreshing its TTL and the cache.
func (s *Store) Set(ctx context.Context, chatID int64, profile *Antispam) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	encoded, err := json.Marshal(profile)
	if err != nil {
		return errors.WithMessage(err, "encode settings")
	}
	if err := s.kv.SetKV(ctx, settingsKey(chatID), string(encoded), s.ttl); err != nil {
		return errors.WithMessage(err, "store settings")
	}
	s.mutex.Lock()
	s.cache[chatID] = cacheEntry{profile: profile, cachedAt: time.Now()}
	s.mutex.Unlock()
	return nil
}

// Invalidate drops the cached profile for a chat.
func (s *Store) Invalidate(chatID int64) {
	s.mutex.Lock()
	delete(s.cache, chatID)
	s.mutex.Unlock()
}
