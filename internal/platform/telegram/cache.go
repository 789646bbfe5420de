package telegram

import (
	"sync"
	"time"

	"relaybot/internal/domain"
)

const (
	cacheMaxEntries = 2048
	cacheTTL        = 2 * time.Hour
)

type cacheKey struct {
	chatID    int64
	messageID int
}

type cacheEntry struct {
	ev      *domain.ChatEvent
	addedAt time.Time
}

// messageCache keeps recently seen messages so reply chains can be
// walked past the single inline hop Telegram provides. Entries expire;
// nothing survives a restart, in keeping with the no-persistence rule
// for conversation content.
type messageCache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	max     int
	ttl     time.Duration
}

func newMessageCache(max int, ttl time.Duration) *messageCache {
	return &messageCache{
		entries: make(map[cacheKey]cacheEntry),
		max:     max,
		ttl:     ttl,
	}
}

func (c *messageCache) put(ev *domain.ChatEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		c.evictLocked()
	}

	c.entries[cacheKey{ev.ChatID, ev.MessageID}] = cacheEntry{
		ev:      ev,
		addedAt: time.Now(),
	}
}

func (c *messageCache) get(chatID int64, messageID int) (*domain.ChatEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cacheKey{chatID, messageID}]
	if !ok {
		return nil, false
	}
	if time.Since(entry.addedAt) > c.ttl {
		delete(c.entries, cacheKey{chatID, messageID})
		return nil, false
	}
	return entry.ev, true
}

// evictLocked drops expired entries, then the oldest ones until the
// cache is under its cap again.
func (c *messageCache) evictLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.Sub(e.addedAt) > c.ttl {
			delete(c.entries, k)
		}
	}

	for len(c.entries) >= c.max {
		var oldestKey cacheKey
		var oldestAt time.Time
		first := true
		for k, e := range c.entries {
			if first || e.addedAt.Before(oldestAt) {
				oldestKey, oldestAt, first = k, e.addedAt, false
			}
		}
		delete(c.entries, oldestKey)
	}
}
