// Package answercache keeps answer files on disk and expires entries that
// have not been read or written for longer than a TTL. Expiry runs only when
// Sweep is called, against an injected clock.
package answercache

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"docassembly-sdk/internal/common/config"
	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

type Cache struct {
	dv     *diskv.Diskv
	ttl    time.Duration
	clock  Clock
	logger logger.Logger

	mu         sync.Mutex
	lastAccess map[string]time.Time
}

// New opens the cache in cfg.Dir. Entries already on disk count as accessed now.
func New(cfg config.AnswerCacheConfig, clock Clock, log logger.Logger) *Cache {
	if clock == nil {
		clock = SystemClock
	}
	c := &Cache{
		dv: diskv.New(diskv.Options{
			BasePath:     cfg.Dir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 1024 * 1024,
		}),
		ttl:        config.GetSeconds(cfg.TTL),
		clock:      clock,
		logger:     logger.OrNoOp(log),
		lastAccess: make(map[string]time.Time),
	}

	now := clock.Now()
	for k := range c.dv.Keys(nil) {
		c.lastAccess[k] = now
	}
	return c
}

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return errors.NewInvalidArgumentError("key", fmt.Sprintf("invalid answer cache key %q", key), "")
	}
	return nil
}

// Put stores answer XML under key.
func (c *Cache) Put(key, answersXML string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dv.WriteString(key, answersXML); err != nil {
		return fmt.Errorf("write answers %s: %w", key, err)
	}
	c.lastAccess[key] = c.clock.Now()
	return nil
}

// Get returns the answer XML under key and marks it accessed.
func (c *Cache) Get(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dv.Has(key) {
		delete(c.lastAccess, key)
		return "", false, nil
	}
	data, err := c.dv.Read(key)
	if err != nil {
		return "", false, fmt.Errorf("read answers %s: %w", key, err)
	}
	c.lastAccess[key] = c.clock.Now()
	return string(data), true, nil
}

func (c *Cache) Delete(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lastAccess, key)
	if !c.dv.Has(key) {
		return nil
	}
	return c.dv.Erase(key)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastAccess)
}

// Sweep removes entries idle for longer than the TTL and returns how many
// were removed. A zero TTL disables expiry.
func (c *Cache) Sweep() (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.clock.Now().Add(-c.ttl)
	removed := 0
	for key, at := range c.lastAccess {
		if at.After(cutoff) {
			continue
		}
		if c.dv.Has(key) {
			if err := c.dv.Erase(key); err != nil {
				return removed, fmt.Errorf("expire answers %s: %w", key, err)
			}
		}
		delete(c.lastAccess, key)
		removed++
	}
	if removed > 0 {
		c.logger.Debug("Expired cached answers", map[string]interface{}{logger.KeyCount: removed})
	}
	return removed, nil
}
