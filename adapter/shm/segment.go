package shm

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/internal/wire"
)

// lifeWindow disables bigcache's own expiry; entries carry their own.
const lifeWindow = 100 * 365 * 24 * time.Hour

// SegmentConfig sizes a segment. Zero values pick bigcache defaults.
type SegmentConfig struct {
	Shards             int // power of two
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited; oldest entries are evicted when full
	// Clock overrides time.Now for expiry.
	Clock func() time.Time
}

// Segment is a process-wide byte store with per-entry expiry shared by every
// shm adapter that points at it. Keys are backend (prefixed) keys.
type Segment struct {
	c   *bc.BigCache
	now func() time.Time
	mu  sync.Mutex // serializes writers so read-modify-write is atomic
}

func NewSegment(cfg SegmentConfig) (*Segment, error) {
	for opt, v := range map[string]int{
		"Shards":             cfg.Shards,
		"MaxEntriesInWindow": cfg.MaxEntriesInWindow,
		"MaxEntrySize":       cfg.MaxEntrySize,
		"HardMaxCacheSizeMB": cfg.HardMaxCacheSizeMB,
	} {
		if v < 0 {
			return nil, &cachekit.ConfigError{Adapter: Name, Option: opt, Err: fmt.Errorf("negative value %d", v)}
		}
	}
	conf := bc.DefaultConfig(lifeWindow)
	conf.CleanWindow = 0
	conf.Verbose = false
	if cfg.Shards > 0 {
		if cfg.Shards&(cfg.Shards-1) != 0 {
			return nil, &cachekit.ConfigError{Adapter: Name, Option: "Shards", Err: errors.New("must be a power of two")}
		}
		conf.Shards = cfg.Shards
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, &cachekit.ConfigError{Adapter: Name, Option: "Segment", Err: err}
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Segment{c: c, now: now}, nil
}

var (
	defaultOnce sync.Once
	defaultSeg  *Segment
	defaultErr  error
)

// DefaultSegment returns the process-wide segment, creating it on first use.
func DefaultSegment() (*Segment, error) {
	defaultOnce.Do(func() {
		defaultSeg, defaultErr = NewSegment(SegmentConfig{})
	})
	return defaultSeg, defaultErr
}

// load returns the live entry for key. Dead or unreadable entries read as
// absent; writers overwrite or reap them.
func (s *Segment) load(key string) (expiresAt int64, payload []byte, ok bool) {
	raw, err := s.c.Get(key)
	if err != nil {
		return 0, nil, false
	}
	expiresAt, payload, err = wire.DecodeEntry(raw)
	if err != nil || wire.Expired(expiresAt, s.now().Unix()) {
		return 0, nil, false
	}
	return expiresAt, payload, true
}

// Load returns the payload stored under key if it is alive.
func (s *Segment) Load(key string) ([]byte, bool) {
	_, p, ok := s.load(key)
	return p, ok
}

func (s *Segment) Exists(key string) bool {
	_, _, ok := s.load(key)
	return ok
}

// Store writes payload. ttl <= 0 stores without expiry.
func (s *Segment) Store(key string, payload []byte, ttl int64) error {
	var exp int64
	if ttl > 0 {
		exp = s.now().Unix() + ttl
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Set(key, wire.EncodeEntry(exp, payload))
}

// Delete reports whether a live entry was removed.
func (s *Segment) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, ok := s.load(key)
	if err := s.c.Delete(key); err != nil {
		return false
	}
	return ok
}

// Update applies fn to the current payload atomically with respect to other
// writers. The entry keeps its expiry; a new entry never expires. fn returns
// ok=false to leave the entry untouched.
func (s *Segment) Update(key string, fn func(cur []byte, found bool) ([]byte, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, cur, found := s.load(key)
	next, ok := fn(cur, found)
	if !ok {
		return false, nil
	}
	if err := s.c.Set(key, wire.EncodeEntry(exp, next)); err != nil {
		return false, err
	}
	return true, nil
}

// Keys lists live keys matching re, sorted.
func (s *Segment) Keys(re *regexp.Regexp) []string {
	now := s.now().Unix()
	var out []string
	it := s.c.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			continue
		}
		if !re.MatchString(e.Key()) {
			continue
		}
		exp, _, err := wire.DecodeEntry(e.Value())
		if err != nil || wire.Expired(exp, now) {
			continue
		}
		out = append(out, e.Key())
	}
	sort.Strings(out)
	return out
}

// DeleteMatching removes every entry whose key matches re, live or not.
func (s *Segment) DeleteMatching(re *regexp.Regexp) error {
	var doomed []string
	it := s.c.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			continue
		}
		if re.MatchString(e.Key()) {
			doomed = append(doomed, e.Key())
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range doomed {
		if err := s.c.Delete(k); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
			return err
		}
	}
	return nil
}

// Len is the number of stored entries, including dead ones not yet reaped.
func (s *Segment) Len() int { return s.c.Len() }

func (s *Segment) Close() error { return s.c.Close() }
