// Package session keeps the per-session image state used for revisions.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

const (
	DefaultTTL         = 30 * time.Minute
	DefaultMaxSessions = 1000
	// DefaultMaxSlots bounds how many outfits one session remembers.
	DefaultMaxSlots = 20
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	TTL         time.Duration
	MaxSessions int
	MaxSlots    int
	Now         func() time.Time
}

// Slot is one remembered outfit image.
type Slot struct {
	OutfitID  string
	Image     []byte
	UpdatedAt time.Time
}

type entry struct {
	latest       Slot
	slots        map[string]*Slot
	lastActivity time.Time
}

// Store maps session tokens to their latest image and per-outfit slots.
// Sessions expire after TTL of inactivity; beyond MaxSessions the least
// recently used one is evicted.
//
// Store is safe for concurrent use. Writes to the same session are
// last-writer-wins.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*entry
	ttl         time.Duration
	maxSessions int
	maxSlots    int
	now         func() time.Time
}

func New(opts Options) *Store {
	s := &Store{
		sessions:    make(map[string]*entry),
		ttl:         opts.TTL,
		maxSessions: opts.MaxSessions,
		maxSlots:    opts.MaxSlots,
		now:         opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.maxSessions <= 0 {
		s.maxSessions = DefaultMaxSessions
	}
	if s.maxSlots <= 0 {
		s.maxSlots = DefaultMaxSlots
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Latest returns the most recent image of the session together with the
// outfit it belongs to. OutfitID is empty when the image was stored without
// one.
func (s *Store) Latest(id string) (Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(id)
	if e == nil || len(e.latest.Image) == 0 {
		return Slot{}, false
	}
	e.lastActivity = s.now()
	return Slot{OutfitID: e.latest.OutfitID, Image: clone(e.latest.Image), UpdatedAt: e.latest.UpdatedAt}, true
}

// ForOutfit returns the last image produced for outfitID in the session.
func (s *Store) ForOutfit(id, outfitID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.live(id)
	if e == nil {
		return nil, false
	}
	slot, ok := e.slots[outfitID]
	if !ok {
		return nil, false
	}
	e.lastActivity = s.now()
	return clone(slot.Image), true
}

// Put records img as both the session's latest image and the image of
// outfitID. The bytes are copied.
func (s *Store) Put(id, outfitID string, img []byte) {
	now := s.now()
	data := clone(img)

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(id)
	if e == nil {
		if len(s.sessions) >= s.maxSessions {
			s.evictLRU()
		}
		e = &entry{slots: make(map[string]*Slot)}
		s.sessions[id] = e
	}
	e.latest = Slot{OutfitID: outfitID, Image: data, UpdatedAt: now}
	e.lastActivity = now
	if outfitID == "" {
		return
	}
	if _, ok := e.slots[outfitID]; !ok && len(e.slots) >= s.maxSlots {
		evictOldestSlot(e)
	}
	e.slots[outfitID] = &Slot{OutfitID: outfitID, Image: data, UpdatedAt: now}
}

// Exists reports whether id names a live session.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return ok && s.now().Sub(e.lastActivity) <= s.ttl
}

// Snapshot returns copies of every slot of the session ordered by outfit id.
func (s *Store) Snapshot(id string) []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok || s.now().Sub(e.lastActivity) > s.ttl {
		return nil
	}
	out := make([]Slot, 0, len(e.slots))
	for _, slot := range e.slots {
		out = append(out, Slot{OutfitID: slot.OutfitID, Image: clone(slot.Image), UpdatedAt: slot.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OutfitID < out[j].OutfitID })
	return out
}

// Len returns the number of tracked sessions, expired ones included until the
// next sweep.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops inactive sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastActivity) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 && onSweep != nil {
				onSweep(removed)
			}
		}
	}
}

// live returns the entry for id, dropping it if it has expired. Callers hold
// the write lock.
func (s *Store) live(id string) *entry {
	e, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if s.now().Sub(e.lastActivity) > s.ttl {
		delete(s.sessions, id)
		return nil
	}
	return e
}

func (s *Store) evictLRU() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.sessions {
		if oldestID == "" || e.lastActivity.Before(oldest) {
			oldestID = id
			oldest = e.lastActivity
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
	}
}

func evictOldestSlot(e *entry) {
	var oldestID string
	var oldest time.Time
	for id, slot := range e.slots {
		if oldestID == "" || slot.UpdatedAt.Before(oldest) {
			oldestID = id
			oldest = slot.UpdatedAt
		}
	}
	delete(e.slots, oldestID)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// NewID returns a fresh 32 character hex session token.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("session: read random: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}

// Valid reports whether id has the shape produced by NewID.
func Valid(id string) bool {
	if len(id) != 32 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

// Namespace derives the storage and history namespace of a session: the first
// 16 hex characters of its SHA-256.
func Namespace(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:16]
}
