package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/physicalai/tbrag/internal/storage"
)

// ErrNotFound is returned when a user has not saved a profile.
var ErrNotFound = errors.New("profile not found")

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p storage.UserProfile) error
	GetProfile(ctx context.Context, userID string) (storage.UserProfile, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	stored   Stored
	cachedAt time.Time
}

// Manager provides cached, structured access to user profiles stored in SQLite.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
	// gen counts Saves per user; a read only fills the cache if no Save
	// happened while it was in flight.
	gen map[string]uint64
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
		gen:   make(map[string]uint64),
	}
}

// Get returns the stored profile of userID, or ErrNotFound.
func (m *Manager) Get(ctx context.Context, userID string) (Stored, error) {
	m.mu.RLock()
	if e, ok := m.cache[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		s := copyStored(e.stored)
		m.mu.RUnlock()
		return s, nil
	}
	seen := m.gen[userID]
	m.mu.RUnlock()

	row, err := m.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return Stored{}, ErrNotFound
	}
	if err != nil {
		return Stored{}, fmt.Errorf("loading profile of %s: %w", userID, err)
	}

	s := fromRow(row)
	m.mu.Lock()
	if m.gen[userID] == seen {
		m.cache[userID] = cacheEntry{stored: s, cachedAt: m.clock.Now()}
	}
	m.mu.Unlock()
	return copyStored(s), nil
}

// Save normalizes p, computes its hash, upserts it for userID, and returns the hash.
func (m *Manager) Save(ctx context.Context, userID string, p Profile) (string, error) {
	n := p.Normalized()
	hash, err := Hash(n)
	if err != nil {
		return "", err
	}

	sw, err := json.Marshal(n.SoftwareExperience)
	if err != nil {
		return "", fmt.Errorf("marshalling software_experience: %w", err)
	}
	hw, err := json.Marshal(n.HardwareAccess)
	if err != nil {
		return "", fmt.Errorf("marshalling hardware_access: %w", err)
	}
	goals, err := json.Marshal(n.LearningGoals)
	if err != nil {
		return "", fmt.Errorf("marshalling learning_goals: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.UpsertProfile(ctx, storage.UserProfile{
		UserID:             userID,
		SoftwareExperience: string(sw),
		RoboticsExperience: n.RoboticsExperience,
		HardwareAccess:     string(hw),
		LearningGoals:      string(goals),
		ProfileHash:        hash,
	}); err != nil {
		return "", fmt.Errorf("saving profile of %s: %w", userID, err)
	}

	delete(m.cache, userID)
	m.gen[userID]++
	return hash, nil
}

func fromRow(row storage.UserProfile) Stored {
	var p Profile
	p.RoboticsExperience = row.RoboticsExperience
	unmarshalField(row.UserID, "software_experience", row.SoftwareExperience, &p.SoftwareExperience)
	unmarshalField(row.UserID, "hardware_access", row.HardwareAccess, &p.HardwareAccess)
	unmarshalField(row.UserID, "learning_goals", row.LearningGoals, &p.LearningGoals)
	return Stored{UserID: row.UserID, Profile: p.Normalized(), Hash: row.ProfileHash}
}

// unmarshalField decodes a JSON column into target, logging a warning if the
// value is present but malformed.
func unmarshalField(userID, field, value string, target any) {
	if value == "" {
		return
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		slog.Warn("malformed profile field, skipping", "user_id", userID, "field", field, "error", err)
	}
}

func copyStored(s Stored) Stored {
	cp := s
	cp.Profile = s.Profile.Normalized()
	return cp
}
