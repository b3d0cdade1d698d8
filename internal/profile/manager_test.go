package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/physicalai/tbrag/internal/storage"
)

// --- Mock store ---

type mockStore struct {
	mu   sync.Mutex
	rows map[string]storage.UserProfile

	getCalls  int
	upsertErr error
	// afterRead runs once a row has been read, outside the store lock.
	afterRead func()
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]storage.UserProfile)}
}

func (m *mockStore) UpsertProfile(_ context.Context, p storage.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.rows[p.UserID] = p
	return nil
}

func (m *mockStore) GetProfile(_ context.Context, userID string) (storage.UserProfile, error) {
	m.mu.Lock()
	m.getCalls++
	p, ok := m.rows[userID]
	hook := m.afterRead
	m.afterRead = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if !ok {
		return storage.UserProfile{}, storage.ErrNotFound
	}
	return p, nil
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Tests ---

func TestGet_NotFound(t *testing.T) {
	mgr := NewManager(newMockStore())
	_, err := mgr.Get(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAndGet(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)
	ctx := context.Background()

	p := Profile{
		SoftwareExperience: SoftwareExperience{Python: "advanced", ROS2: "beginner"},
		RoboticsExperience: "real_hardware",
		HardwareAccess:     []string{"gpu_nvidia"},
		LearningGoals:      []string{"manipulation"},
	}
	hash, err := mgr.Save(ctx, "u1", p)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	want, _ := Hash(p)
	if hash != want {
		t.Errorf("Save hash = %s, want %s", hash, want)
	}

	got, err := mgr.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Hash != hash {
		t.Errorf("stored hash = %s, want %s", got.Hash, hash)
	}
	if got.Profile.SoftwareExperience.Python != "advanced" || got.Profile.SoftwareExperience.Cpp != "none" {
		t.Errorf("software experience = %+v", got.Profile.SoftwareExperience)
	}
	if len(got.Profile.HardwareAccess) != 1 || got.Profile.HardwareAccess[0] != "gpu_nvidia" {
		t.Errorf("hardware = %v", got.Profile.HardwareAccess)
	}
	if store.rows["u1"].SoftwareExperience != `{"python":"advanced","cpp":"none","ros2":"beginner","typescript":"none"}` {
		t.Errorf("stored software_experience = %s", store.rows["u1"].SoftwareExperience)
	}
}

func TestGet_CachedWithinTTL(t *testing.T) {
	store := newMockStore()
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, time.Minute)
	ctx := context.Background()

	mgr.Save(ctx, "u1", Profile{})
	mgr.Get(ctx, "u1")
	mgr.Get(ctx, "u1")
	if store.getCalls != 1 {
		t.Errorf("store read %d times within TTL, want 1", store.getCalls)
	}

	clock.Advance(2 * time.Minute)
	mgr.Get(ctx, "u1")
	if store.getCalls != 2 {
		t.Errorf("store read %d times after TTL, want 2", store.getCalls)
	}
}

func TestSave_InvalidatesCache(t *testing.T) {
	store := newMockStore()
	mgr := NewManagerWithClock(store, &mockClock{now: time.Now()}, time.Hour)
	ctx := context.Background()

	mgr.Save(ctx, "u1", Profile{RoboticsExperience: "none"})
	first, _ := mgr.Get(ctx, "u1")

	mgr.Save(ctx, "u1", Profile{RoboticsExperience: "simulation_only"})
	second, err := mgr.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.Profile.RoboticsExperience != "simulation_only" {
		t.Errorf("stale profile returned: %+v", second.Profile)
	}
	if first.Hash == second.Hash {
		t.Error("hash did not change after update")
	}
}

func TestGet_SaveDuringReadDoesNotCacheOldRow(t *testing.T) {
	store := newMockStore()
	mgr := NewManagerWithClock(store, &mockClock{now: time.Now()}, time.Hour)
	ctx := context.Background()

	oldHash, _ := mgr.Save(ctx, "u1", Profile{RoboticsExperience: "none"})

	var newHash string
	store.afterRead = func() {
		var err error
		newHash, err = mgr.Save(ctx, "u1", Profile{RoboticsExperience: "real_hardware"})
		if err != nil {
			t.Errorf("Save: %v", err)
		}
	}

	// This read returns the row it saw before the Save; that is fine once.
	if _, err := mgr.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	got, err := mgr.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Hash != newHash || got.Profile.RoboticsExperience != "real_hardware" {
		t.Errorf("Get after Save = hash %s robotics %s, want hash %s (old %s)",
			got.Hash, got.Profile.RoboticsExperience, newHash, oldHash)
	}
	if store.getCalls != 2 {
		t.Errorf("store read %d times, want 2 (old row must not be cached)", store.getCalls)
	}
}

func TestSave_StoreError(t *testing.T) {
	store := newMockStore()
	store.upsertErr = errors.New("disk full")
	mgr := NewManager(store)
	if _, err := mgr.Save(context.Background(), "u1", Profile{}); err == nil {
		t.Error("expected error from store")
	}
}

func TestGet_MalformedFieldSkipped(t *testing.T) {
	store := newMockStore()
	store.rows["u1"] = storage.UserProfile{
		UserID:             "u1",
		SoftwareExperience: "{not json",
		RoboticsExperience: "none",
		HardwareAccess:     `["jetson"]`,
		ProfileHash:        "abc",
	}
	got, err := NewManager(store).Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Profile.SoftwareExperience.Python != "none" {
		t.Errorf("Python = %q, want none", got.Profile.SoftwareExperience.Python)
	}
	if len(got.Profile.HardwareAccess) != 1 {
		t.Errorf("HardwareAccess = %v", got.Profile.HardwareAccess)
	}
}
