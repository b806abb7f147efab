package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/engageautomations/ghl-api-backend/internal/domain"
)

// In-memory implementations backing tests and local development. They hold
// process-local maps behind the same interfaces as the Postgres and Redis
// implementations and are not shared across instances.

var (
	_ InstallationRepository = (*MemoryInstallationRepo)(nil)
	_ DirectoryRepository    = (*MemoryDirectoryRepo)(nil)
	_ LocationTokenStore     = (*MemoryLocationTokenStore)(nil)
	_ InstallStateStore      = (*MemoryInstallStateStore)(nil)
)

// MemoryInstallationRepo is the map-backed InstallationRepository.
type MemoryInstallationRepo struct {
	mu    sync.RWMutex
	items map[int64]domain.Installation
}

func NewMemoryInstallationRepo() *MemoryInstallationRepo {
	return &MemoryInstallationRepo{items: make(map[int64]domain.Installation)}
}

func (r *MemoryInstallationRepo) Create(_ context.Context, inst domain.Installation) (domain.Installation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst.LocationID != "" {
		for id, existing := range r.items {
			if existing.IsActive && existing.LocationID == inst.LocationID {
				existing.IsActive = false
				r.items[id] = existing
			}
		}
	}
	r.items[inst.ID] = inst
	return inst, nil
}

func (r *MemoryInstallationRepo) GetByID(_ context.Context, id int64) (domain.Installation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.items[id]
	if !ok {
		return domain.Installation{}, domain.ErrInstallationNotFound
	}
	return inst, nil
}

func (r *MemoryInstallationRepo) GetActiveByLocation(_ context.Context, locationID string) (domain.Installation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		found bool
		best  domain.Installation
	)
	for _, inst := range r.items {
		if !inst.IsActive {
			continue
		}
		if locationID != "" && inst.LocationID != locationID {
			continue
		}
		if !found || inst.InstalledAt.After(best.InstalledAt) {
			best = inst
			found = true
		}
	}
	if !found {
		return domain.Installation{}, domain.ErrInstallationNotFound
	}
	return best, nil
}

func (r *MemoryInstallationRepo) List(_ context.Context) ([]domain.InstallationSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summaries := make([]domain.InstallationSummary, 0, len(r.items))
	for _, inst := range r.items {
		summaries = append(summaries, inst.ToSummary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].InstalledAt.After(summaries[j].InstalledAt)
	})
	return summaries, nil
}

func (r *MemoryInstallationRepo) UpdateTokens(_ context.Context, id int64, accessToken, refreshToken string, expiresAt, refreshedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[id]
	if !ok {
		return domain.ErrInstallationNotFound
	}
	inst.AccessToken = accessToken
	inst.RefreshToken = refreshToken
	inst.ExpiresAt = expiresAt
	inst.RefreshedAt = &refreshedAt
	r.items[id] = inst
	return nil
}

func (r *MemoryInstallationRepo) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.items[id]
	if !ok {
		return domain.ErrInstallationNotFound
	}
	inst.IsActive = false
	r.items[id] = inst
	return nil
}

// MemoryDirectoryRepo is the map-backed DirectoryRepository.
type MemoryDirectoryRepo struct {
	mu    sync.RWMutex
	items map[int64]domain.Directory
}

func NewMemoryDirectoryRepo() *MemoryDirectoryRepo {
	return &MemoryDirectoryRepo{items: make(map[int64]domain.Directory)}
}

func (r *MemoryDirectoryRepo) Create(_ context.Context, dir domain.Directory) (domain.Directory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[dir.ID] = dir
	return dir, nil
}

func (r *MemoryDirectoryRepo) GetByID(_ context.Context, id int64) (domain.Directory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dir, ok := r.items[id]
	if !ok {
		return domain.Directory{}, domain.ErrDirectoryNotFound
	}
	return dir, nil
}

func (r *MemoryDirectoryRepo) List(_ context.Context, locationID string) ([]domain.Directory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var dirs []domain.Directory
	for _, dir := range r.items {
		if locationID == "" || dir.LocationID == locationID {
			dirs = append(dirs, dir)
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		return dirs[i].CreatedAt.After(dirs[j].CreatedAt)
	})
	return dirs, nil
}

func (r *MemoryDirectoryRepo) Update(_ context.Context, dir domain.Directory) (domain.Directory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[dir.ID]; !ok {
		return domain.Directory{}, domain.ErrDirectoryNotFound
	}
	r.items[dir.ID] = dir
	return dir, nil
}

func (r *MemoryDirectoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrDirectoryNotFound
	}
	delete(r.items, id)
	return nil
}

type memoryTokenEntry struct {
	token     domain.LocationToken
	expiresAt time.Time
}

// MemoryLocationTokenStore is the map-backed LocationTokenStore.
type MemoryLocationTokenStore struct {
	mu    sync.RWMutex
	items map[int64]memoryTokenEntry
}

func NewMemoryLocationTokenStore() *MemoryLocationTokenStore {
	return &MemoryLocationTokenStore{items: make(map[int64]memoryTokenEntry)}
}

func (s *MemoryLocationTokenStore) Save(_ context.Context, token domain.LocationToken, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[token.InstallationID] = memoryTokenEntry{token: token, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryLocationTokenStore) Get(_ context.Context, installationID int64) (*domain.LocationToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.items[installationID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	token := entry.token
	return &token, nil
}

func (s *MemoryLocationTokenStore) Delete(_ context.Context, installationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, installationID)
	return nil
}

type memoryStateEntry struct {
	state     domain.InstallState
	expiresAt time.Time
}

// MemoryInstallStateStore is the map-backed InstallStateStore.
type MemoryInstallStateStore struct {
	mu    sync.Mutex
	items map[string]memoryStateEntry
}

func NewMemoryInstallStateStore() *MemoryInstallStateStore {
	return &MemoryInstallStateStore{items: make(map[string]memoryStateEntry)}
}

func (s *MemoryInstallStateStore) SaveState(_ context.Context, state domain.InstallState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[state.State] = memoryStateEntry{state: state, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryInstallStateStore) TakeState(_ context.Context, state string) (*domain.InstallState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[state]
	if !ok {
		return nil, nil
	}
	delete(s.items, state)
	if time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	value := entry.state
	return &value, nil
}
