package repository

import (
	"context"
	"sync"
	"time"

	"avtomaster/internal/models"
)

// MemoryStateRepository is the in-process fallback dialog store. States
// carry an expiry so abandoned dialogs do not accumulate.
type MemoryStateRepository struct {
	mu         sync.Mutex
	states     map[int64]memoryEntry
	rateLimits map[int64]*rateWindow
	ttl        time.Duration
}

type memoryEntry struct {
	state     *models.UserState
	expiresAt time.Time
}

type rateWindow struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultRedisTTL) * time.Second
	}
	return &MemoryStateRepository{
		states:     make(map[int64]memoryEntry),
		rateLimits: make(map[int64]*rateWindow),
		ttl:        ttl,
	}
}

func (r *MemoryStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.states[userID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(r.states, userID)
		return nil, nil
	}
	return entry.state, nil
}

func (r *MemoryStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.UserID] = memoryEntry{
		state:     state,
		expiresAt: time.Now().Add(r.ttl),
	}
	return nil
}

func (r *MemoryStateRepository) ClearState(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, userID)
	return nil
}

func (r *MemoryStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	w, ok := r.rateLimits[userID]
	if !ok || now.After(w.expiresAt) {
		r.rateLimits[userID] = &rateWindow{count: 1, expiresAt: now.Add(window)}
		return limit >= 1, nil
	}
	w.count++
	return w.count <= limit, nil
}
