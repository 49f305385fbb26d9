package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrDraftNotFound = errors.New("draft not found")

// Repository persists wizard snapshots per user
type Repository interface {
	Load(ctx context.Context, userID string) (*Snapshot, error)
	Save(ctx context.Context, userID string, snap Snapshot) error
	Delete(ctx context.Context, userID string) error
}

type redisRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisRepository stores drafts as JSON under wizard:draft:<uid>
func NewRedisRepository(rdb redis.Cmdable, ttl time.Duration) Repository {
	return &redisRepository{rdb: rdb, ttl: ttl}
}

func draftKey(userID string) string {
	return fmt.Sprintf("wizard:draft:%s", userID)
}

func (r *redisRepository) Load(ctx context.Context, userID string) (*Snapshot, error) {
	data, err := r.rdb.Get(ctx, draftKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &snap, nil
}

func (r *redisRepository) Save(ctx context.Context, userID string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := r.rdb.Set(ctx, draftKey(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, draftKey(userID)).Err()
}

type memoryRepository struct {
	mu     sync.Mutex
	drafts map[string]Snapshot
}

// NewMemoryRepository keeps drafts in process, for single-instance setups and tests
func NewMemoryRepository() Repository {
	return &memoryRepository{drafts: make(map[string]Snapshot)}
}

func (r *memoryRepository) Load(_ context.Context, userID string) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.drafts[userID]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return &snap, nil
}

func (r *memoryRepository) Save(_ context.Context, userID string, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[userID] = snap
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, userID)
	return nil
}
