package projects

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// HistoryRepository is the audit trail of status changes
type HistoryRepository interface {
	Record(ctx context.Context, entry *StatusHistory) error
	ListByProject(ctx context.Context, projectID string) ([]StatusHistory, error)
}

type gormHistoryRepository struct {
	db *gorm.DB
}

func NewGormHistoryRepository(db *gorm.DB) HistoryRepository {
	return &gormHistoryRepository{db: db}
}

// Migrate creates the history table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&StatusHistory{}); err != nil {
		return fmt.Errorf("failed to migrate status history: %w", err)
	}
	return nil
}

func (r *gormHistoryRepository) Record(ctx context.Context, entry *StatusHistory) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record status change: %w", err)
	}
	return nil
}

func (r *gormHistoryRepository) ListByProject(ctx context.Context, projectID string) ([]StatusHistory, error) {
	var entries []StatusHistory
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("changed_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	return entries, nil
}

type memoryHistoryRepository struct {
	mu      sync.Mutex
	entries []StatusHistory
}

// NewMemoryHistoryRepository is used when no PostgreSQL database is configured
func NewMemoryHistoryRepository() HistoryRepository {
	return &memoryHistoryRepository{}
}

func (r *memoryHistoryRepository) Record(_ context.Context, entry *StatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryHistoryRepository) ListByProject(_ context.Context, projectID string) ([]StatusHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []StatusHistory{}
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].ProjectID == projectID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}
