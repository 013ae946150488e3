package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/emergency-console/models"
)

// DefaultAuditCapacity bounds the in-memory trail
const DefaultAuditCapacity = 10000

// AuditStore keeps the most recent audit entries in memory. Once capacity is
// reached the oldest entry is evicted.
type AuditStore struct {
	mu       sync.RWMutex
	entries  []*models.AuditLog
	capacity int
}

// NewAuditStore creates an audit store. A non-positive capacity uses
// DefaultAuditCapacity.
func NewAuditStore(capacity int) *AuditStore {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditStore{capacity: capacity}
}

// Insert appends an entry
func (s *AuditStore) Insert(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := *log
	if len(s.entries) >= s.capacity {
		s.entries = append(s.entries[:0], s.entries[1:]...)
	}
	s.entries = append(s.entries, &entry)
	return nil
}

// List returns the newest entries first with pagination
func (s *AuditStore) List(_ context.Context, limit, offset int) ([]*models.AuditLog, error) {
	return s.filter(func(*models.AuditLog) bool { return true }, limit, offset), nil
}

// ListByUser returns the newest entries for a user first with pagination
func (s *AuditStore) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	return s.filter(func(l *models.AuditLog) bool {
		return l.UserID != nil && *l.UserID == userID
	}, limit, offset), nil
}

// Len returns the number of stored entries
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *AuditStore) filter(keep func(*models.AuditLog) bool, limit, offset int) []*models.AuditLog {
	s.mu.RLock()
	matched := make([]*models.AuditLog, 0, len(s.entries))
	for _, l := range s.entries {
		if keep(l) {
			entry := *l
			matched = append(matched, &entry)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []*models.AuditLog{}
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}
