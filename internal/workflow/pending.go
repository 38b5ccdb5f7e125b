package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingCompletion marks an appointment whose bill exists but whose
// completion PATCH has not yet succeeded.
type PendingCompletion struct {
	AppointmentID int64     `json:"appointment_id"`
	BillingID     int64     `json:"billing_id"`
	AmountCents   int64     `json:"amount_cents"`
	LastError     string    `json:"last_error,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// PendingCompletionStore persists PendingCompletion markers.
type PendingCompletionStore interface {
	Save(ctx context.Context, p PendingCompletion) error
	Get(ctx context.Context, appointmentID int64) (*PendingCompletion, error)
	Delete(ctx context.Context, appointmentID int64) error
	List(ctx context.Context) ([]PendingCompletion, error)
}

// MemoryPendingStore keeps markers for the life of the process.
type MemoryPendingStore struct {
	mu      sync.RWMutex
	entries map[int64]PendingCompletion
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{entries: make(map[int64]PendingCompletion)}
}

func (s *MemoryPendingStore) Save(_ context.Context, p PendingCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p.AppointmentID] = p
	return nil
}

// Get returns nil when no marker exists.
func (s *MemoryPendingStore) Get(_ context.Context, appointmentID int64) (*PendingCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[appointmentID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryPendingStore) Delete(_ context.Context, appointmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, appointmentID)
	return nil
}

func (s *MemoryPendingStore) List(_ context.Context) ([]PendingCompletion, error) {
	s.mu.RLock()
	out := make([]PendingCompletion, 0, len(s.entries))
	for _, p := range s.entries {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sortPending(out)
	return out, nil
}

const pendingHashKey = "clinicdesk:pending_completions"

// RedisPendingStore keeps markers in one hash keyed by appointment id.
type RedisPendingStore struct {
	redis *redis.Client
}

func NewRedisPendingStore(client *redis.Client) *RedisPendingStore {
	if client == nil {
		panic("workflow: redis client cannot be nil")
	}
	return &RedisPendingStore{redis: client}
}

func (s *RedisPendingStore) Save(ctx context.Context, p PendingCompletion) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("workflow: marshal pending completion: %w", err)
	}
	if err := s.redis.HSet(ctx, pendingHashKey, pendingField(p.AppointmentID), data).Err(); err != nil {
		return fmt.Errorf("workflow: save pending completion: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Get(ctx context.Context, appointmentID int64) (*PendingCompletion, error) {
	data, err := s.redis.HGet(ctx, pendingHashKey, pendingField(appointmentID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("workflow: load pending completion: %w", err)
	}
	var p PendingCompletion
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("workflow: decode pending completion: %w", err)
	}
	return &p, nil
}

func (s *RedisPendingStore) Delete(ctx context.Context, appointmentID int64) error {
	if err := s.redis.HDel(ctx, pendingHashKey, pendingField(appointmentID)).Err(); err != nil {
		return fmt.Errorf("workflow: delete pending completion: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) List(ctx context.Context) ([]PendingCompletion, error) {
	raw, err := s.redis.HGetAll(ctx, pendingHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("workflow: list pending completions: %w", err)
	}
	out := make([]PendingCompletion, 0, len(raw))
	for field, data := range raw {
		var p PendingCompletion
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("workflow: decode pending completion %s: %w", field, err)
		}
		out = append(out, p)
	}
	sortPending(out)
	return out, nil
}

func pendingField(appointmentID int64) string {
	return strconv.FormatInt(appointmentID, 10)
}

func sortPending(ps []PendingCompletion) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].AppointmentID < ps[j].AppointmentID })
}
