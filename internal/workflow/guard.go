package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinicdesk/internal/appointments"
)

// Guard serializes identical mutating actions. Acquire fails with
// appointments.ErrActionInFlight while the key is held.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ActionKey names a guarded action on one entity.
func ActionKey(action string, id int64) string {
	return fmt.Sprintf("%s:%d", action, id)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{held: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return nil, fmt.Errorf("workflow: %s: %w", key, appointments.ErrActionInFlight)
	}
	g.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

const guardKeyPrefix = "clinicdesk:busy:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares the busy set across operators. Keys expire after ttl so a
// crashed holder cannot wedge an action forever.
type RedisGuard struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if client == nil {
		panic("workflow: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisGuard{redis: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := g.redis.SetNX(ctx, guardKeyPrefix+key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("workflow: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("workflow: %s: %w", key, appointments.ErrActionInFlight)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// release must outlive a cancelled request context
			_ = releaseScript.Run(context.Background(), g.redis, []string{guardKeyPrefix + key}, token).Err()
		})
	}, nil
}
