package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ReversalSniper/internal/models"
)

// LevelStore remembers the last emitted setup per instrument until its TTL
// runs out. Get returns nil, nil when nothing is remembered.
type LevelStore interface {
	Get(ctx context.Context, symbol string) (*models.SignalLevel, error)
	Put(ctx context.Context, level models.SignalLevel, ttl time.Duration) error
}

// RedisLevelStore keeps one JSON value per instrument with a TTL
type RedisLevelStore struct {
	client *redis.Client
	prefix string
}

// NewRedisLevelStore namespaces keys as prefix:SYMBOL. A trailing colon on
// prefix is optional.
func NewRedisLevelStore(client *redis.Client, prefix string) *RedisLevelStore {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "sniper:levels"
	}
	return &RedisLevelStore{client: client, prefix: prefix}
}

// Dial connects and pings before handing back the store
func Dial(ctx context.Context, addr, password string, db int, prefix string) (*RedisLevelStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLevelStore(client, prefix), nil
}

func (s *RedisLevelStore) Close() error {
	return s.client.Close()
}

func (s *RedisLevelStore) key(symbol string) string {
	return s.prefix + ":" + symbol
}

func (s *RedisLevelStore) Get(ctx context.Context, symbol string) (*models.SignalLevel, error) {
	data, err := s.client.Get(ctx, s.key(symbol)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get level %s: %w", symbol, err)
	}

	var level models.SignalLevel
	if err := json.Unmarshal(data, &level); err != nil {
		return nil, fmt.Errorf("decode level %s: %w", symbol, err)
	}
	return &level, nil
}

func (s *RedisLevelStore) Put(ctx context.Context, level models.SignalLevel, ttl time.Duration) error {
	data, err := json.Marshal(level)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(level.Symbol), data, ttl).Err()
}

// MemoryLevelStore is the single-process fallback when Redis is not configured
type MemoryLevelStore struct {
	mu      sync.Mutex
	levels  map[string]memoryEntry
	nowFunc func() time.Time
}

type memoryEntry struct {
	level   models.SignalLevel
	expires time.Time
}

func NewMemoryLevelStore() *MemoryLevelStore {
	return &MemoryLevelStore{
		levels:  make(map[string]memoryEntry),
		nowFunc: time.Now,
	}
}

func (s *MemoryLevelStore) Get(_ context.Context, symbol string) (*models.SignalLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.levels[symbol]
	if !ok {
		return nil, nil
	}
	if !s.nowFunc().Before(entry.expires) {
		delete(s.levels, symbol)
		return nil, nil
	}
	level := entry.level
	return &level, nil
}

func (s *MemoryLevelStore) Put(_ context.Context, level models.SignalLevel, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.levels[level.Symbol] = memoryEntry{level: level, expires: s.nowFunc().Add(ttl)}
	return nil
}
