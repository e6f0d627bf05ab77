package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Storage.Load when no session exists for an id.
var ErrNotFound = errors.New("session: not found")

// Storage persists session records across reloads and restarts.
type Storage interface {
	Load(ctx context.Context, id string) (Record, error)
	Save(ctx context.Context, id string, rec Record) error
	Delete(ctx context.Context, id string) error
}

// MemoryStorage keeps records in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]Record)}
}

func (m *MemoryStorage) Load(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStorage) Save(_ context.Context, id string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = rec
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

const (
	fieldToken = "token"
	fieldEmail = "email"
	fieldRole  = "role"
)

// RedisStorage stores each session as a hash with a sliding TTL.
type RedisStorage struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	if client == nil {
		panic("session: redis client required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisStorage{redis: client, prefix: "reserv:session:", ttl: ttl}
}

func (s *RedisStorage) key(id string) string {
	return s.prefix + id
}

func (s *RedisStorage) Load(ctx context.Context, id string) (Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("session: load: %w", err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return Record{
		Token: fields[fieldToken],
		Email: fields[fieldEmail],
		Role:  ParseRole(fields[fieldRole]),
	}, nil
}

// Save replaces the whole hash in one MULTI/EXEC so readers never observe
// a token without its email/role.
func (s *RedisStorage) Save(ctx context.Context, id string, rec Record) error {
	key := s.key(id)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldToken, rec.Token, fieldEmail, rec.Email, fieldRole, string(rec.Role))
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

func (s *RedisStorage) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
