package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"smart_irrigation/internal/config"
)

// StorageKey is the key the credential is persisted under.
const StorageKey = "authToken"

// Store persists the session credential so it survives a restart.
// Load returns "" when no credential is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}

// OpenStore builds the store selected by cfg. The returned close function
// releases the underlying connection.
func OpenStore(cfg config.SessionConfig) (Store, func() error, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return NewMemoryStore(), func() error { return nil }, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	case config.StoreSQLite, "":
		s, err := OpenSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}
