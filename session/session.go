package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/brieflab/models"
	"github.com/mohammad-safakhou/brieflab/session/inmemory"
	redis_session "github.com/mohammad-safakhou/brieflab/session/redis"
)

// Store keeps the polled status record of background runs.
type Store interface {
	Put(ctx context.Context, run models.Run) error
	// Get returns models.ErrRunNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (models.Run, error)
}

type StoreType string

const (
	InMemoryStore StoreType = "memory"
	RedisStore    StoreType = "redis"
)

// NewStore builds the configured status store. client is only used by the
// redis store.
func NewStore(storeType StoreType, client *redis.Client, prefix string, ttl time.Duration) (Store, error) {
	switch storeType {
	case InMemoryStore, "":
		return inmemory.NewStore(ttl), nil
	case RedisStore:
		if client == nil {
			return nil, fmt.Errorf("redis status store needs a client")
		}
		return redis_session.NewStore(client, prefix, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
