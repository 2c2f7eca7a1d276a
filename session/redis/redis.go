package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/brieflab/models"
)

// Store keeps run statuses as JSON strings with a TTL.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "brieflab"
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (store *Store) key(id string) string {
	return fmt.Sprintf("%s:run:%s", store.prefix, id)
}

func (store *Store) Put(ctx context.Context, run models.Run) error {
	if run.ID == "" {
		return errors.New("run id required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return store.client.Set(ctx, store.key(run.ID), data, store.ttl).Err()
}

func (store *Store) Get(ctx context.Context, id string) (models.Run, error) {
	val, err := store.client.Get(ctx, store.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Run{}, models.ErrRunNotFound
		}
		return models.Run{}, err
	}
	var run models.Run
	if err := json.Unmarshal(val, &run); err != nil {
		return models.Run{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, nil
}
