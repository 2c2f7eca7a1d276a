package redis_session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/brieflab/models"
)

func TestStore_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer func() { _ = client.Close() }()

	s := NewStore(client, "test", time.Minute)
	run := models.Run{ID: "r1", Kind: models.ReportSummary, Status: models.RunProcessing, Message: "queued"}
	if err := s.Put(ctx, run); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Message != "queued" || got.Kind != models.ReportSummary {
		t.Fatalf("unexpected run %+v", got)
	}
	ttl, err := client.TTL(ctx, "test:run:r1").Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected a ttl on the key, got %v (%v)", ttl, err)
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, models.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}
