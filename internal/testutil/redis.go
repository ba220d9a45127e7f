package testutil

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/rollflow/internal/config"
	"github.com/cory-johannsen/rollflow/internal/storage/redis"
)

// RedisContainer wraps a testcontainers Redis instance.
type RedisContainer struct {
	container testcontainers.Container
	Client    *goredis.Client
	Config    config.RedisConfig
}

// NewRedisContainer starts a Redis test container and returns a connected client.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected client,
// or fails the test.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v [%s]", err, time.Since(start))
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("getting redis endpoint: %v", err)
	}

	cfg := config.RedisConfig{Addr: endpoint}
	client, err := redis.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting to test redis: %v [%s]", err, time.Since(start))
	}
	t.Logf("redis container started [%s]", time.Since(start))

	t.Cleanup(func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	})

	return &RedisContainer{container: container, Client: client, Config: cfg}
}
