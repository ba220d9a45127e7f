// Package redis persists workflow state in Redis using go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/rollflow/internal/config"
	"github.com/cory-johannsen/rollflow/internal/workflow"
)

// KeyPrefix namespaces workflow state keys.
const KeyPrefix = "rollflow:workflow:"

// Key returns the Redis key holding the state for id.
func Key(id string) string { return KeyPrefix + id }

// NewClient connects to Redis and verifies the connection.
//
// Postcondition: Returns a connected client or a non-nil error.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis %q: %w", cfg.Addr, err)
	}
	return client, nil
}

// Store is a workflow.Store holding serialized state under Key(id).
type Store struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// NewStore creates a Store. States expire ttl after their last save; a zero
// ttl keeps them until deleted.
//
// Precondition: client must be non-nil.
func NewStore(client goredis.UniversalClient, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Save implements workflow.Store.
func (s *Store) Save(ctx context.Context, st *workflow.State) error {
	data, err := workflow.Serialize(st)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, Key(st.WorkflowID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving workflow state %q: %w", st.WorkflowID, err)
	}
	return nil
}

// Load implements workflow.Store.
func (s *Store) Load(ctx context.Context, id string) (*workflow.State, error) {
	data, err := s.client.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("%w: %q", workflow.ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading workflow state %q: %w", id, err)
	}
	return workflow.Deserialize(data)
}

// Delete implements workflow.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("deleting workflow state %q: %w", id, err)
	}
	return nil
}

// TTL returns the remaining lifetime of the state for id. A negative duration
// means the key has no expiry or does not exist, as reported by Redis.
func (s *Store) TTL(ctx context.Context, id string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, Key(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("reading ttl of %q: %w", id, err)
	}
	return d, nil
}
