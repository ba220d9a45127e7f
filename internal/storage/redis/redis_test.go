package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/rollflow/internal/storage/redis"
	"github.com/cory-johannsen/rollflow/internal/testutil"
	"github.com/cory-johannsen/rollflow/internal/workflow"
)

func newStore(t *testing.T, ttl time.Duration) *redis.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	rc := testutil.NewRedisContainer(t)
	return redis.NewStore(rc.Client, ttl)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "rollflow:workflow:abc", redis.Key("abc"))
}

func TestStore_SaveLoadDelete(t *testing.T) {
	s := newStore(t, 0)
	ctx := context.Background()
	st := &workflow.State{
		WorkflowID:       "wf-1",
		WorkflowType:     "damage",
		Status:           workflow.StatusPaused,
		CompletedActions: []string{"Start"},
	}
	require.NoError(t, st.SetResult("pool", []string{"1d8", "2"}))
	require.NoError(t, s.Save(ctx, st))

	got, err := s.Load(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPaused, got.Status)
	assert.Equal(t, []string{"Start"}, got.CompletedActions)
	var terms []string
	require.NoError(t, got.Result("pool", &terms))
	assert.Equal(t, []string{"1d8", "2"}, terms)

	require.NoError(t, s.Delete(ctx, "wf-1"))
	_, err = s.Load(ctx, "wf-1")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestStore_TTLApplied(t *testing.T) {
	s := newStore(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &workflow.State{WorkflowID: "wf-ttl", WorkflowType: "check"}))
	d, err := s.TTL(ctx, "wf-ttl")
	require.NoError(t, err)
	assert.Greater(t, d, 59*time.Minute)
	assert.LessOrEqual(t, d, time.Hour)
}

func TestStore_NotFound(t *testing.T) {
	s := newStore(t, 0)
	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}
