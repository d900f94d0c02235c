package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthService_CheckHealth(t *testing.T) {
	oldest := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeStore(rowsBetween(1, 30, oldest)...)
	store.rows = append(store.rows, rowsBetween(100, 20, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))...)
	obs := &recordingObserver{}
	log, _ := testLogger()

	svc := NewHealthService(store, testConfig(), log, WithClock(func() time.Time { return june15 }), WithObserver(obs))
	snap := svc.CheckHealth(context.Background())

	assert.True(t, snap.Healthy)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "events", snap.Table)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), snap.Cutoff)
	assert.Equal(t, int64(50), snap.TotalRows)
	assert.Equal(t, int64(30), snap.ExpiredRows)
	require.NotNil(t, snap.Earliest)
	assert.Equal(t, oldest, *snap.Earliest)
	require.NotNil(t, snap.Latest)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 19, 0, 0, time.UTC), *snap.Latest)
	assert.Equal(t, 1, store.releases)
	assert.Len(t, obs.health, 1)
}

func TestHealthService_Failures(t *testing.T) {
	t.Run("acquire", func(t *testing.T) {
		store := newFakeStore()
		store.acquireErr = errors.New("connection refused")
		log, _ := testLogger()

		snap := NewHealthService(store, testConfig(), log).CheckHealth(context.Background())

		assert.False(t, snap.Healthy)
		assert.Contains(t, snap.Error, "connection refused")
		assert.Zero(t, store.releases)
	})

	t.Run("aggregate", func(t *testing.T) {
		store := newFakeStore()
		store.aggErr = errors.New("column \"created_at\" does not exist")
		log, _ := testLogger()

		snap := NewHealthService(store, testConfig(), log).CheckHealth(context.Background())

		assert.False(t, snap.Healthy)
		assert.Contains(t, snap.Error, "does not exist")
		assert.Equal(t, 1, store.releases)
	})
}

func TestHealthService_RecoversPanics(t *testing.T) {
	log, hook := testLogger()
	obs := &recordingObserver{}

	snap := NewHealthService(panickingStore{}, testConfig(), log, WithObserver(obs)).CheckHealth(context.Background())

	assert.False(t, snap.Healthy)
	assert.Equal(t, "events", snap.Table)
	assert.Contains(t, snap.Error, "panic during health check: driver bug")
	require.Len(t, obs.health, 1)
	assert.False(t, obs.health[0].Healthy)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Health check failed", hook.LastEntry().Message)
}
