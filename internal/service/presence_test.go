package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"livechat/config"
	"livechat/internal/domain"
)

func testPresenceConfig() config.PresenceConfig {
	return config.PresenceConfig{
		IdleSeconds:    300,
		OfflineSeconds: 45,
		SweepInterval:  10 * time.Second,
	}
}

// A config where the offline window is wider than the idle window, so a
// connected user can sit in the Idle band between the two cutoffs.
func idleBandPresenceConfig() config.PresenceConfig {
	return config.PresenceConfig{
		IdleSeconds:    60,
		OfflineSeconds: 600,
		SweepInterval:  10 * time.Second,
	}
}

func TestPresence_StatusDerivation(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := NewPresenceService(users, testPresenceConfig(), zap.NewNop())

	connected := users.add("Connected", "connected@example.com", domain.UserRoleUser)
	connected.LastSeen = time.Now().UTC()
	svc.ConnectionOpened(connected.ID)

	// Recent heartbeat but no open connection: nothing to chat through.
	disconnected := users.add("Disconnected", "disconnected@example.com", domain.UserRoleUser)
	disconnected.IsOnline = true
	disconnected.LastSeen = time.Now().UTC()

	stale := users.add("Stale", "stale@example.com", domain.UserRoleUser)
	stale.LastSeen = time.Now().UTC().Add(-time.Hour)

	list, err := svc.GetUserPresenceList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	byID := make(map[int64]domain.UserPresence)
	for _, p := range list {
		byID[p.UserID] = p
	}

	assert.Equal(t, domain.PresenceOnline, byID[connected.ID].Status)
	assert.Equal(t, domain.PresenceOffline, byID[disconnected.ID].Status)
	assert.Equal(t, domain.PresenceOffline, byID[stale.ID].Status)
}

func TestPresence_IdleBetweenCutoffs(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := NewPresenceService(users, idleBandPresenceConfig(), zap.NewNop())

	u := users.add("Alice", "alice@example.com", domain.UserRoleUser)
	u.LastSeen = time.Now().UTC().Add(-2 * time.Minute)
	svc.ConnectionOpened(u.ID)

	list, err := svc.GetUserPresenceList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.PresenceIdle, list[0].Status)

	u.LastSeen = time.Now().UTC()

	list, err = svc.GetUserPresenceList(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOnline, list[0].Status)
}

func TestPresence_StaleHeartbeatForcesOfflineAndClearsCounter(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := NewPresenceService(users, testPresenceConfig(), zap.NewNop())

	u := users.add("Alice", "alice@example.com", domain.UserRoleUser)
	u.LastSeen = time.Now().UTC().Add(-time.Hour)

	// A connection counter left behind must not keep a silent user visible.
	svc.ConnectionOpened(u.ID)

	list, err := svc.GetUserPresenceList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.PresenceOffline, list[0].Status)

	svc.mu.Lock()
	_, tracked := svc.connections[u.ID]
	svc.mu.Unlock()
	assert.False(t, tracked)

	// The counter was dropped, so a fresh heartbeat alone does not bring the
	// user back Online.
	u.LastSeen = time.Now().UTC()

	list, err = svc.GetUserPresenceList(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOffline, list[0].Status)
}

func TestPresence_ConnectionCounting(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := NewPresenceService(users, testPresenceConfig(), zap.NewNop())

	u := users.add("Alice", "alice@example.com", domain.UserRoleUser)
	u.LastSeen = time.Now().UTC()

	// Two tabs open; closing one keeps the user online.
	svc.ConnectionOpened(u.ID)
	svc.ConnectionOpened(u.ID)
	svc.ConnectionClosed(u.ID)

	list, err := svc.GetUserPresenceList(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOnline, list[0].Status)

	svc.ConnectionClosed(u.ID)

	list, err = svc.GetUserPresenceList(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOffline, list[0].Status)
}

func TestPresence_HeartbeatUpdatesLastSeen(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := NewPresenceService(users, testPresenceConfig(), zap.NewNop())

	u := users.add("Alice", "alice@example.com", domain.UserRoleUser)
	u.IsOnline = false
	u.LastSeen = time.Now().UTC().Add(-time.Hour)

	require.NoError(t, svc.UpdateHeartbeat(ctx, u.ID, domain.UserRoleUser))

	assert.True(t, u.IsOnline)
	assert.WithinDuration(t, time.Now().UTC(), u.LastSeen, 5*time.Second)
}

func TestPresence_HeartbeatUnknownUserIsNoOp(t *testing.T) {
	ctx := context.Background()
	svc := NewPresenceService(newFakeUserRepo(), testPresenceConfig(), zap.NewNop())

	assert.NoError(t, svc.UpdateHeartbeat(ctx, 42, domain.UserRoleUser))
	assert.NoError(t, svc.UpdateHeartbeat(ctx, 0, domain.UserRoleUser))
}

func TestPresence_DetectChangesReportsOnlyTransitions(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := NewPresenceService(users, idleBandPresenceConfig(), zap.NewNop())

	u := users.add("Alice", "alice@example.com", domain.UserRoleUser)
	u.LastSeen = time.Now().UTC()
	svc.ConnectionOpened(u.ID)

	changes, err := svc.DetectPresenceChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.PresenceOnline, changes[0].Status)

	// Unchanged status produces no report.
	changes, err = svc.DetectPresenceChanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)

	// Going quiet with the connection still open flips to idle, then offline
	// once the heartbeat falls out of the window entirely.
	u.LastSeen = time.Now().UTC().Add(-2 * time.Minute)

	changes, err = svc.DetectPresenceChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.PresenceIdle, changes[0].Status)

	u.LastSeen = time.Now().UTC().Add(-time.Hour)

	changes, err = svc.DetectPresenceChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.PresenceOffline, changes[0].Status)
}

func TestPresence_OfflineSweepClearsStaleCounters(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	svc := NewPresenceService(users, testPresenceConfig(), zap.NewNop())

	u := users.add("Alice", "alice@example.com", domain.UserRoleUser)
	u.LastSeen = time.Now().UTC().Add(-time.Hour)

	// Counter left behind by a swallowed disconnect.
	svc.ConnectionOpened(u.ID)

	changes, err := svc.DetectPresenceChanges(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.PresenceOffline, changes[0].Status)

	svc.mu.Lock()
	_, tracked := svc.connections[u.ID]
	svc.mu.Unlock()
	assert.False(t, tracked)
}
