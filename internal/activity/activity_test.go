package activity

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lueurxax/channel-digest/internal/core/domain"
	"github.com/lueurxax/channel-digest/internal/core/ports/mocks"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func TestStoreTracker_IsActive(t *testing.T) {
	tr := NewTracker(48*time.Hour, fixedNow)
	ctx := context.Background()

	recent := now.Add(-time.Hour)
	stale := now.Add(-72 * time.Hour)

	tests := []struct {
		name string
		user domain.User
		want bool
	}{
		{"seen recently", domain.User{ID: 1, CreatedAt: stale, LastSeenAt: &recent}, true},
		{"seen long ago", domain.User{ID: 2, CreatedAt: stale, LastSeenAt: &stale}, false},
		{"never seen, new", domain.User{ID: 3, CreatedAt: recent}, true},
		{"never seen, old", domain.User{ID: 4, CreatedAt: stale}, false},
		{"exactly at threshold", domain.User{ID: 5, CreatedAt: now.Add(-48 * time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.IsActive(ctx, tt.user)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEligible(t *testing.T) {
	tr := NewTracker(0, fixedNow)
	ctx := context.Background()
	blockedAt := now.Add(-time.Minute)

	ok, err := Eligible(ctx, tr, domain.User{ID: 1, CreatedAt: now})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Eligible(ctx, tr, domain.User{ID: 2, CreatedAt: now, BlockedAt: &blockedAt})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Eligible(ctx, tr, domain.User{ID: 3, CreatedAt: now.Add(-8 * 24 * time.Hour)})
	require.NoError(t, err)
	assert.False(t, ok, "default threshold is seven days")
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	store := mocks.NewStore()
	store.AddUser(domain.User{ID: 7, CreatedAt: now.Add(-30 * 24 * time.Hour)})

	r := NewRecorder(store, &logger)
	r.now = fixedNow

	require.NoError(t, r.Touch(ctx, 7))

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, u.LastSeenAt)
	assert.Equal(t, now, *u.LastSeenAt)

	require.NoError(t, r.MarkBlocked(ctx, 7))

	u, err = store.GetUser(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, u.BlockedAt)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	store := mocks.NewStore()
	blockedAt := now

	store.AddUser(domain.User{ID: 1, CreatedAt: now})
	store.AddUser(domain.User{ID: 2, CreatedAt: now.Add(-30 * 24 * time.Hour)})
	store.AddUser(domain.User{ID: 3, CreatedAt: now, BlockedAt: &blockedAt})

	res, err := Sweep(ctx, store, NewTracker(0, fixedNow), &logger)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Total: 3, Active: 1, Inactive: 1, Blocked: 1}, res)
}
