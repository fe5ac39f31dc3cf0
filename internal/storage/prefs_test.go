package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(sq.Close)
	return map[string]Backend{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestPrefs_DefaultsWhenEmpty(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := NewPrefs(b)

			st, err := p.AppState(ctx)
			require.NoError(t, err)
			assert.Equal(t, Unresolved, st)

			c, err := p.Content(ctx)
			require.NoError(t, err)
			assert.Equal(t, ContentCache{}, c)

			before, err := p.NotificationRequestedBefore(ctx)
			require.NoError(t, err)
			assert.False(t, before)
		})
	}
}

func TestPrefs_MonotonicState(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := NewPrefs(b)

			require.NoError(t, p.CommitContent(ctx, Cached, ContentCache{URL: "https://x/a", ExpiresAtEpochSeconds: 10}))
			require.NoError(t, p.CommitContent(ctx, Cached, ContentCache{URL: "https://x/b", ExpiresAtEpochSeconds: 20}))

			err := p.SetAppState(ctx, Unresolved)
			assert.ErrorIs(t, err, ErrIllegalTransition)
			err = p.SetAppState(ctx, Failed)
			assert.ErrorIs(t, err, ErrIllegalTransition)

			st, err := p.AppState(ctx)
			require.NoError(t, err)
			assert.Equal(t, Cached, st)

			c, err := p.Content(ctx)
			require.NoError(t, err)
			assert.Equal(t, "https://x/b", c.URL)
			assert.Equal(t, int64(20), c.ExpiresAtEpochSeconds)
		})
	}
}

func TestPrefs_FailedIsTerminal(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := NewPrefs(b)

			require.NoError(t, p.SetAppState(ctx, Failed))
			for _, to := range []AppState{Unresolved, Cached, Failed} {
				assert.ErrorIs(t, p.SetAppState(ctx, to), ErrIllegalTransition)
			}
			err := p.CommitContent(ctx, Cached, ContentCache{URL: "https://x/a"})
			assert.ErrorIs(t, err, ErrIllegalTransition)

			c, err := p.Content(ctx)
			require.NoError(t, err)
			assert.Empty(t, c.URL)
		})
	}
}

func TestPrefs_CorruptStateRejected(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	require.NoError(t, b.Put(ctx, KeyApplicationState, "5"))

	_, err := NewPrefs(b).AppState(ctx)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, b.Put(ctx, KeyApplicationState, "abc"))
	_, err = NewPrefs(b).AppState(ctx)
	assert.Error(t, err)
}

func TestPrefs_Bookkeeping(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := NewPrefs(b)

			require.NoError(t, p.SetNotificationRequest(ctx, 1234))
			require.NoError(t, p.SetNotificationRequestedBefore(ctx, true))
			require.NoError(t, p.SetInstallID(ctx, "install-1"))
			require.NoError(t, p.SetPushToken(ctx, "tok"))

			n, err := p.NotificationRequest(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1234), n)

			before, err := p.NotificationRequestedBefore(ctx)
			require.NoError(t, err)
			assert.True(t, before)

			id, err := p.InstallID(ctx)
			require.NoError(t, err)
			assert.Equal(t, "install-1", id)

			tok, err := p.PushToken(ctx)
			require.NoError(t, err)
			assert.Equal(t, "tok", tok)
		})
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	sq, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewPrefs(sq).SetAppState(ctx, Failed))
	sq.Close()

	sq, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer sq.Close()

	st, err := NewPrefs(sq).AppState(ctx)
	require.NoError(t, err)
	assert.Equal(t, Failed, st)
}

func TestMemory_ClosedRejectsWrites(t *testing.T) {
	m := NewMemory()
	m.Close()
	assert.Error(t, m.Put(context.Background(), "k", "v"))
}
