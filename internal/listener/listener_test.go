package listener

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-gate/internal/appscope"
	"content-gate/internal/push"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "  ", nil},
		{"bare url", "https://x/p", map[string]string{"url": "https://x/p"}},
		{"json", `{"url":"https://x/j","title":"t"}`, map[string]string{"url": "https://x/j", "title": "t"}},
		{"bad json", `{"url":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePayload(tt.in))
		})
	}
}

func TestJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(time.Second)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.Less(t, d, 1500*time.Millisecond)
	}
	assert.Greater(t, jitter(0), time.Duration(0))
}

func TestListenOverrides_Postgres(t *testing.T) {
	dsn := os.Getenv("APP_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("APP_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	scope := appscope.New()
	go ListenOverrides(ctx, pool, push.NewHandler(scope), "content_override_test", time.Second)

	require.Eventually(t, func() bool {
		_, err := pool.Exec(ctx, `SELECT pg_notify('content_override_test', '{"url":"https://x/pg"}')`)
		if err != nil {
			return false
		}
		u, ok := scope.OverrideURL()
		return ok && u == "https://x/pg"
	}, 5*time.Second, 100*time.Millisecond)
}
