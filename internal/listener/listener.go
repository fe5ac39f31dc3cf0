package listener

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"content-gate/internal/push"
)

// ListenOverrides applies push payloads delivered with NOTIFY on channel
// until ctx is done. Connection failures are retried with jittered backoff.
func ListenOverrides(ctx context.Context, pool *pgxpool.Pool, h *push.Handler, channel string, baseBackoff time.Duration) {
	for {
		err := listenOnce(ctx, pool, h, channel)
		if ctx.Err() != nil {
			log.Info().Msg("override listener stopped")
			return
		}
		backoff := jitter(baseBackoff)
		log.Error().Err(err).Dur("retry_in", backoff).Msg("override listener error")
		select {
		case <-ctx.Done():
			log.Info().Msg("override listener stopped")
			return
		case <-time.After(backoff):
		}
	}
}

func listenOnce(ctx context.Context, pool *pgxpool.Pool, h *push.Handler, channel string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}
	log.Info().Str("channel", channel).Msg("listening for override urls")

	for {
		ntf, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		h.Handle("notify", parsePayload(ntf.Payload))
	}
}

// parsePayload accepts a JSON object of strings or a bare URL.
func parsePayload(payload string) map[string]string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	if strings.HasPrefix(payload, "{") {
		var m map[string]string
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			log.Warn().Err(err).Msg("unparsable notify payload")
			return nil
		}
		return m
	}
	return map[string]string{push.URLKey: payload}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x–1.5x
	return time.Duration(float64(base) * factor)
}
