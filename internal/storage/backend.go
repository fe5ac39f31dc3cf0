package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"content-gate/internal/config"
)

// Backend is a durable string key-value store.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	// PutMany writes all pairs atomically.
	PutMany(ctx context.Context, kv map[string]string) error
	Close()
}

const (
	KeyApplicationState            = "applicationState"
	KeyCachedURL                   = "cachedUrl"
	KeyCacheExpiry                 = "cacheExpiry"
	KeyNotificationRequest         = "notificationRequest"
	KeyNotificationRequestedBefore = "notificationRequestedBefore"
	KeyInstallID                   = "installId"
	KeyPushToken                   = "pushToken"
)

// Open picks a backend from cfg.Storage.Driver.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.Storage.SQLitePath)
	case "postgres":
		return New(ctx, cfg)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

var errClosed = errors.New("storage closed")
