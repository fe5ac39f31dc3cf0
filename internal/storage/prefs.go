package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Prefs is the typed view over a Backend used by the gate, the device
// parameter provider and the notification prompt policy.
type Prefs struct {
	b  Backend
	mu sync.Mutex // serialises read-check-write of applicationState
}

func NewPrefs(b Backend) *Prefs { return &Prefs{b: b} }

func (p *Prefs) AppState(ctx context.Context) (AppState, error) {
	v, err := p.getInt64(ctx, KeyApplicationState)
	if err != nil {
		return Unresolved, err
	}
	s := AppState(v)
	if !s.Valid() {
		return Unresolved, fmt.Errorf("stored %s=%d: %w", KeyApplicationState, v, ErrIllegalTransition)
	}
	return s, nil
}

// SetAppState moves the persisted state to `to`, rejecting backwards moves.
func (p *Prefs) SetAppState(ctx context.Context, to AppState) error {
	return p.commit(ctx, to, nil)
}

// CommitContent moves the state to `to` and stores c in one write.
func (p *Prefs) CommitContent(ctx context.Context, to AppState, c ContentCache) error {
	return p.commit(ctx, to, &c)
}

func (p *Prefs) commit(ctx context.Context, to AppState, c *ContentCache) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	from, err := p.AppState(ctx)
	if err != nil {
		return err
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrIllegalTransition)
	}
	kv := map[string]string{KeyApplicationState: strconv.Itoa(int(to))}
	if c != nil {
		kv[KeyCachedURL] = c.URL
		kv[KeyCacheExpiry] = strconv.FormatInt(c.ExpiresAtEpochSeconds, 10)
	}
	return p.b.PutMany(ctx, kv)
}

func (p *Prefs) Content(ctx context.Context) (ContentCache, error) {
	url, err := p.getString(ctx, KeyCachedURL)
	if err != nil {
		return ContentCache{}, err
	}
	exp, err := p.getInt64(ctx, KeyCacheExpiry)
	if err != nil {
		return ContentCache{}, err
	}
	return ContentCache{URL: url, ExpiresAtEpochSeconds: exp}, nil
}

func (p *Prefs) NotificationRequest(ctx context.Context) (int64, error) {
	return p.getInt64(ctx, KeyNotificationRequest)
}

func (p *Prefs) SetNotificationRequest(ctx context.Context, epochSeconds int64) error {
	return p.b.Put(ctx, KeyNotificationRequest, strconv.FormatInt(epochSeconds, 10))
}

func (p *Prefs) NotificationRequestedBefore(ctx context.Context) (bool, error) {
	return p.getBool(ctx, KeyNotificationRequestedBefore)
}

func (p *Prefs) SetNotificationRequestedBefore(ctx context.Context, v bool) error {
	return p.b.Put(ctx, KeyNotificationRequestedBefore, strconv.FormatBool(v))
}

func (p *Prefs) InstallID(ctx context.Context) (string, error) {
	return p.getString(ctx, KeyInstallID)
}

func (p *Prefs) SetInstallID(ctx context.Context, id string) error {
	return p.b.Put(ctx, KeyInstallID, id)
}

func (p *Prefs) PushToken(ctx context.Context) (string, error) {
	return p.getString(ctx, KeyPushToken)
}

func (p *Prefs) SetPushToken(ctx context.Context, token string) error {
	return p.b.Put(ctx, KeyPushToken, token)
}

func (p *Prefs) getString(ctx context.Context, key string) (string, error) {
	v, _, err := p.b.Get(ctx, key)
	return v, err
}

func (p *Prefs) getInt64(ctx context.Context, key string) (int64, error) {
	v, ok, err := p.b.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func (p *Prefs) getBool(ctx context.Context, key string) (bool, error) {
	v, ok, err := p.b.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
