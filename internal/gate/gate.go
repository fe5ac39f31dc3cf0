package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"content-gate/internal/attribution"
	"content-gate/internal/backend"
	"content-gate/internal/device"
	"content-gate/internal/observability"
	"content-gate/internal/storage"
)

// Source yields the terminal attribution result, blocking until there is one.
type Source interface {
	Wait(ctx context.Context) (attribution.Result, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, conversion map[string]any) (backend.Content, error)
}

type Override interface {
	OverrideURL() (string, bool)
}

type Deps struct {
	Prefs    *storage.Prefs
	Source   Source
	Fetcher  Fetcher
	Probe    device.Probe
	Override Override
	Now      func() time.Time
}

// Gate decides which screen to show from persisted state and the
// attribution result, fetching and caching remote content as needed.
type Gate struct {
	scope  context.Context
	d      Deps
	flight singleflight.Group
}

// New binds the gate to scope: in-flight resolutions are canceled when
// scope ends, not when an individual caller gives up.
func New(scope context.Context, d Deps) *Gate {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Gate{scope: scope, d: d}
}

// Resolve runs the state machine once. Concurrent callers share a single
// run so one attribution result drives at most one backend fetch.
func (g *Gate) Resolve(ctx context.Context) (Screen, error) {
	ch := g.flight.DoChan("resolve", func() (any, error) {
		return g.resolve(g.scope)
	})
	select {
	case res := <-ch:
		s, _ := res.Val.(Screen)
		return s, res.Err
	case <-ctx.Done():
		return loading(), ctx.Err()
	}
}

func (g *Gate) resolve(ctx context.Context) (Screen, error) {
	state, err := g.d.Prefs.AppState(ctx)
	if err != nil {
		return failed(), fmt.Errorf("read app state: %w", err)
	}

	var s Screen
	switch state {
	case storage.Unresolved:
		s, err = g.resolveUnresolved(ctx)
	case storage.Cached:
		s, err = g.resolveCached(ctx)
	case storage.Failed:
		s = failed()
	default:
		return failed(), fmt.Errorf("app state %s: %w", state, storage.ErrIllegalTransition)
	}
	if err == nil {
		observability.Screens.WithLabelValues(s.Kind.String(), state.String()).Inc()
		log.Info().Str("state", state.String()).Str("screen", s.Kind.String()).Str("url", s.URL).Msg("content resolved")
	}
	return s, err
}

func (g *Gate) resolveUnresolved(ctx context.Context) (Screen, error) {
	if !g.d.Probe.Online(ctx) {
		return offline(), nil
	}
	return g.awaitAndFetch(ctx, storage.Unresolved, storage.ContentCache{})
}

func (g *Gate) resolveCached(ctx context.Context) (Screen, error) {
	if !g.d.Probe.Online(ctx) {
		return offline(), nil
	}
	if u, ok := g.d.Override.OverrideURL(); ok {
		return content(u), nil
	}
	cached, err := g.d.Prefs.Content(ctx)
	if err != nil {
		return failed(), fmt.Errorf("read content cache: %w", err)
	}
	if cached.Fresh(g.d.Now().Unix()) {
		return content(cached.URL), nil
	}
	log.Debug().Int64("expired_at", cached.ExpiresAtEpochSeconds).Msg("content cache expired; refreshing")
	return g.awaitAndFetch(ctx, storage.Cached, cached)
}

// awaitAndFetch waits for attribution, then fetches. stale is served on
// any refresh failure when coming from Cached.
func (g *Gate) awaitAndFetch(ctx context.Context, from storage.AppState, stale storage.ContentCache) (Screen, error) {
	res, err := g.d.Source.Wait(ctx)
	if err != nil {
		return loading(), err
	}

	switch res.Status {
	case attribution.Success:
		return g.fetchAndPersist(ctx, from, res.Data, stale), nil
	case attribution.Error:
		return g.onFailure(ctx, from, stale), nil
	default:
		return loading(), errors.New("attribution source returned a pending result")
	}
}

func (g *Gate) fetchAndPersist(ctx context.Context, from storage.AppState, conversion map[string]any, stale storage.ContentCache) Screen {
	c, err := g.d.Fetcher.Fetch(ctx, conversion)
	if err != nil {
		log.Warn().Err(err).Str("state", from.String()).Msg("content fetch failed")
		return g.onFailure(ctx, from, stale)
	}

	fresh := storage.ContentCache{URL: c.URL, ExpiresAtEpochSeconds: c.Expires}
	if err := g.d.Prefs.CommitContent(ctx, storage.Cached, fresh); err != nil {
		log.Error().Err(err).Msg("persist content cache")
	}
	return content(c.URL)
}

func (g *Gate) onFailure(ctx context.Context, from storage.AppState, stale storage.ContentCache) Screen {
	switch from {
	case storage.Unresolved:
		if err := g.d.Prefs.SetAppState(ctx, storage.Failed); err != nil {
			log.Error().Err(err).Msg("persist failed state")
		}
		return failed()
	case storage.Cached:
		return content(stale.URL)
	default:
		return failed()
	}
}
