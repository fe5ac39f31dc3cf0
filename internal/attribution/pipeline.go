package attribution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"content-gate/internal/cache"
	"content-gate/internal/observability"
)

const organicStatus = "Organic"

type Options struct {
	// Timeout bounds the wait for a terminal result after Start.
	Timeout time.Duration
	// ConfirmDelay is slept before the organic confirming call.
	ConfirmDelay   time.Duration
	ConfirmTimeout time.Duration
	// DeviceID supplies the device_id for the confirming call.
	DeviceID func(ctx context.Context) string
}

// Pipeline turns SDK callbacks into exactly one terminal Result,
// committed to a shared single-assignment cell.
type Pipeline struct {
	cell      *cache.Cell[Result]
	confirmer Confirmer
	opts      Options

	mu         sync.Mutex
	ctx        context.Context
	timer      *time.Timer
	deepLink   map[string]any
	confirming bool
}

func NewPipeline(cell *cache.Cell[Result], confirmer Confirmer, opts Options) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 15 * time.Second
	}
	if opts.DeviceID == nil {
		opts.DeviceID = func(context.Context) string { return "" }
	}
	return &Pipeline{cell: cell, confirmer: confirmer, opts: opts, ctx: context.Background()}
}

// Start arms the timeout. Canceling ctx disarms it and aborts a pending
// or in-flight confirming call without publishing.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		return
	}
	p.ctx = ctx
	p.timer = time.AfterFunc(p.opts.Timeout, func() {
		if p.publish(errorResult(ErrTimeout)) {
			log.Warn().Dur("timeout", p.opts.Timeout).Msg("attribution timed out")
		}
	})
	context.AfterFunc(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.timer.Stop()
	})
	log.Debug().Dur("timeout", p.opts.Timeout).Msg("attribution pipeline started")
}

// OnConversionData handles the SDK's conversion-data success callback.
func (p *Pipeline) OnConversionData(payload map[string]any) {
	if p.Terminal() {
		log.Debug().Msg("conversion data after terminal result; ignored")
		return
	}
	status := "null"
	if v, ok := payload["af_status"]; ok && v != nil {
		status = fmt.Sprint(v)
	}
	if status != organicStatus {
		p.publish(successResult(payload))
		return
	}

	p.mu.Lock()
	if p.confirming {
		p.mu.Unlock()
		log.Debug().Msg("confirming call already in flight; ignored")
		return
	}
	p.confirming = true
	ctx := p.ctx
	p.mu.Unlock()

	go p.confirm(ctx)
}

func (p *Pipeline) confirm(ctx context.Context) {
	if p.opts.ConfirmDelay > 0 {
		t := time.NewTimer(p.opts.ConfirmDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	if p.Terminal() {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, p.opts.ConfirmTimeout)
	defer cancel()
	deviceID := p.opts.DeviceID(cctx)
	resp, err := p.confirmer.Confirm(cctx, deviceID)
	switch {
	case err != nil && ctx.Err() != nil:
		log.Debug().Err(err).Msg("confirming call aborted; scope canceled")
	case err != nil:
		observability.ConfirmCalls.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("device_id", deviceID).Msg("organic confirming call failed")
		p.publish(errorResult(fmt.Errorf("%w: %v", ErrConfirmingCall, err)))
	case fmt.Sprint(resp["af_status"]) == organicStatus:
		observability.ConfirmCalls.WithLabelValues("organic").Inc()
		p.publish(errorResult(fmt.Errorf("%w: install confirmed organic", ErrConfirmingCall)))
	default:
		observability.ConfirmCalls.WithLabelValues("non_organic").Inc()
		p.publish(successResult(resp))
	}
}

// OnConversionFailure handles the SDK's conversion-data failure callback.
func (p *Pipeline) OnConversionFailure(reason string) {
	p.publish(errorResult(fmt.Errorf("%w: %s", ErrCallbackFailure, reason)))
}

// OnStartFailure handles an SDK start error.
func (p *Pipeline) OnStartFailure(code int, reason string) {
	p.publish(errorResult(fmt.Errorf("%w: start error %d: %s", ErrCallbackFailure, code, reason)))
}

// OnDeepLink caches deep-link data for merging at publish time.
// It may arrive before or after conversion data.
func (p *Pipeline) OnDeepLink(dl DeepLink) {
	data := dl.Extract()
	p.mu.Lock()
	p.deepLink = data
	p.mu.Unlock()
	log.Debug().Int("keys", len(data)).Msg("deep link data cached")
}

// Terminal reports whether a result has been committed.
func (p *Pipeline) Terminal() bool {
	_, ok := p.cell.Load()
	return ok
}

// Result returns the committed result, or Pending.
func (p *Pipeline) Result() Result {
	if r, ok := p.cell.Load(); ok {
		return r
	}
	return Result{Status: Pending}
}

// publish commits r if nothing has been committed yet.
func (p *Pipeline) publish(r Result) bool {
	p.mu.Lock()
	if r.Status == Success {
		r.Data = Merge(r.Data, p.deepLink)
	}
	won := p.cell.Set(r)
	if won && p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()

	if !won {
		log.Debug().Str("status", r.Status.String()).Msg("attribution result already committed; dropped")
		return false
	}
	observability.AttributionResults.WithLabelValues(r.Status.String(), r.Reason()).Inc()
	ev := log.Info().Str("status", r.Status.String())
	if r.Err != nil {
		ev = ev.Err(r.Err)
	} else {
		ev = ev.Int("keys", len(r.Data))
	}
	ev.Msg("attribution resolved")
	return true
}
