package attribution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-gate/internal/cache"
)

type fakeConfirmer struct {
	calls atomic.Int32
	resp  map[string]any
	err   error
	delay time.Duration
	gotID atomic.Value
}

func (f *fakeConfirmer) Confirm(ctx context.Context, deviceID string) (map[string]any, error) {
	f.calls.Add(1)
	f.gotID.Store(deviceID)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func newPipeline(c Confirmer, timeout time.Duration) (*Pipeline, *cache.Cell[Result]) {
	cell := cache.NewCell[Result]()
	p := NewPipeline(cell, c, Options{
		Timeout:        timeout,
		ConfirmTimeout: time.Second,
		DeviceID:       func(context.Context) string { return "dev-1" },
	})
	return p, cell
}

func waitResult(t *testing.T, cell *cache.Cell[Result]) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := cell.Wait(ctx)
	require.NoError(t, err)
	return r
}

func TestPipeline_NonOrganicPublishesImmediately(t *testing.T) {
	conf := &fakeConfirmer{}
	p, cell := newPipeline(conf, time.Minute)
	p.Start(context.Background())

	p.OnConversionData(map[string]any{"af_status": "Non-organic", "campaign": "c1"})

	r := waitResult(t, cell)
	assert.Equal(t, Success, r.Status)
	assert.Equal(t, "c1", r.Data["campaign"])
	assert.Equal(t, int32(0), conf.calls.Load())
}

func TestPipeline_OrganicConfirmedPaid(t *testing.T) {
	conf := &fakeConfirmer{resp: map[string]any{"af_status": "Non-organic", "media_source": "fb"}}
	p, cell := newPipeline(conf, time.Minute)
	p.Start(context.Background())

	p.OnConversionData(map[string]any{"af_status": "Organic"})
	// a repeat callback while confirming must not cause a second call
	p.OnConversionData(map[string]any{"af_status": "Organic"})

	r := waitResult(t, cell)
	assert.Equal(t, Success, r.Status)
	assert.Equal(t, "fb", r.Data["media_source"])
	assert.Equal(t, int32(1), conf.calls.Load())
	assert.Equal(t, "dev-1", conf.gotID.Load())
}

func TestPipeline_OrganicConfirmationOutcomes(t *testing.T) {
	tests := []struct {
		name string
		conf *fakeConfirmer
	}{
		{"still organic", &fakeConfirmer{resp: map[string]any{"af_status": "Organic"}}},
		{"call failed", &fakeConfirmer{err: errors.New("boom")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, cell := newPipeline(tt.conf, time.Minute)
			p.Start(context.Background())

			p.OnConversionData(map[string]any{"af_status": "Organic"})

			r := waitResult(t, cell)
			assert.Equal(t, Error, r.Status)
			assert.ErrorIs(t, r.Err, ErrConfirmingCall)
			assert.Equal(t, "confirming_call", r.Reason())
			assert.Equal(t, int32(1), tt.conf.calls.Load())
		})
	}
}

func TestPipeline_ConfirmDelayIsHonoured(t *testing.T) {
	conf := &fakeConfirmer{resp: map[string]any{"af_status": "Non-organic"}}
	cell := cache.NewCell[Result]()
	p := NewPipeline(cell, conf, Options{Timeout: time.Minute, ConfirmDelay: 80 * time.Millisecond})
	p.Start(context.Background())

	start := time.Now()
	p.OnConversionData(map[string]any{"af_status": "Organic"})
	waitResult(t, cell)

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestPipeline_TimeoutPublishesError(t *testing.T) {
	p, cell := newPipeline(&fakeConfirmer{}, 30*time.Millisecond)
	p.Start(context.Background())

	r := waitResult(t, cell)
	assert.Equal(t, Error, r.Status)
	assert.ErrorIs(t, r.Err, ErrTimeout)

	// late callbacks are discarded
	p.OnConversionData(map[string]any{"af_status": "Non-organic"})
	assert.Equal(t, Error, p.Result().Status)
}

func TestPipeline_TimeoutBeatsSlowConfirmation(t *testing.T) {
	conf := &fakeConfirmer{resp: map[string]any{"af_status": "Non-organic"}, delay: 300 * time.Millisecond}
	p, cell := newPipeline(conf, 50*time.Millisecond)
	p.Start(context.Background())

	p.OnConversionData(map[string]any{"af_status": "Organic"})

	r := waitResult(t, cell)
	assert.ErrorIs(t, r.Err, ErrTimeout)

	time.Sleep(400 * time.Millisecond)
	assert.ErrorIs(t, p.Result().Err, ErrTimeout)
}

func TestPipeline_FailureCallbacks(t *testing.T) {
	p, cell := newPipeline(&fakeConfirmer{}, time.Minute)
	p.Start(context.Background())

	p.OnConversionFailure("network")
	p.OnStartFailure(41, "bad key")
	p.OnConversionData(map[string]any{"af_status": "Non-organic"})

	r := waitResult(t, cell)
	assert.Equal(t, Error, r.Status)
	assert.ErrorIs(t, r.Err, ErrCallbackFailure)
	assert.Contains(t, r.Err.Error(), "network")
}

func TestPipeline_DeepLinkMergedConversionWins(t *testing.T) {
	tests := []struct {
		name          string
		deepLinkFirst bool
	}{
		{"deep link before conversion", true},
		{"deep link after conversion is not merged", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, cell := newPipeline(&fakeConfirmer{}, time.Minute)
			p.Start(context.Background())
			dl := DeepLink{MediaSource: "y", Campaign: "z", Values: map[string]string{"af_status": "ignored"}}

			if tt.deepLinkFirst {
				p.OnDeepLink(dl)
			}
			p.OnConversionData(map[string]any{"af_status": "x", "media_source": "x"})
			if !tt.deepLinkFirst {
				p.OnDeepLink(dl)
			}

			r := waitResult(t, cell)
			assert.Equal(t, "x", r.Data["af_status"])
			assert.Equal(t, "x", r.Data["media_source"])
			if tt.deepLinkFirst {
				assert.Equal(t, "z", r.Data["campaign"])
			} else {
				assert.NotContains(t, r.Data, "campaign")
			}
		})
	}
}

func TestPipeline_AtMostOnceUnderInterleaving(t *testing.T) {
	for i := 0; i < 50; i++ {
		conf := &fakeConfirmer{resp: map[string]any{"af_status": "Non-organic"}}
		p, cell := newPipeline(conf, time.Millisecond)
		p.Start(context.Background())

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); p.OnConversionData(map[string]any{"af_status": "Non-organic"}) }()
		go func() { defer wg.Done(); p.OnConversionFailure("x") }()
		go func() { defer wg.Done(); p.OnConversionData(map[string]any{"af_status": "Organic"}) }()
		wg.Wait()

		first := waitResult(t, cell)
		time.Sleep(5 * time.Millisecond)
		again, ok := cell.Load()
		require.True(t, ok)
		assert.Equal(t, first.Status, again.Status)
		assert.LessOrEqual(t, conf.calls.Load(), int32(1))
	}
}

func TestPipeline_CanceledContextDisarmsTimer(t *testing.T) {
	p, cell := newPipeline(&fakeConfirmer{}, 40*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	time.Sleep(100 * time.Millisecond)
	_, ok := cell.Load()
	assert.False(t, ok)
	assert.Equal(t, Pending, p.Result().Status)
}

func TestPipeline_CanceledDuringConfirmationPublishesNothing(t *testing.T) {
	conf := &fakeConfirmer{resp: map[string]any{"af_status": "Non-organic"}, delay: time.Second}
	p, cell := newPipeline(conf, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	p.OnConversionData(map[string]any{"af_status": "Organic"})
	require.Eventually(t, func() bool { return conf.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	time.Sleep(50 * time.Millisecond)
	_, ok := cell.Load()
	assert.False(t, ok)
	assert.Equal(t, Pending, p.Result().Status)
}
