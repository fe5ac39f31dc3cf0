package notify

import (
	"context"
	"fmt"
	"time"

	"content-gate/internal/storage"
)

type Decision string

const (
	// Proceed means open the content directly.
	Proceed Decision = "proceed"
	// Prompt means show the notification permission screen first.
	Prompt Decision = "prompt"
)

// Policy decides when to ask for the notification permission before
// showing remote content, and records the user's answers.
type Policy struct {
	prefs             *storage.Prefs
	skipDeferral      time.Duration
	rationaleDeferral time.Duration
	now               func() time.Time
}

func NewPolicy(prefs *storage.Prefs, skipDeferral, rationaleDeferral time.Duration) *Policy {
	return &Policy{prefs: prefs, skipDeferral: skipDeferral, rationaleDeferral: rationaleDeferral, now: time.Now}
}

// Decide is evaluated each time content is ready to be shown.
// granted is the current OS permission, rationale whether the OS
// suggests explaining the request.
func (p *Policy) Decide(ctx context.Context, granted, rationale bool) (Decision, error) {
	if granted {
		return Proceed, nil
	}
	before, err := p.prefs.NotificationRequestedBefore(ctx)
	if err != nil {
		return Proceed, fmt.Errorf("read requested-before: %w", err)
	}
	next, err := p.prefs.NotificationRequest(ctx)
	if err != nil {
		return Proceed, fmt.Errorf("read next request: %w", err)
	}
	due := p.now().Unix() > next

	switch {
	case !before && due:
		return Prompt, nil
	case rationale && due:
		return Prompt, nil
	default:
		return Proceed, nil
	}
}

// Skip defers the next prompt by the skip deferral.
func (p *Policy) Skip(ctx context.Context) error {
	return p.prefs.SetNotificationRequest(ctx, p.now().Add(p.skipDeferral).Unix())
}

// Answer records the outcome of a permission request.
func (p *Policy) Answer(ctx context.Context, granted, rationale bool) error {
	if err := p.prefs.SetNotificationRequestedBefore(ctx, true); err != nil {
		return err
	}
	if !granted && rationale {
		return p.prefs.SetNotificationRequest(ctx, p.now().Add(p.rationaleDeferral).Unix())
	}
	return nil
}
