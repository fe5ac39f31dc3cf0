package device

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"content-gate/internal/storage"
)

// ZeroAdvertisingID is reported when no advertising id is available.
const ZeroAdvertisingID = "00000000-0000-0000-0000-000000000000"

// Provider supplies the device parameters sent to the content backend.
type Provider struct {
	prefs         *storage.Prefs
	locale        string
	advertisingID string
	appUserID     string

	mu sync.Mutex
}

func NewProvider(prefs *storage.Prefs, locale, advertisingID, appUserID string) *Provider {
	if advertisingID == "" {
		advertisingID = ZeroAdvertisingID
	}
	if locale == "" {
		locale = os.Getenv("LANG")
	}
	return &Provider{
		prefs:         prefs,
		locale:        NormalizeLocale(locale),
		advertisingID: advertisingID,
		appUserID:     strings.TrimSpace(appUserID),
	}
}

// NormalizeLocale reduces a locale such as "pt_BR.UTF-8" to its base language ("pt").
func NormalizeLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, ".@"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ReplaceAll(raw, "_", "-")
	tag, err := language.Parse(raw)
	if err != nil || tag == language.Und {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}

func (p *Provider) Locale() string { return p.locale }

func (p *Provider) AdvertisingID() string { return p.advertisingID }

// InstallID returns the configured app user id, or a random id generated
// on first use and persisted for the lifetime of the install.
func (p *Provider) InstallID(ctx context.Context) (string, error) {
	if p.appUserID != "" {
		return p.appUserID, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.prefs.InstallID(ctx)
	if err != nil {
		return "", fmt.Errorf("read install id: %w", err)
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := p.prefs.SetInstallID(ctx, id); err != nil {
		return "", fmt.Errorf("persist install id: %w", err)
	}
	log.Info().Str("install_id", id).Msg("generated install id")
	return id, nil
}

// PushToken returns the last registered push token, or "" when none.
func (p *Provider) PushToken(ctx context.Context) string {
	tok, err := p.prefs.PushToken(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("push token unavailable")
		return ""
	}
	return tok
}

func (p *Provider) SetPushToken(ctx context.Context, token string) error {
	return p.prefs.SetPushToken(ctx, strings.TrimSpace(token))
}
