package push

import (
	"strings"

	"github.com/rs/zerolog/log"

	"content-gate/internal/observability"
)

// URLKey is the push data field carrying an override URL.
const URLKey = "url"

type OverrideSink interface {
	SetOverrideURL(u string)
}

// Handler applies push payloads to the application scope.
type Handler struct {
	sink OverrideSink
}

func NewHandler(sink OverrideSink) *Handler { return &Handler{sink: sink} }

// Handle sets the override URL when data carries a non-empty "url".
// It reports whether an override was applied.
func (h *Handler) Handle(source string, data map[string]string) bool {
	if len(data) == 0 {
		log.Debug().Str("source", source).Msg("push without data")
		return false
	}
	u, ok := data[URLKey]
	if !ok || strings.TrimSpace(u) == "" {
		log.Debug().Str("source", source).Int("keys", len(data)).Msg("push without url")
		return false
	}
	h.sink.SetOverrideURL(u)
	observability.OverridesReceived.WithLabelValues(source).Inc()
	log.Info().Str("source", source).Str("url", u).Msg("override url set")
	return true
}
