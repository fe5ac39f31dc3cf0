// Package appscope holds the process-wide values shared between the
// attribution pipeline, the push handlers and the content gate.
package appscope

import (
	"strings"

	"content-gate/internal/attribution"
	"content-gate/internal/cache"
)

type Scope struct {
	conversion *cache.Cell[attribution.Result]
	override   cache.Snapshot[string]
}

func New() *Scope {
	return &Scope{conversion: cache.NewCell[attribution.Result]()}
}

// Conversion is the single-assignment attribution result. Only the
// pipeline writes it.
func (s *Scope) Conversion() *cache.Cell[attribution.Result] { return s.conversion }

func (s *Scope) SetOverrideURL(u string) {
	u = strings.TrimSpace(u)
	if u == "" {
		s.override.Clear()
		return
	}
	s.override.Store(u)
}

func (s *Scope) OverrideURL() (string, bool) { return s.override.Load() }
