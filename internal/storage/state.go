package storage

import (
	"errors"
	"fmt"
)

var ErrIllegalTransition = errors.New("illegal app state transition")

// AppState is the persisted gate state. It only ever moves forward:
// Unresolved -> Cached | Failed, Cached -> Cached. Failed is terminal.
type AppState int

const (
	Unresolved AppState = 0
	Cached     AppState = 1
	Failed     AppState = 2
)

func (s AppState) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Cached:
		return "cached"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("AppState(%d)", int(s))
	}
}

func (s AppState) Valid() bool {
	switch s {
	case Unresolved, Cached, Failed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to AppState) bool {
	switch from {
	case Unresolved:
		return to == Cached || to == Failed
	case Cached:
		return to == Cached
	case Failed:
		return false
	default:
		return false
	}
}

// ContentCache is the last successfully fetched remote content.
type ContentCache struct {
	URL                   string `json:"url"`
	ExpiresAtEpochSeconds int64  `json:"expires"`
}

// Fresh reports whether the cache may be served at nowUnix.
func (c ContentCache) Fresh(nowUnix int64) bool {
	return nowUnix <= c.ExpiresAtEpochSeconds
}
