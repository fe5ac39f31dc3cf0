package attribution

import (
	"encoding/json"
	"errors"
)

var (
	ErrTimeout         = errors.New("attribution: no conversion data before timeout")
	ErrCallbackFailure = errors.New("attribution: conversion callback failed")
	ErrConfirmingCall  = errors.New("attribution: confirming call failed")
)

type Status int

const (
	Pending Status = iota
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of attribution resolution.
// Data is set only for Success, Err only for Error.
type Result struct {
	Status Status
	Data   map[string]any
	Err    error
}

func successResult(data map[string]any) Result { return Result{Status: Success, Data: data} }

func errorResult(err error) Result { return Result{Status: Error, Err: err} }

// Reason is a short metric-safe label for the error taxonomy.
func (r Result) Reason() string {
	switch {
	case r.Status != Error:
		return ""
	case errors.Is(r.Err, ErrTimeout):
		return "timeout"
	case errors.Is(r.Err, ErrCallbackFailure):
		return "callback_failure"
	case errors.Is(r.Err, ErrConfirmingCall):
		return "confirming_call"
	default:
		return "unknown"
	}
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data,omitempty"`
		Reason string         `json:"reason,omitempty"`
		Error  string         `json:"error,omitempty"`
	}{Status: r.Status.String(), Data: r.Data, Reason: r.Reason()}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}
