// Package ratelimit enforces a fixed-window request quota per
// identifier. Two interchangeable backends: a durable store-backed
// window and a redis hash mutated by a single Lua script.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrEmptyIdentifier = errors.New("rate limit identifier is empty")

// Result is the outcome of a quota check. Denial is a value, not an
// error: errors mean the backend failed, and a failed backend never
// allows.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type Limiter interface {
	// Check consumes one unit of quota if any remains. Atomic per
	// identifier: concurrent calls never over-admit.
	Check(ctx context.Context, identifier string) (*Result, error)
	// Status reports the current window without consuming quota.
	Status(ctx context.Context, identifier string) (*Result, error)
}
