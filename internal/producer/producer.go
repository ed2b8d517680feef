// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package producer defines the background tasks that feed the shared position state.
package producer

import (
	"context"
	"errors"
	"time"

	"github.com/wneessen/coordserve/internal/position"
)

// E7 is the scale factor of integer degree values used by devices and the synthetic producer.
const E7 = 10_000_000

// ErrDiscovery is returned by a producer that could not find its position source at startup.
var ErrDiscovery = errors.New("position source discovery failed")

// Producer writes position updates into a State until the context is cancelled or the producer
// can no longer obtain positions.
type Producer interface {
	Name() string
	Run(ctx context.Context, state *position.State) error
}

// FromE7 converts an integer degree value scaled by 10^7 into degrees.
func FromE7(v int64) float64 {
	return float64(v) / E7
}

// SleepOrDone waits for d and reports true, or returns false early if the context is done.
func SleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
