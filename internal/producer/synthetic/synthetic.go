// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package synthetic implements a producer that walks a fixed step away from a base position on
// every cycle. It stands in for a real receiver during development and demos.
package synthetic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/wneessen/coordserve/internal/logger"
	"github.com/wneessen/coordserve/internal/position"
	"github.com/wneessen/coordserve/internal/producer"
)

const (
	name    = "synthetic"
	jobName = "synthetic_position_job"
)

// Producer increments integer-scaled coordinate accumulators by a fixed step per cycle.
// Values are kept as degrees times 10^7 so that repeated increments do not drift.
type Producer struct {
	logger   *logger.Logger
	interval time.Duration
	latStep  int64
	lonStep  int64

	mu     sync.Mutex
	lat    int64
	lon    int64
	cycles int
}

// New returns a Producer starting at the given base position.
func New(log *logger.Logger, interval time.Duration, baseLat, baseLon float64, latStep, lonStep int64) *Producer {
	return &Producer{
		logger:   log,
		interval: interval,
		latStep:  latStep,
		lonStep:  lonStep,
		lat:      toE7(baseLat),
		lon:      toE7(baseLon),
	}
}

// Name returns the name of the producer.
func (p *Producer) Name() string {
	return name
}

// Run schedules one Step per interval until the context is cancelled. The first step happens one
// interval after Run is called. Cancellation is not an error.
func (p *Producer) Run(ctx context.Context, state *position.State) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(func(context.Context) { p.Step(state, time.Now()) }),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	scheduler.Start()

	<-ctx.Done()
	if err = scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	return nil
}

// Step advances the accumulators by one step and writes the new position stamped with now.
func (p *Producer) Step(state *position.State, now time.Time) {
	p.mu.Lock()
	p.lat += p.latStep
	p.lon += p.lonStep
	p.cycles++
	lat, lon := producer.FromE7(p.lat), producer.FromE7(p.lon)
	p.mu.Unlock()

	state.Write(lat, lon, now)
	p.logger.Info("synthetic position updated",
		slog.String("lat", strconv.FormatFloat(lat, 'f', 7, 64)),
		slog.String("lon", strconv.FormatFloat(lon, 'f', 7, 64)))
}

// Cycles returns the number of completed steps.
func (p *Producer) Cycles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycles
}

func toE7(deg float64) int64 {
	return int64(math.Round(deg * producer.E7))
}
