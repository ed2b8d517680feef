// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package gpsd implements a producer that follows the TPV reports of a local gpsd daemon.
package gpsd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/wneessen/coordserve/internal/logger"
	"github.com/wneessen/coordserve/internal/position"
	"github.com/wneessen/coordserve/internal/producer"
)

const name = "gpsd"

var ErrWatchEnded = errors.New("gpsd watch ended")

// Producer writes every TPV report with at least a 2D fix into the position state.
type Producer struct {
	addr    string
	timeout time.Duration
	logger  *logger.Logger
	dialFn  func(address string, timeout time.Duration) (*gpsd.Session, error)
}

// New returns a Producer for the gpsd daemon listening on host:port. Connecting gives up after
// the given timeout.
func New(log *logger.Logger, host, port string, timeout time.Duration) *Producer {
	return &Producer{
		addr:    net.JoinHostPort(host, port),
		timeout: timeout,
		logger:  log,
		dialFn:  gpsd.DialTimeout,
	}
}

// Name returns the name of the producer.
func (p *Producer) Name() string {
	return name
}

// Run connects to gpsd once and watches its report stream. A failed connection is reported as
// producer.ErrDiscovery. Run returns ErrWatchEnded when gpsd closes the stream, and nil when the
// context is cancelled. The session is closed and its reader has stopped before Run returns, so
// no report reaches the state afterwards.
func (p *Producer) Run(ctx context.Context, state *position.State) error {
	session, err := p.dialFn(p.addr, p.timeout)
	if err != nil {
		p.logger.Error("could not connect to gpsd", slog.String("address", p.addr), logger.Err(err))
		return fmt.Errorf("%w: %w", producer.ErrDiscovery, err)
	}
	p.logger.Info("connected to gpsd", slog.String("address", p.addr))

	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		p.handleTPV(state, tpv, time.Now())
	})

	done := session.Watch()
	select {
	case <-ctx.Done():
		p.closeSession(session)
		<-done
		return nil
	case <-done:
		p.logger.Warn("gpsd closed the report stream", slog.String("address", p.addr))
		p.closeSession(session)
		return ErrWatchEnded
	}
}

func (p *Producer) closeSession(session *gpsd.Session) {
	if err := session.Close(); err != nil {
		p.logger.Error("failed to close gpsd session", slog.String("address", p.addr), logger.Err(err))
	}
}

// handleTPV writes the report if it carries at least a 2D fix and reports whether it did.
func (p *Producer) handleTPV(state *position.State, tpv *gpsd.TPVReport, now time.Time) bool {
	if tpv.Mode < gpsd.Mode2D {
		return false
	}
	state.Write(tpv.Lat, tpv.Lon, now)
	p.logger.Info("gpsd position updated",
		slog.String("lat", strconv.FormatFloat(tpv.Lat, 'f', 7, 64)),
		slog.String("lon", strconv.FormatFloat(tpv.Lon, 'f', 7, 64)),
		slog.Int("mode", int(tpv.Mode)))
	return true
}
