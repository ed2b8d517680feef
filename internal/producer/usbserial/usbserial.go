// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package usbserial implements a producer that reads location data from a USB-serial receiver.
package usbserial

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/coordserve/internal/device"
	"github.com/wneessen/coordserve/internal/logger"
	"github.com/wneessen/coordserve/internal/position"
	"github.com/wneessen/coordserve/internal/producer"
)

const name = "serial"

// Producer polls a device.Source and writes every received chunk and every decoded coordinate
// into the position state.
type Producer struct {
	source       device.Source
	logger       *logger.Logger
	pollInterval time.Duration
	backoff      time.Duration
	bufferLimit  int
	bufferKeep   int
}

// New returns a Producer reading from source. Received data is buffered up to limit bytes, of
// which the most recent keep bytes survive a truncation.
func New(log *logger.Logger, source device.Source, pollInterval, backoff time.Duration, limit, keep int) *Producer {
	return &Producer{
		source:       source,
		logger:       log,
		pollInterval: pollInterval,
		backoff:      backoff,
		bufferLimit:  limit,
		bufferKeep:   keep,
	}
}

// Name returns the name of the producer.
func (p *Producer) Name() string {
	return name
}

// Run discovers the device once and then reads from it until the context is cancelled. If no
// device can be found, Run returns an error wrapping producer.ErrDiscovery. Read errors are
// logged and retried after the backoff.
func (p *Producer) Run(ctx context.Context, state *position.State) error {
	port, err := p.source.Discover(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		p.logger.Error("could not find USB serial device, check that the receiver is connected",
			logger.Err(err))
		return fmt.Errorf("%w: %w", producer.ErrDiscovery, err)
	}
	defer func() {
		if err := port.Close(); err != nil {
			p.logger.Error("failed to close serial device", slog.String("port", port.Name()), logger.Err(err))
		}
	}()
	p.logger.Info("reading position data from serial device", slog.String("port", port.Name()))

	buf := newLineBuffer(p.bufferLimit, p.bufferKeep)
	for {
		if ctx.Err() != nil {
			return nil
		}

		data, err := p.source.ReadAvailable(port)
		if err != nil {
			p.logger.Error("failed to read from serial device", slog.String("port", port.Name()),
				logger.Err(err))
			if !producer.SleepOrDone(ctx, p.backoff) {
				return nil
			}
			continue
		}
		if len(data) > 0 {
			p.handle(state, buf, data, time.Now())
		}

		if !producer.SleepOrDone(ctx, p.pollInterval) {
			return nil
		}
	}
}

// handle records the raw chunk first, independent of whether anything in it can be decoded.
func (p *Producer) handle(state *position.State, buf *lineBuffer, data []byte, now time.Time) {
	chunk := strings.ToValidUTF8(string(data), "")
	p.logger.Debug("serial data received", slog.String("data", chunk))
	state.WriteRaw(chunk, now)

	buf.Write(chunk)
	for _, line := range buf.Lines() {
		fix, ok := ParseLine(line)
		if !ok {
			continue
		}
		state.Write(fix.Lat, fix.Lon, now)
		p.logger.Info("serial position updated",
			slog.String("lat", strconv.FormatFloat(fix.Lat, 'f', 7, 64)),
			slog.String("lon", strconv.FormatFloat(fix.Lon, 'f', 7, 64)),
			slog.String("format", fix.Format))
	}
	buf.Truncate()
}
