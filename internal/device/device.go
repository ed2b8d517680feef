// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package device discovers and reads the USB-serial receiver that streams location data.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/wneessen/coordserve/internal/logger"
)

const (
	// readTimeoutMillis bounds a single read when no data is pending
	readTimeoutMillis = 100
	readBufferSize    = 4096
)

var ErrNotFound = errors.New("no serial device found")

// Source is the capability a device-backed producer consumes.
type Source interface {
	// Discover opens the first available device. It is meant to be called once at startup.
	Discover(ctx context.Context) (*Port, error)
	// ReadAvailable returns whatever bytes are currently available. An empty result with a nil
	// error means nothing arrived within the read timeout.
	ReadAvailable(port *Port) ([]byte, error)
}

// Port is an opened device connection.
type Port struct {
	name string
	conn io.ReadWriteCloser
}

// NewPort wraps an opened connection under the given device name.
func NewPort(name string, conn io.ReadWriteCloser) *Port {
	return &Port{name: name, conn: conn}
}

// Name returns the device path the port was opened from.
func (p *Port) Name() string {
	return p.name
}

// Close closes the underlying connection.
func (p *Port) Close() error {
	return p.conn.Close()
}

// SerialSource probes an ordered list of serial device candidates.
type SerialSource struct {
	candidates []string
	baudRate   uint
	timeout    time.Duration
	logger     *logger.Logger

	openFn func(serial.OpenOptions) (io.ReadWriteCloser, error)
	globFn func(pattern string) ([]string, error)
}

// NewSerialSource returns a SerialSource trying candidates in order, each with the given connect
// timeout.
func NewSerialSource(log *logger.Logger, candidates []string, baudRate uint, timeout time.Duration) *SerialSource {
	return &SerialSource{
		candidates: candidates,
		baudRate:   baudRate,
		timeout:    timeout,
		logger:     log,
		openFn:     serial.Open,
		globFn:     filepath.Glob,
	}
}

// Discover tries every candidate in order and returns the first one that opens. Candidates that
// contain glob metacharacters are expanded and their first match is used.
func (s *SerialSource) Discover(ctx context.Context) (*Port, error) {
	for _, candidate := range s.candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, ok := s.expand(candidate)
		if !ok {
			continue
		}

		conn, err := s.open(ctx, path)
		if err != nil {
			s.logger.Debug("serial device candidate unavailable", slog.String("port", path), logger.Err(err))
			continue
		}

		s.logger.Info("connected to serial device", slog.String("port", path),
			slog.Uint64("baud_rate", uint64(s.baudRate)))
		return NewPort(path, conn), nil
	}
	return nil, ErrNotFound
}

// ReadAvailable performs a single bounded read on the port.
func (s *SerialSource) ReadAvailable(port *Port) ([]byte, error) {
	buf := make([]byte, readBufferSize)
	n, err := port.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	// A read that times out without data is reported as EOF by the tty layer
	if err == nil || errors.Is(err, io.EOF) {
		return nil, nil
	}
	return nil, fmt.Errorf("failed to read from %s: %w", port.name, err)
}

func (s *SerialSource) expand(candidate string) (string, bool) {
	if !strings.ContainsAny(candidate, "*?[") {
		return candidate, true
	}
	matches, err := s.globFn(candidate)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// open opens path, giving up after the connect timeout. A connection that completes after the
// timeout is closed in the background.
func (s *SerialSource) open(ctx context.Context, path string) (io.ReadWriteCloser, error) {
	type result struct {
		conn io.ReadWriteCloser
		err  error
	}
	resultChan := make(chan result, 1)
	go func() {
		conn, err := s.openFn(serial.OpenOptions{
			PortName:              path,
			BaudRate:              s.baudRate,
			DataBits:              8,
			StopBits:              1,
			ParityMode:            serial.PARITY_NONE,
			MinimumReadSize:       0,
			InterCharacterTimeout: readTimeoutMillis,
		})
		resultChan <- result{conn, err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	abandon := func() {
		go func() {
			if r := <-resultChan; r.err == nil {
				_ = r.conn.Close()
			}
		}()
	}

	select {
	case r := <-resultChan:
		return r.conn, r.err
	case <-timer.C:
		abandon()
		return nil, fmt.Errorf("timed out after %s opening %s", s.timeout, path)
	case <-ctx.Done():
		abandon()
		return nil, ctx.Err()
	}
}
