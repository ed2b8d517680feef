// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package usbserial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wneessen/coordserve/internal/device"
	"github.com/wneessen/coordserve/internal/logger"
	"github.com/wneessen/coordserve/internal/position"
	"github.com/wneessen/coordserve/internal/producer"
)

const (
	defaultLat = 49.8174252
	defaultLon = 24.0246498
)

type readResult struct {
	data []byte
	err  error
}

// mockSource replays a fixed sequence of reads and reports no data afterwards.
type mockSource struct {
	mu          sync.Mutex
	discoverErr error
	reads       []readResult
	readCount   int
	closed      bool
}

func (s *mockSource) Discover(context.Context) (*device.Port, error) {
	if s.discoverErr != nil {
		return nil, s.discoverErr
	}
	return device.NewPort("/dev/ttyMOCK0", closeRecorder{s}), nil
}

func (s *mockSource) ReadAvailable(*device.Port) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readCount++
	if len(s.reads) == 0 {
		return nil, nil
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r.data, r.err
}

func (s *mockSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type closeRecorder struct{ s *mockSource }

func (c closeRecorder) Read([]byte) (int, error)    { return 0, io.EOF }
func (c closeRecorder) Write(p []byte) (int, error) { return len(p), nil }
func (c closeRecorder) Close() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.closed = true
	return nil
}

func testProducer(out io.Writer, source device.Source) *Producer {
	return New(logger.NewLogger(slog.LevelDebug, out), source, time.Millisecond*100, time.Second, 1000, 500)
}

func TestNew(t *testing.T) {
	p := testProducer(io.Discard, &mockSource{})
	if p == nil {
		t.Fatal("expected producer to be non-nil")
	}
	if p.Name() != name {
		t.Errorf("expected producer name to be %s, got %s", name, p.Name())
	}
}

func TestProducer_Run(t *testing.T) {
	t.Run("discovery failure stops the producer and keeps defaults", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		state := position.New(defaultLat, defaultLon)
		p := testProducer(buf, &mockSource{discoverErr: device.ErrNotFound})

		err := p.Run(t.Context(), state)
		if !errors.Is(err, producer.ErrDiscovery) {
			t.Fatalf("expected error to be %s, got %v", producer.ErrDiscovery, err)
		}
		if !errors.Is(err, device.ErrNotFound) {
			t.Errorf("expected error to wrap %s, got %v", device.ErrNotFound, err)
		}
		record := state.Read()
		if record.HasTimestamp() || record.Latitude != defaultLat || record.Longitude != defaultLon {
			t.Errorf("expected state to remain at defaults, got %+v", record)
		}
		if !bytes.Contains(buf.Bytes(), []byte("could not find USB serial device")) {
			t.Errorf("expected discovery failure to be logged, got %q", buf.String())
		}
	})
	t.Run("received data updates raw and decoded coordinates", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			state := position.New(defaultLat, defaultLon)
			source := &mockSource{reads: []readResult{
				{data: []byte("Satellites: 8\r\nDEC lat/lon: 4981")},
				{data: []byte("80161, 240225620\r\n")},
			}}
			p := testProducer(io.Discard, source)

			errChan := make(chan error, 1)
			go func() { errChan <- p.Run(ctx, state) }()

			time.Sleep(time.Second)
			cancel()
			synctest.Wait()

			if err := <-errChan; err != nil {
				t.Fatalf("expected run to return without error, got %s", err)
			}
			record := state.Read()
			if math.Abs(record.Latitude-49.8180161) > 1e-9 {
				t.Errorf("expected latitude to be 49.8180161, got %.7f", record.Latitude)
			}
			if math.Abs(record.Longitude-24.022562) > 1e-9 {
				t.Errorf("expected longitude to be 24.022562, got %.7f", record.Longitude)
			}
			if record.Raw != "80161, 240225620\r\n" {
				t.Errorf("expected raw to be the last chunk, got %q", record.Raw)
			}
			if !record.HasTimestamp() {
				t.Error("expected timestamp to be set")
			}
			if !source.isClosed() {
				t.Error("expected port to be closed after cancellation")
			}
		})
	})
	t.Run("undecodable data still updates raw and timestamp", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			state := position.New(defaultLat, defaultLon)
			source := &mockSource{reads: []readResult{{data: []byte("RX RAW: 0A \xff1B\r\n")}}}
			p := testProducer(io.Discard, source)

			go func() { _ = p.Run(ctx, state) }()
			time.Sleep(time.Millisecond * 500)
			cancel()
			synctest.Wait()

			record := state.Read()
			if record.Latitude != defaultLat || record.Longitude != defaultLon {
				t.Errorf("expected default coordinates, got %f/%f", record.Latitude, record.Longitude)
			}
			if record.Raw != "RX RAW: 0A 1B\r\n" {
				t.Errorf("expected raw data without invalid UTF-8, got %q", record.Raw)
			}
			if !record.HasTimestamp() {
				t.Error("expected timestamp to be set")
			}
		})
	})
	t.Run("read errors are logged and retried after backoff", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			buf := bytes.NewBuffer(nil)
			state := position.New(defaultLat, defaultLon)
			source := &mockSource{reads: []readResult{
				{err: errors.New("input/output error")},
				{data: []byte(`{"lat": 100000000, "long": 200000000}` + "\n")},
			}}
			p := testProducer(buf, source)

			errChan := make(chan error, 1)
			go func() { errChan <- p.Run(ctx, state) }()

			// the backoff has not elapsed yet
			time.Sleep(time.Millisecond * 500)
			synctest.Wait()
			if state.Read().HasTimestamp() {
				t.Error("expected no update during backoff")
			}

			time.Sleep(time.Second)
			cancel()
			synctest.Wait()

			if err := <-errChan; err != nil {
				t.Fatalf("expected run to return without error, got %s", err)
			}
			record := state.Read()
			if record.Latitude != 10 || record.Longitude != 20 {
				t.Errorf("expected coordinates 10/20, got %f/%f", record.Latitude, record.Longitude)
			}
			if !bytes.Contains(buf.Bytes(), []byte("failed to read from serial device")) {
				t.Errorf("expected read error to be logged, got %q", buf.String())
			}
		})
	})
}
