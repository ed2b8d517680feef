// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package service wires the position state, its producer and the query service together.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wneessen/coordserve/internal/config"
	"github.com/wneessen/coordserve/internal/device"
	"github.com/wneessen/coordserve/internal/logger"
	"github.com/wneessen/coordserve/internal/position"
	"github.com/wneessen/coordserve/internal/producer"
	"github.com/wneessen/coordserve/internal/producer/gpsd"
	"github.com/wneessen/coordserve/internal/producer/synthetic"
	"github.com/wneessen/coordserve/internal/producer/usbserial"
	"github.com/wneessen/coordserve/internal/server"
)

// Service runs one position producer next to the HTTP query service.
type Service struct {
	config   *config.Config
	logger   *logger.Logger
	state    *position.State
	producer producer.Producer
	server   *server.Server
}

// New builds the shared state, the producer selected by the configured mode and the query service.
func New(conf *config.Config, log *logger.Logger) (*Service, error) {
	state := position.New(conf.Position.DefaultLatitude, conf.Position.DefaultLongitude)

	prod, err := selectProducer(conf, log)
	if err != nil {
		return nil, err
	}

	service := &Service{
		config:   conf,
		logger:   log,
		state:    state,
		producer: prod,
		server:   server.New(log, state, conf.Server.Address, conf.Server.ShutdownTimeout),
	}
	return service, nil
}

// Run starts the producer in the background and serves queries until the context is cancelled.
// A failing producer is logged and leaves the last written position in place; it never stops
// the query service.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runProducer(ctx)
	}()

	err := s.server.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

// State returns the shared position state.
func (s *Service) State() *position.State {
	return s.state
}

func (s *Service) runProducer(ctx context.Context) {
	s.logger.Info("starting position producer", slog.String("producer", s.producer.Name()))
	if err := s.producer.Run(ctx, s.state); err != nil {
		s.logger.Error("position producer stopped, serving last known position",
			slog.String("producer", s.producer.Name()), logger.Err(err))
		return
	}
	s.logger.Debug("position producer stopped", slog.String("producer", s.producer.Name()))
}

func selectProducer(conf *config.Config, log *logger.Logger) (producer.Producer, error) {
	switch conf.Producer.Mode {
	case config.ModeSynthetic:
		return synthetic.New(log, conf.Synthetic.Interval, conf.Position.DefaultLatitude,
			conf.Position.DefaultLongitude, conf.Synthetic.LatitudeStep, conf.Synthetic.LongitudeStep), nil
	case config.ModeSerial:
		source := device.NewSerialSource(log, conf.Serial.Ports, conf.Serial.BaudRate, conf.Serial.ConnectTimeout)
		return usbserial.New(log, source, conf.Serial.PollInterval, conf.Serial.ErrorBackoff,
			conf.Serial.BufferLimit, conf.Serial.BufferKeep), nil
	case config.ModeGPSD:
		return gpsd.New(log, conf.GPSD.Host, conf.GPSD.Port, conf.GPSD.ConnectTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported producer mode: %s", conf.Producer.Mode)
	}
}
