// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package main implements the coordserve service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wneessen/coordserve/internal/config"
	"github.com/wneessen/coordserve/internal/logger"
	"github.com/wneessen/coordserve/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configExtensions = []string{"toml", "yaml", "yml", "json"}

func main() {
	confPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	if err := run(*confPath); err != nil {
		logger.New(slog.LevelError).Error("coordserve service failed", logger.Err(err))
		os.Exit(1)
	}
}

func run(confPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGABRT, os.Interrupt)
	defer cancel()

	conf, err := loadConfig(confPath)
	if err != nil {
		return err
	}
	log := logger.New(conf.LogLevel)

	serv, err := service.New(conf, log)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	log.Info("starting coordserve service", slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date),
		slog.String("producer", conf.Producer.Mode))
	if err = serv.Run(ctx); err != nil {
		return err
	}
	log.Info("shutting down coordserve service")
	return nil
}

// loadConfig reads the file given on the command line, falls back to the per-user config file
// and otherwise uses defaults and environment only.
func loadConfig(confPath string) (*config.Config, error) {
	path, file := filepath.Dir(confPath), filepath.Base(confPath)
	if confPath == "" {
		path, file = findConfigFile()
	}
	if file == "" {
		conf, err := config.New()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return conf, nil
	}

	conf, err := config.NewFromFile(path, file)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", filepath.Join(path, file), err)
	}
	return conf, nil
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	dir := filepath.Join(homedir, ".config", "coordserve")
	for _, ext := range configExtensions {
		if _, err = os.Stat(filepath.Join(dir, "config."+ext)); err == nil {
			return dir, "config." + ext
		}
	}
	return "", ""
}
