// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package logger

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	l := New(slog.LevelInfo)
	if l == nil {
		t.Fatal("expected logger to be non-nil")
	}
	if l.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("expected debug records to be disabled at info level")
	}
}

func TestNewLogger(t *testing.T) {
	levels := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
	for _, configured := range levels {
		t.Run(configured.String(), func(t *testing.T) {
			buf := bytes.NewBuffer(nil)
			l := NewLogger(configured, buf)
			for _, level := range levels {
				l.Log(t.Context(), level, "record", slog.String("at", level.String()))
			}

			for _, level := range levels {
				logged := strings.Contains(buf.String(), fmt.Sprintf("at=%s", level))
				if want := level >= configured; logged != want {
					t.Errorf("expected %s record logged to be %t at level %s, output: %s", level, want,
						configured, buf.String())
				}
			}
		})
	}
}

func TestNewLogger_text(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	l := NewLogger(slog.LevelInfo, buf)
	l.Info("serial position updated", slog.String("lat", "49.8174252"), slog.String("lon", "24.0246498"))

	line := buf.String()
	if !strings.Contains(line, `msg="serial position updated"`) {
		t.Errorf("expected message in text output, got: %s", line)
	}
	if !strings.Contains(line, "lat=49.8174252 lon=24.0246498") {
		t.Errorf("expected coordinates to be logged verbatim, got: %s", line)
	}
}

func TestErr(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	l := NewLogger(slog.LevelDebug, buf)
	err := fmt.Errorf("device discovery failed: %w", errors.New("no such file or directory"))
	l.Error("could not open device", Err(err))

	want := `error="device discovery failed: no such file or directory"`
	if !strings.Contains(buf.String(), want) {
		t.Errorf("expected output to contain %s, got: %s", want, buf.String())
	}
}
