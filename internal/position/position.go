// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package position holds the single shared position record that producers write and the HTTP
// query service reads.
package position

import (
	"encoding/json"
	"sync"
	"time"
)

// TimestampFormat is the wall-clock layout used when a record is serialized.
const TimestampFormat = "15:04:05"

// Record is a point-in-time snapshot of the last known position.
type Record struct {
	Latitude  float64
	Longitude float64
	// At is zero until the first update
	At time.Time
	// Raw is the last chunk received from a device, kept for diagnostics only
	Raw string
}

type recordJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp *string `json:"timestamp"`
	Raw       string  `json:"raw,omitempty"`
}

// HasTimestamp reports whether the record has been updated at least once.
func (r Record) HasTimestamp() bool {
	return !r.At.IsZero()
}

// Timestamp returns the formatted update time, or an empty string if the record was never updated.
func (r Record) Timestamp() string {
	if !r.HasTimestamp() {
		return ""
	}
	return r.At.Format(TimestampFormat)
}

// MarshalJSON implements json.Marshaler. An unset timestamp is encoded as null.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Raw:       r.Raw,
	}
	if r.HasTimestamp() {
		ts := r.Timestamp()
		out.Timestamp = &ts
	}
	return json.Marshal(out)
}

// State guards the shared Record. A single producer writes to it while any number of readers
// take snapshots concurrently. Every write replaces its field group under the same lock, so a
// reader never observes fields of two different writes.
type State struct {
	mu     sync.RWMutex
	record Record
}

// New returns a State holding the given default coordinates and an unset timestamp.
func New(latitude, longitude float64) *State {
	return &State{record: Record{Latitude: latitude, Longitude: longitude}}
}

// Write replaces the coordinates and the update time.
func (s *State) Write(latitude, longitude float64, at time.Time) {
	s.mu.Lock()
	s.record.Latitude = latitude
	s.record.Longitude = longitude
	s.record.At = at
	s.mu.Unlock()
}

// WriteRaw replaces the raw diagnostic data and the update time, leaving the coordinates untouched.
func (s *State) WriteRaw(raw string, at time.Time) {
	s.mu.Lock()
	s.record.Raw = raw
	s.record.At = at
	s.mu.Unlock()
}

// Read returns a consistent snapshot of the current record.
func (s *State) Read() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}
