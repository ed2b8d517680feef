// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package usbserial

import "strings"

// lineBuffer accumulates device output and hands out complete lines. The unterminated tail is
// bounded: once it grows past limit only the last keep bytes are retained.
type lineBuffer struct {
	data  string
	limit int
	keep  int
}

func newLineBuffer(limit, keep int) *lineBuffer {
	return &lineBuffer{limit: limit, keep: keep}
}

func (b *lineBuffer) Write(chunk string) {
	b.data += chunk
}

// Lines removes and returns all complete lines, without their line terminators.
func (b *lineBuffer) Lines() []string {
	idx := strings.LastIndexByte(b.data, '\n')
	if idx == -1 {
		return nil
	}
	complete := b.data[:idx]
	b.data = b.data[idx+1:]

	lines := strings.Split(complete, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return lines
}

// Truncate drops all but the most recent keep bytes once the buffer exceeds its limit.
func (b *lineBuffer) Truncate() {
	if len(b.data) > b.limit {
		b.data = b.data[len(b.data)-b.keep:]
	}
}

func (b *lineBuffer) Len() int {
	return len(b.data)
}
