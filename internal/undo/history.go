/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package undo keeps a bounded LIFO of board snapshots.
package undo

import (
	"sync"
	"time"

	"muralsynth/internal/canvas"
)

const (
	// DefaultCapacity is the number of snapshots kept when Config.Capacity is unset.
	DefaultCapacity = 20
	// DefaultMaxBytes caps the summed snapshot payload when Config.MaxBytes is unset.
	DefaultMaxBytes = 256 * 1024 * 1024 // 256 MiB
)

// Snapshot is a deep copy of the board's items captured before a mutation.
// TS is when the snapshot was captured.
type Snapshot struct {
	Items []canvas.Placeable
	Bytes int
	TS    time.Time
}

// Config controls depth and memory caps.
type Config struct {
	// Capacity is the maximum number of snapshots; the oldest is evicted beyond it.
	Capacity int
	// MaxBytes is a soft cap on the summed image payload of all snapshots. The
	// newest snapshot is always kept even if it alone exceeds the cap.
	MaxBytes int
}

// History is a bounded undo stack. It is safe for concurrent use and
// satisfies canvas.History.
type History struct {
	cfg Config
	mu  sync.Mutex

	stack      []Snapshot
	totalBytes int
	now        func() time.Time
}

func NewHistory(cfg Config) *History {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &History{cfg: cfg, now: time.Now}
}

// Push records a deep copy of items.
func (h *History) Push(items []canvas.Placeable) {
	s := Snapshot{Items: make([]canvas.Placeable, len(items)), TS: h.now()}
	for i, p := range items {
		s.Items[i] = p.Clone()
		s.Bytes += p.ByteSize()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, s)
	h.totalBytes += s.Bytes
	h.enforceCapsLocked()
}

// Pop removes and returns the most recent snapshot's items.
func (h *History) Pop() ([]canvas.Placeable, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.stack)
	if n == 0 {
		return nil, false
	}
	s := h.stack[n-1]
	h.stack[n-1] = Snapshot{}
	h.stack = h.stack[:n-1]
	h.totalBytes -= s.Bytes
	return s.Items, true
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}

// Clear drops every snapshot to free memory.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = nil
	h.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (h *History) Stats() (totalBytes int, snapshots int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalBytes, len(h.stack)
}

func (h *History) enforceCapsLocked() {
	drop := 0
	if over := len(h.stack) - h.cfg.Capacity; over > 0 {
		drop = over
	}
	bytes := h.totalBytes
	for i := 0; i < drop; i++ {
		bytes -= h.stack[i].Bytes
	}
	// keep at least the newest snapshot
	for bytes > h.cfg.MaxBytes && drop < len(h.stack)-1 {
		bytes -= h.stack[drop].Bytes
		drop++
	}
	if drop == 0 {
		return
	}
	h.stack = append([]Snapshot(nil), h.stack[drop:]...)
	h.totalBytes = bytes
}
