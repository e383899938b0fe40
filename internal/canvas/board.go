/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"slices"
	"sync"

	"muralsynth/internal/geom"
)

// History receives pre-mutation snapshots. Implementations must deep-copy on Push.
type History interface {
	Push(items []Placeable)
	Pop() ([]Placeable, bool)
	Len() int
	Clear()
}

// Board is the shared, ordered collection of placeables. Slice order is paint
// order (back to front). All methods are safe for concurrent use; each mutation
// is a single read-modify-write under the board lock.
type Board struct {
	mu       sync.RWMutex
	items    []Placeable
	settings Settings
	history  History
}

// NewBoard returns an empty board. A nil history disables undo.
func NewBoard(h History) *Board { return &Board{history: h} }

// Items returns a copy of the items in paint order.
func (b *Board) Items() []Placeable {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.items)
}

// Rects returns the rectangles of all items except the one with id except.
func (b *Board) Rects(except string) []geom.Rect {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]geom.Rect, 0, len(b.items))
	for _, p := range b.items {
		if p.ID != except {
			out = append(out, p.Rect())
		}
	}
	return out
}

func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

func (b *Board) Get(id string) (Placeable, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := b.indexLocked(id); i >= 0 {
		return b.items[i], true
	}
	return Placeable{}, false
}

func (b *Board) Settings() Settings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings
}

func (b *Board) SetSettings(s Settings) {
	b.mu.Lock()
	b.settings = s
	b.mu.Unlock()
}

// Update runs fn under the board lock and installs the returned slice.
// fn must not retain items. No undo snapshot is taken.
func (b *Board) Update(fn func(items []Placeable) []Placeable) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = fn(b.items)
}

// Add appends p on top after recording an undo snapshot. An empty id is assigned.
func (b *Board) Add(p Placeable) (string, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.indexLocked(p.ID) >= 0 {
		return "", ErrDuplicateID
	}
	b.snapshotLocked()
	b.items = append(b.items, p)
	return p.ID, nil
}

// Remove deletes one item after recording an undo snapshot.
func (b *Board) Remove(id string) bool { return b.RemoveMany([]string{id}) == 1 }

// RemoveMany deletes the given items under a single undo snapshot and returns how many existed.
func (b *Board) RemoveMany(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.items {
		if _, ok := drop[p.ID]; ok {
			n++
		}
	}
	if n == 0 {
		return 0
	}
	b.snapshotLocked()
	b.items = slices.DeleteFunc(b.items, func(p Placeable) bool {
		_, ok := drop[p.ID]
		return ok
	})
	return n
}

// Discard removes an item without touching undo history. Used to roll back
// a pending placeholder.
func (b *Board) Discard(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return false
	}
	b.items = slices.Delete(b.items, i, i+1)
	return true
}

// Move sets the top-left corner of an item.
func (b *Board) Move(id string, pos geom.Pt) bool {
	return b.mutate(id, func(p *Placeable) { p.Pos = pos })
}

// Resize sets the size of an item. Non-positive sizes are rejected.
func (b *Board) Resize(id string, size geom.Size) bool {
	if !(size.W > 0) || !(size.H > 0) {
		return false
	}
	return b.mutate(id, func(p *Placeable) { p.Size = size })
}

// Reconcile applies fn to the item with the given id if it still exists.
func (b *Board) Reconcile(id string, fn func(p *Placeable)) bool { return b.mutate(id, fn) }

func (b *Board) mutate(id string, fn func(p *Placeable)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return false
	}
	fn(&b.items[i])
	return true
}

// BringToFront moves an item to the end of the paint order. Idempotent.
func (b *Board) BringToFront(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return false
	}
	if i == len(b.items)-1 {
		return true
	}
	p := b.items[i]
	b.items = append(slices.Delete(b.items, i, i+1), p)
	return true
}

// SetInfluence writes the last computed score onto idle items; unscored idle items get 0.
func (b *Board) SetInfluence(scores map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].State != Idle {
			continue
		}
		b.items[i].Influence = scores[b.items[i].ID]
	}
}

// HitTest returns the topmost item containing pt. onHandle reports whether pt lies
// within handle canvas units of the item's bottom-right corner.
func (b *Board) HitTest(pt geom.Pt, handle float64) (id string, onHandle bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := len(b.items) - 1; i >= 0; i-- {
		r := b.items[i].Rect()
		if handle > 0 {
			br := r.Max()
			if pt.X >= br.X-handle && pt.X <= br.X+handle && pt.Y >= br.Y-handle && pt.Y <= br.Y+handle {
				return b.items[i].ID, true
			}
		}
		if r.Contains(pt) {
			return b.items[i].ID, false
		}
	}
	return "", false
}

// Bounds is the union of all item rectangles.
func (b *Board) Bounds() geom.Rect {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var r geom.Rect
	for _, p := range b.items {
		r = r.Union(p.Rect())
	}
	return r
}

// Snapshot records the current items into the undo history. Pending
// placeholders are kept as markers so a later undo can tell which live items
// came from a synthesis that was in flight when the snapshot was taken.
func (b *Board) Snapshot() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshotLocked()
}

func (b *Board) snapshotLocked() {
	if b.history == nil {
		return
	}
	b.history.Push(b.items)
}

// Undo restores the most recent snapshot. The idle items of the snapshot come
// first. They are followed, in their current order, by live items that are
// still pending or that were pending when the snapshot was taken, so a
// synthesis result that landed after the snapshot survives the undo.
// Snapshots whose restore would leave the layout unchanged, such as the one
// taken when a still pending placeholder was inserted, are skipped.
func (b *Board) Undo() bool {
	if b.history == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		restored, ok := b.history.Pop()
		if !ok {
			return false
		}
		next := b.restoreLocked(restored)
		if sameLayout(next, b.items) {
			continue
		}
		b.items = next
		return true
	}
}

func (b *Board) restoreLocked(restored []Placeable) []Placeable {
	inFlight := make(map[string]bool)
	next := make([]Placeable, 0, len(restored)+1)
	for _, p := range restored {
		switch p.State {
		case Idle:
			next = append(next, p)
		case Pending:
			inFlight[p.ID] = true
		}
	}
	for _, p := range b.items {
		if p.State == Pending || inFlight[p.ID] {
			next = append(next, p)
		}
	}
	return next
}

// CanUndo reports whether a snapshot is available.
func (b *Board) CanUndo() bool { return b.history != nil && b.history.Len() > 0 }

// Persistable returns the idle items and settings. Pending placeholders are transient.
func (b *Board) Persistable() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := Snapshot{Version: SnapshotVersion, Settings: b.settings}
	for _, p := range idleOnly(b.items) {
		out.Placeables = append(out.Placeables, p.Clone())
	}
	return out
}

// Load replaces the board content with s and clears undo history.
func (b *Board) Load(s Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	items := make([]Placeable, 0, len(s.Placeables))
	for _, p := range s.Placeables {
		if p.State == Pending {
			continue
		}
		items = append(items, p.Clone())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = items
	b.settings = s.Settings
	if b.history != nil {
		b.history.Clear()
	}
	return nil
}

func (b *Board) indexLocked(id string) int {
	return slices.IndexFunc(b.items, func(p Placeable) bool { return p.ID == id })
}

// sameLayout reports whether a and c hold the same ids in the same order with
// the same geometry.
func sameLayout(a, c []Placeable) bool {
	if len(a) != len(c) {
		return false
	}
	for i := range a {
		if a[i].ID != c[i].ID || a[i].Pos != c[i].Pos || a[i].Size != c[i].Size {
			return false
		}
	}
	return true
}

func idleOnly(items []Placeable) []Placeable {
	out := make([]Placeable, 0, len(items))
	for _, p := range items {
		if p.State == Idle {
			out = append(out, p)
		}
	}
	return out
}
