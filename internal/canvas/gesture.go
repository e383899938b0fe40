/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"math"

	"muralsynth/internal/geom"
	"muralsynth/internal/viewport"
)

// GestureMode is the kind of pointer drag in progress.
type GestureMode int

const (
	GestureNone GestureMode = iota
	GesturePan
	GestureMove
	GestureResize
)

func (m GestureMode) String() string {
	switch m {
	case GesturePan:
		return "pan"
	case GestureMove:
		return "move"
	case GestureResize:
		return "resize"
	default:
		return "none"
	}
}

// Gesture turns pointer events into viewport pans or item moves and resizes.
// Positions are computed from the pointer-down anchor, so repeated moves do
// not accumulate rounding drift. Gestures never record undo snapshots.
type Gesture struct {
	board *Board
	view  *viewport.Transform

	// SnapThreshold is the snapping distance in screen pixels for moves; 0 disables snapping.
	SnapThreshold float64

	mode        GestureMode
	target      string
	lastScreen  geom.Pt
	startCanvas geom.Pt
	startRect   geom.Rect
	guides      []Guide
}

func NewGesture(b *Board, v *viewport.Transform) *Gesture {
	return &Gesture{board: b, view: v}
}

func (g *Gesture) Mode() GestureMode { return g.mode }
func (g *Gesture) Target() string    { return g.target }

// PointerDown starts a gesture. An empty hit pans the view; otherwise the item
// is brought to front and moved, or resized when onHandle is set.
func (g *Gesture) PointerDown(screen geom.Pt, hit string, onHandle bool) GestureMode {
	g.lastScreen = screen
	g.target = ""
	if hit == "" {
		g.mode = GesturePan
		return g.mode
	}
	p, ok := g.board.Get(hit)
	if !ok {
		g.mode = GesturePan
		return g.mode
	}
	g.board.BringToFront(hit)
	g.target = hit
	g.startCanvas = g.view.ToCanvas(screen)
	g.startRect = p.Rect()
	if onHandle {
		g.mode = GestureResize
	} else {
		g.mode = GestureMove
	}
	return g.mode
}

// PointerMove applies the drag. A target deleted mid-gesture ends the gesture.
func (g *Gesture) PointerMove(screen geom.Pt) {
	switch g.mode {
	case GesturePan:
		g.view.Pan(screen.X-g.lastScreen.X, screen.Y-g.lastScreen.Y)
	case GestureMove:
		d := g.view.ToCanvas(screen).Sub(g.startCanvas)
		r := g.startRect
		r.X, r.Y = r.X+d.X, r.Y+d.Y
		if g.SnapThreshold > 0 {
			r, g.guides = SnapRect(r, g.board.Rects(g.target), g.SnapThreshold/g.view.Scale)
		}
		if !g.board.Move(g.target, r.Min()) {
			g.reset()
		}
	case GestureResize:
		d := g.view.ToCanvas(screen).Sub(g.startCanvas)
		sz := geom.Size{
			W: math.Max(MinItemSize, g.startRect.W+d.X),
			H: math.Max(MinItemSize, g.startRect.H+d.Y),
		}
		if !g.board.Resize(g.target, sz) {
			g.reset()
		}
	}
	g.lastScreen = screen
}

// PointerUp ends the gesture and returns the mode that was active.
func (g *Gesture) PointerUp() GestureMode {
	m := g.mode
	g.reset()
	return m
}

// Guides returns the alignment guides of the last snapped move.
func (g *Gesture) Guides() []Guide { return g.guides }

func (g *Gesture) reset() {
	g.mode = GestureNone
	g.target = ""
	g.guides = nil
}
