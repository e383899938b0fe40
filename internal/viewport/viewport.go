/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewport maps between screen pixels and logical canvas units.
//
// The mapping is canvas = (screen - offset) / scale. Offset is kept in screen
// units so panning never depends on the current zoom level.
package viewport

import (
	"math"

	"muralsynth/internal/geom"
)

const (
	DefaultMinScale = 0.05
	DefaultMaxScale = 5.0
)

// Transform is the pan/zoom state of a view onto the canvas.
type Transform struct {
	OffsetX, OffsetY float64
	Scale            float64
	MinScale         float64
	MaxScale         float64
}

// New returns an identity transform with the given zoom bounds. Non-positive
// bounds fall back to the defaults and swapped bounds are reordered.
func New(minScale, maxScale float64) *Transform {
	if !(minScale > 0) || math.IsInf(minScale, 0) {
		minScale = DefaultMinScale
	}
	if !(maxScale > 0) || math.IsInf(maxScale, 0) {
		maxScale = DefaultMaxScale
	}
	if minScale > maxScale {
		minScale, maxScale = maxScale, minScale
	}
	t := &Transform{Scale: 1, MinScale: minScale, MaxScale: maxScale}
	t.Scale = t.Clamp(1)
	return t
}

// Clamp limits s to the zoom bounds. NaN keeps the current scale.
func (t *Transform) Clamp(s float64) float64 {
	if math.IsNaN(s) {
		if t.Scale > 0 {
			return t.Scale
		}
		return geom.Clamp(1, t.MinScale, t.MaxScale)
	}
	return geom.Clamp(s, t.MinScale, t.MaxScale)
}

// ToCanvas converts a screen point to canvas units.
func (t *Transform) ToCanvas(screen geom.Pt) geom.Pt {
	return geom.Pt{
		X: (screen.X - t.OffsetX) / t.Scale,
		Y: (screen.Y - t.OffsetY) / t.Scale,
	}
}

// ToScreen converts a canvas point to screen pixels.
func (t *Transform) ToScreen(c geom.Pt) geom.Pt {
	return geom.Pt{
		X: c.X*t.Scale + t.OffsetX,
		Y: c.Y*t.Scale + t.OffsetY,
	}
}

// DeltaToCanvas converts a screen-space drag delta to canvas units.
func (t *Transform) DeltaToCanvas(dx, dy float64) (float64, float64) {
	return dx / t.Scale, dy / t.Scale
}

// Pan shifts the view by a screen-space delta.
func (t *Transform) Pan(dx, dy float64) {
	if math.IsNaN(dx) || math.IsNaN(dy) {
		return
	}
	t.OffsetX += dx
	t.OffsetY += dy
}

// ZoomAt sets the scale while keeping the canvas point under anchor fixed on screen.
func (t *Transform) ZoomAt(anchor geom.Pt, newScale float64) {
	s0 := t.Scale
	s1 := t.Clamp(newScale)
	if s1 == s0 {
		return
	}
	k := s1 / s0
	t.OffsetX = anchor.X - (anchor.X-t.OffsetX)*k
	t.OffsetY = anchor.Y - (anchor.Y-t.OffsetY)*k
	t.Scale = s1
}

// ZoomBy multiplies the scale by factor around anchor (mouse wheel).
func (t *Transform) ZoomBy(anchor geom.Pt, factor float64) {
	if !(factor > 0) {
		return
	}
	t.ZoomAt(anchor, t.Scale*factor)
}

// Matrix returns the canvas-to-screen transform.
func (t *Transform) Matrix() geom.Affine2D {
	return geom.Translate(t.OffsetX, t.OffsetY).Mul(geom.Scale(t.Scale, t.Scale))
}

// Visible returns the canvas rectangle shown in a screen of w by h pixels.
func (t *Transform) Visible(w, h float64) geom.Rect {
	tl := t.ToCanvas(geom.Pt{})
	return geom.Rect{X: tl.X, Y: tl.Y, W: w / t.Scale, H: h / t.Scale}
}

// Reset returns to the identity view.
func (t *Transform) Reset() {
	t.OffsetX, t.OffsetY = 0, 0
	t.Scale = t.Clamp(1)
}
