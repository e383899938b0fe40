/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

// Snapping for dragged items. Edges and centers of the moving rectangle snap to
// those of nearby items, independently on each axis.

import (
	"math"

	"muralsynth/internal/geom"
)

// Guide is an alignment line found while snapping. Vertical guides have a
// fixed X at Position; horizontal guides a fixed Y. From and To span both rects.
type Guide struct {
	Vertical bool
	Center   bool
	Position float64
	From     geom.Pt
	To       geom.Pt
}

type snapCandidate struct {
	delta float64
	dist  float64
	guide Guide
}

// SnapRect moves r by at most threshold on each axis so that one of its edges
// or its center lines up with an edge or center of another rectangle. Abutting
// edges (right to left) count. The closest candidate wins per axis; ties keep
// the first rectangle in others.
func SnapRect(r geom.Rect, others []geom.Rect, threshold float64) (geom.Rect, []Guide) {
	if !(threshold > 0) || len(others) == 0 {
		return r, nil
	}
	bestX := snapCandidate{dist: math.Inf(1)}
	bestY := snapCandidate{dist: math.Inf(1)}
	mx := [3]float64{r.X, r.X + r.W/2, r.X + r.W}
	my := [3]float64{r.Y, r.Y + r.H/2, r.Y + r.H}

	for _, o := range others {
		ox := [3]float64{o.X, o.X + o.W/2, o.X + o.W}
		oy := [3]float64{o.Y, o.Y + o.H/2, o.Y + o.H}
		for i, m := range mx {
			for j, a := range ox {
				// centers only align with centers
				if (i == 1) != (j == 1) {
					continue
				}
				consider(&bestX, m-a, threshold, verticalGuide(a, r, o, i == 1))
			}
		}
		for i, m := range my {
			for j, a := range oy {
				if (i == 1) != (j == 1) {
					continue
				}
				consider(&bestY, m-a, threshold, horizontalGuide(a, r, o, i == 1))
			}
		}
	}

	var guides []Guide
	if bestX.dist <= threshold {
		r.X = geom.FloatRound(r.X-bestX.delta, 3)
		guides = append(guides, bestX.guide)
	}
	if bestY.dist <= threshold {
		r.Y = geom.FloatRound(r.Y-bestY.delta, 3)
		guides = append(guides, bestY.guide)
	}
	return r, guides
}

func consider(best *snapCandidate, delta, threshold float64, g Guide) {
	d := math.Abs(delta)
	if d > threshold || d >= best.dist {
		return
	}
	*best = snapCandidate{delta: delta, dist: d, guide: g}
}

func verticalGuide(x float64, a, b geom.Rect, center bool) Guide {
	x = geom.FloatRound(x, 3)
	return Guide{
		Vertical: true,
		Center:   center,
		Position: x,
		From:     geom.Pt{X: x, Y: math.Min(a.Y, b.Y)},
		To:       geom.Pt{X: x, Y: math.Max(a.Y+a.H, b.Y+b.H)},
	}
}

func horizontalGuide(y float64, a, b geom.Rect, center bool) Guide {
	y = geom.FloatRound(y, 3)
	return Guide{
		Center:   center,
		Position: y,
		From:     geom.Pt{X: math.Min(a.X, b.X), Y: y},
		To:       geom.Pt{X: math.Max(a.X+a.W, b.X+b.W), Y: y},
	}
}
