/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"testing"

	"muralsynth/internal/geom"
	"muralsynth/internal/viewport"
)

func TestSnapRectEdgesAndCenters(t *testing.T) {
	anchor := geom.R(0, 0, 100, 100)

	// left edge 3 units right of the anchor's right edge: abut
	got, guides := SnapRect(geom.R(103, 40, 50, 50), []geom.Rect{anchor}, 6)
	if got.X != 100 {
		t.Fatalf("x = %v, want 100", got.X)
	}
	if len(guides) != 1 || !guides[0].Vertical || guides[0].Position != 100 {
		t.Fatalf("guides = %+v", guides)
	}

	// center within threshold on Y
	got, guides = SnapRect(geom.R(300, 42, 20, 10), []geom.Rect{anchor}, 6)
	if got.Y != 45 || got.X != 300 {
		t.Fatalf("rect = %+v, want y 45", got)
	}
	if len(guides) != 1 || guides[0].Vertical || !guides[0].Center {
		t.Fatalf("guides = %+v", guides)
	}
}

func TestSnapRectOutsideThreshold(t *testing.T) {
	r := geom.R(110, 130, 20, 20)
	got, guides := SnapRect(r, []geom.Rect{geom.R(0, 0, 100, 100)}, 6)
	if got != r || guides != nil {
		t.Fatalf("unexpected snap: %+v %+v", got, guides)
	}
	if got, _ := SnapRect(r, nil, 6); got != r {
		t.Fatalf("no anchors must not move the rect")
	}
}

func TestSnapRectPrefersClosest(t *testing.T) {
	others := []geom.Rect{geom.R(0, 500, 100, 10), geom.R(0, 800, 104, 10)}
	got, _ := SnapRect(geom.R(105, 0, 10, 10), others, 6)
	if got.X != 104 {
		t.Fatalf("x = %v, want 104", got.X)
	}
}

func TestGestureMoveSnapsInScreenPixels(t *testing.T) {
	b := NewBoard(nil)
	b.Add(Placeable{ID: "a", Size: geom.Size{W: 100, H: 100}, Image: []byte{1}})
	b.Add(Placeable{ID: "b", Pos: geom.Pt{X: 200, Y: 0}, Size: geom.Size{W: 50, H: 50}, Image: []byte{1}})
	v := viewport.New(0, 0)
	v.ZoomAt(geom.Pt{}, 2)
	g := NewGesture(b, v)
	g.SnapThreshold = 8 // 4 canvas units at scale 2

	g.PointerDown(geom.Pt{X: 410, Y: 10}, "b", false)
	// 97 canvas units left leaves b 3 units from abutting a
	g.PointerMove(geom.Pt{X: 216, Y: 10})
	p, _ := b.Get("b")
	if p.Pos.X != 100 || p.Pos.Y != 0 {
		t.Fatalf("pos = %+v, want (100,0)", p.Pos)
	}
	if len(g.Guides()) == 0 {
		t.Fatalf("expected guides while snapped")
	}
	g.PointerUp()
	if g.Guides() != nil {
		t.Fatalf("guides should clear on pointer up")
	}
}
