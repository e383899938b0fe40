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

func TestSelectionSingleAndMulti(t *testing.T) {
	s := NewSelection()
	s.Select("a", false)
	s.Select("b", false)
	if s.Len() != 1 || !s.Has("b") {
		t.Fatalf("single select should replace: %v", s.IDs())
	}
	s.Select("c", true)
	s.Select("a", true)
	if got := s.IDs(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("multi select: %v", got)
	}
	s.Select("c", true)
	if s.Has("c") {
		t.Fatalf("multi select should toggle off")
	}
	s.Prune(func(id string) bool { return id != "a" })
	if got := s.IDs(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("prune: %v", got)
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("clear failed")
	}
}

func TestGestureMoveUsesCanvasUnits(t *testing.T) {
	b := NewBoard(nil)
	b.Add(Placeable{ID: "a", Pos: geom.Pt{X: 10, Y: 10}, Size: geom.Size{W: 50, H: 50}, Image: []byte{1}})
	b.Add(Placeable{ID: "b", Size: geom.Size{W: 50, H: 50}, Image: []byte{1}})
	v := viewport.New(0, 0)
	v.ZoomAt(geom.Pt{}, 2)

	g := NewGesture(b, v)
	if m := g.PointerDown(geom.Pt{X: 40, Y: 40}, "a", false); m != GestureMove {
		t.Fatalf("mode = %v", m)
	}
	if items := b.Items(); items[len(items)-1].ID != "a" {
		t.Fatalf("drag target should be brought to front")
	}
	g.PointerMove(geom.Pt{X: 60, Y: 30})
	g.PointerMove(geom.Pt{X: 80, Y: 20})
	if m := g.PointerUp(); m != GestureMove {
		t.Fatalf("pointer up mode = %v", m)
	}
	p, _ := b.Get("a")
	// 40px right and 20px up at scale 2 is 20 and -10 canvas units
	if p.Pos != (geom.Pt{X: 30, Y: 0}) {
		t.Fatalf("moved to %+v", p.Pos)
	}
}

func TestGestureResizeClampsMinimum(t *testing.T) {
	b := NewBoard(nil)
	b.Add(Placeable{ID: "a", Size: geom.Size{W: 100, H: 80}, Image: []byte{1}})
	v := viewport.New(0, 0)
	g := NewGesture(b, v)
	g.PointerDown(geom.Pt{X: 100, Y: 80}, "a", true)
	g.PointerMove(geom.Pt{X: 150, Y: 90})
	p, _ := b.Get("a")
	if p.Size != (geom.Size{W: 150, H: 90}) {
		t.Fatalf("resize = %+v", p.Size)
	}
	g.PointerMove(geom.Pt{X: -500, Y: -500})
	p, _ = b.Get("a")
	if p.Size.W != MinItemSize || p.Size.H != MinItemSize {
		t.Fatalf("resize not clamped: %+v", p.Size)
	}
	g.PointerUp()
}

func TestGesturePanAndDeletedTarget(t *testing.T) {
	b := NewBoard(nil)
	b.Add(Placeable{ID: "a", Size: geom.Size{W: 10, H: 10}, Image: []byte{1}})
	v := viewport.New(0, 0)
	g := NewGesture(b, v)
	g.PointerDown(geom.Pt{X: 0, Y: 0}, "", false)
	g.PointerMove(geom.Pt{X: 5, Y: 7})
	g.PointerMove(geom.Pt{X: 15, Y: 7})
	g.PointerUp()
	if v.OffsetX != 15 || v.OffsetY != 7 {
		t.Fatalf("pan offset = %v,%v", v.OffsetX, v.OffsetY)
	}

	g.PointerDown(geom.Pt{X: 20, Y: 10}, "a", false)
	b.Discard("a")
	g.PointerMove(geom.Pt{X: 30, Y: 30})
	if g.Mode() != GestureNone {
		t.Fatalf("gesture should end when its target disappears")
	}
}
