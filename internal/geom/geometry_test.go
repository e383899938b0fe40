/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import (
	"math"
	"testing"
)

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
}

func TestRectAroundCenter(t *testing.T) {
	r := RectAround(Pt{100, 100}, Size{200, 100})
	if r.X != 0 || r.Y != 50 || r.W != 200 || r.H != 100 {
		t.Fatalf("unexpected rect: %+v", r)
	}
	if c := r.Center(); c != (Pt{100, 100}) {
		t.Fatalf("center mismatch: %+v", c)
	}
}

func TestUnionIgnoresEmpty(t *testing.T) {
	a := R(0, 0, 10, 10)
	if u := (Rect{}).Union(a); u != a {
		t.Fatalf("union with empty: %+v", u)
	}
	u := a.Union(R(20, -5, 5, 5))
	if u.X != 0 || u.Y != -5 || u.W != 25 || u.H != 15 {
		t.Fatalf("unexpected union: %+v", u)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
}

func TestAffineInvertRoundTrip(t *testing.T) {
	m := Translate(-40, 12).Mul(Scale(0.5, 0.5))
	inv, ok := m.Invert()
	if !ok {
		t.Fatalf("expected invertible")
	}
	p := Pt{123.5, -77}
	q := inv.Apply(m.Apply(p))
	if math.Abs(q.X-p.X) > 1e-9 || math.Abs(q.Y-p.Y) > 1e-9 {
		t.Fatalf("round trip drift: %+v vs %+v", q, p)
	}
	if _, ok := Scale(0, 1).Invert(); ok {
		t.Fatalf("singular matrix reported invertible")
	}
}

func TestDistAndClamp(t *testing.T) {
	if d := (Pt{0, 0}).Dist(Pt{3, 4}); d != 5 {
		t.Fatalf("dist = %v", d)
	}
	if Clamp(7, 0, 5) != 5 || Clamp(-1, 0, 5) != 0 || Clamp(2, 0, 5) != 2 {
		t.Fatalf("clamp mismatch")
	}
	if FloatRound(1.23456, 2) != 1.23 {
		t.Fatalf("round mismatch: %v", FloatRound(1.23456, 2))
	}
}
