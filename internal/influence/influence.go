/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package influence scores how strongly each image on a board should shape a
// synthesis at a target location. Scores combine an area term with a linear
// proximity falloff; percentages are each item's share of the summed raw weight.
package influence

import (
	"math"
	"sort"

	"muralsynth/internal/canvas"
	"muralsynth/internal/geom"
)

const (
	AreaNormalization = 40000.0
	MinSizeScore      = 1.0
	MaxSizeScore      = 5.0
	ScoreScale        = 2.0
	MaxScore          = 10.0
)

// SizeScore maps an item's area to [1, 5].
func SizeScore(w, h float64) float64 {
	return geom.Clamp(w*h/AreaNormalization, MinSizeScore, MaxSizeScore)
}

// ProximityWeight falls off linearly from 1 at distance 0 to 0 at radius.
func ProximityWeight(d, radius float64) float64 {
	if !(radius > 0) || !(d < radius) {
		return 0
	}
	if d < 0 {
		d = 0
	}
	return 1 - d/radius
}

// CombinedScore is the bounded 0..10 score shown to users and sent to the prompt model.
func CombinedScore(size, prox float64) float64 {
	return geom.Clamp(size*prox*ScoreScale, 0, MaxScore)
}

// DisplayScore rounds a combined score to the nearest integer.
func DisplayScore(combined float64) int { return int(math.Round(combined)) }

// RawWeight is the unscaled weight used for percentage allocation.
func RawWeight(size, prox float64) float64 { return size * prox }

// Entry is one contributing item.
type Entry struct {
	ID       string
	Index    int // position in the scored collection
	Image    []byte
	MimeType string
	Distance float64
	Size     float64
	Prox     float64
	Combined float64
	Raw      float64
	Percent  int
}

// Display is the rounded combined score.
func (e Entry) Display() int { return DisplayScore(e.Combined) }

// Field is the result of scoring a collection against a target.
type Field struct {
	Target  geom.Rect
	Radius  float64
	Entries []Entry // collection order
	Total   float64 // sum of raw weights
}

// Empty reports whether nothing contributes.
func (f Field) Empty() bool { return len(f.Entries) == 0 }

// Contributors returns entries by descending percent, ties in collection order.
func (f Field) Contributors() []Entry {
	out := append([]Entry(nil), f.Entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percent > out[j].Percent })
	return out
}

// Scores maps item id to combined score for every contributor.
func (f Field) Scores() map[string]float64 {
	m := make(map[string]float64, len(f.Entries))
	for _, e := range f.Entries {
		m[e.ID] = e.Combined
	}
	return m
}

// Score evaluates every idle item carrying image data. Items whose combined
// score is 0 are dropped. Percentages are allocated by largest remainder and
// always sum to exactly 100.
func Score(items []canvas.Placeable, target geom.Rect, radius float64) Field {
	f := Field{Target: target, Radius: radius}
	tc := target.Center()
	for i, p := range items {
		if p.State != canvas.Idle || !p.HasImage() {
			continue
		}
		d := p.Center().Dist(tc)
		size := SizeScore(p.Size.W, p.Size.H)
		prox := ProximityWeight(d, radius)
		combined := CombinedScore(size, prox)
		if combined <= 0 {
			continue
		}
		e := Entry{
			ID:       p.ID,
			Index:    i,
			Image:    p.Image,
			MimeType: p.MimeType,
			Distance: d,
			Size:     size,
			Prox:     prox,
			Combined: combined,
			Raw:      RawWeight(size, prox),
		}
		f.Total += e.Raw
		f.Entries = append(f.Entries, e)
	}
	if f.Total > 0 {
		raw := make([]float64, len(f.Entries))
		for i, e := range f.Entries {
			raw[i] = e.Raw
		}
		for i, pct := range Allocate(raw, f.Total) {
			f.Entries[i].Percent = pct
		}
	}
	return f
}

// Allocate splits 100 points over weights in proportion to weight/total. Every
// share is floored, then the leftover points go to the largest fractional
// remainders, earlier weights first on ties. The result sums to exactly 100
// and each share is within 1 of its rounded exact value.
func Allocate(weights []float64, total float64) []int {
	out := make([]int, len(weights))
	if !(total > 0) || len(weights) == 0 {
		return out
	}
	rem := make([]float64, len(weights))
	given := 0
	for i, w := range weights {
		exact := 100 * w / total
		out[i] = int(math.Floor(exact))
		rem[i] = exact - float64(out[i])
		given += out[i]
	}
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for k := 0; given < 100 && k < len(order); k++ {
		out[order[k]]++
		given++
	}
	return out
}
