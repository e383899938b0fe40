/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas holds the placeable items of a board and the operations that
// mutate them: insertion, removal, z-order, hit testing, gestures and undo.
package canvas

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"muralsynth/internal/geom"
)

// SnapshotVersion is the current persisted board format version.
const SnapshotVersion = 1

// MinItemSize is the smallest width or height a resize gesture can produce.
const MinItemSize = 10.0

// GenerationState tells whether a placeable holds content or waits for a synthesis.
type GenerationState int

const (
	Idle GenerationState = iota
	Pending
)

func (s GenerationState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s GenerationState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *GenerationState) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "idle", "":
		*s = Idle
	case "pending":
		*s = Pending
	default:
		return fmt.Errorf("unknown generation state %q", string(b))
	}
	return nil
}

// Contributor is one source image's share in a synthesized item.
type Contributor struct {
	SourceID      string `json:"sourceId"`
	Percent       int    `json:"percent"`
	Thumbnail     []byte `json:"thumbnail,omitempty"`
	ThumbnailMime string `json:"thumbnailMime,omitempty"`
}

// Provenance records how a synthesized item was produced. Set once, never edited.
type Provenance struct {
	Prompt       string        `json:"prompt"`
	Model        string        `json:"model,omitempty"`
	Contributors []Contributor `json:"contributors"`
}

// Placeable is an image (or a pending placeholder) positioned on the canvas.
// Image bytes are never modified in place; replacing content assigns a new slice.
type Placeable struct {
	ID         string          `json:"id"`
	Pos        geom.Pt         `json:"pos"`
	Size       geom.Size       `json:"size"`
	Image      []byte          `json:"image,omitempty"`
	MimeType   string          `json:"mimeType,omitempty"`
	State      GenerationState `json:"state"`
	Influence  float64         `json:"influence,omitempty"`
	Provenance *Provenance     `json:"provenance,omitempty"`
}

func (p Placeable) Rect() geom.Rect   { return geom.Rect{X: p.Pos.X, Y: p.Pos.Y, W: p.Size.W, H: p.Size.H} }
func (p Placeable) Center() geom.Pt   { return p.Rect().Center() }
func (p Placeable) IsPending() bool   { return p.State == Pending }
func (p Placeable) HasImage() bool    { return len(p.Image) > 0 }
func (p Placeable) ByteSize() int     { return len(p.Image) + p.Provenance.byteSize() }
func (p Placeable) Synthesized() bool { return p.Provenance != nil }

func (pv *Provenance) byteSize() int {
	if pv == nil {
		return 0
	}
	n := len(pv.Prompt)
	for _, c := range pv.Contributors {
		n += len(c.Thumbnail) + len(c.SourceID)
	}
	return n
}

// Clone returns a deep copy.
func (p Placeable) Clone() Placeable {
	c := p
	if p.Image != nil {
		c.Image = append([]byte(nil), p.Image...)
	}
	if p.Provenance != nil {
		pv := *p.Provenance
		pv.Contributors = make([]Contributor, len(p.Provenance.Contributors))
		for i, ct := range p.Provenance.Contributors {
			if ct.Thumbnail != nil {
				ct.Thumbnail = append([]byte(nil), ct.Thumbnail...)
			}
			pv.Contributors[i] = ct
		}
		c.Provenance = &pv
	}
	return c
}

var (
	ErrInvalidPlaceable = errors.New("invalid placeable")
	ErrDuplicateID      = errors.New("duplicate placeable id")
	ErrNotFound         = errors.New("placeable not found")
)

// Validate checks the structural invariants of a single item.
func (p Placeable) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPlaceable)
	}
	if !(p.Size.W > 0) || !(p.Size.H > 0) {
		return fmt.Errorf("%w: %s has non-positive size %vx%v", ErrInvalidPlaceable, p.ID, p.Size.W, p.Size.H)
	}
	if p.State == Pending && len(p.Image) > 0 {
		return fmt.Errorf("%w: pending item %s carries image data", ErrInvalidPlaceable, p.ID)
	}
	return nil
}

// NewID returns a fresh time-ordered identifier.
func NewID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Settings are the per-board synthesis defaults persisted with the board.
type Settings struct {
	Model       string  `json:"model,omitempty" yaml:"model"`
	AspectRatio string  `json:"aspectRatio,omitempty" yaml:"aspect_ratio"`
	TargetSize  float64 `json:"targetSize,omitempty" yaml:"target_size"`
	Radius      float64 `json:"radius,omitempty" yaml:"radius"`
}

// Snapshot is the persistable state of a board: idle items in paint order plus settings.
type Snapshot struct {
	Version    int         `json:"version"`
	Placeables []Placeable `json:"placeables"`
	Settings   Settings    `json:"settings"`
}

// Validate checks every item and id uniqueness.
func (s Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Placeables))
	for _, p := range s.Placeables {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
