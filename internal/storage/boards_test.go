/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"muralsynth/internal/canvas"
)

func TestSaveAssignsIDAndRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a := item("a", 10, 20)
	a.Influence = 4.5
	a.Provenance = &canvas.Provenance{Prompt: "a quiet harbor", Model: "m", Contributors: []canvas.Contributor{{SourceID: "x", Percent: 100}}}
	state := canvas.Snapshot{
		Placeables: []canvas.Placeable{a, item("b", 200, 0)},
		Settings:   canvas.Settings{Model: "imagen-4.0-generate-001", AspectRatio: "16:9", Radius: 800},
	}
	rec, err := s.Save(ctx, "  Harbor  ", state, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated id")
	}
	if rec.Name != "Harbor" {
		t.Fatalf("name not trimmed: %q", rec.Name)
	}
	got, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.State.Placeables) != 2 {
		t.Fatalf("placeables: %d", len(got.State.Placeables))
	}
	p := got.State.Placeables[0]
	if p.ID != "a" || p.Pos.X != 10 || p.Pos.Y != 20 || !bytes.Equal(p.Image, a.Image) {
		t.Fatalf("first item mismatch: %+v", p)
	}
	if p.Provenance == nil || p.Provenance.Prompt != "a quiet harbor" || len(p.Provenance.Contributors) != 1 {
		t.Fatalf("provenance lost: %+v", p.Provenance)
	}
	if got.State.Settings.AspectRatio != "16:9" || got.State.Settings.Radius != 800 {
		t.Fatalf("settings lost: %+v", got.State.Settings)
	}
	if got.State.Version != canvas.SnapshotVersion {
		t.Fatalf("version: %d", got.State.Version)
	}
}

func TestSaveDropsPendingPlaceholders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	pending := canvas.Placeable{ID: "p", Size: item("p", 0, 0).Size, State: canvas.Pending}
	rec, err := s.Save(ctx, "B", canvas.Snapshot{Placeables: []canvas.Placeable{item("a", 0, 0), pending}}, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(rec.State.Placeables) != 1 || rec.State.Placeables[0].ID != "a" {
		t.Fatalf("pending item should not persist: %+v", rec.State.Placeables)
	}
}

func TestSaveRejectsInvalidState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Save(ctx, "", canvas.Snapshot{}, ""); err == nil {
		t.Fatal("expected error for empty name")
	}
	bad := item("a", 0, 0)
	bad.Size.W = 0
	if _, err := s.Save(ctx, "B", canvas.Snapshot{Placeables: []canvas.Placeable{bad}}, ""); !errors.Is(err, canvas.ErrInvalidPlaceable) {
		t.Fatalf("expected ErrInvalidPlaceable, got %v", err)
	}
	dup := canvas.Snapshot{Placeables: []canvas.Placeable{item("a", 0, 0), item("a", 5, 5)}}
	if _, err := s.Save(ctx, "B", dup, ""); !errors.Is(err, canvas.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSaveWithIDReplacesAndKeepsCreatedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	first, err := s.Save(ctx, "One", canvas.Snapshot{}, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := s.Save(ctx, "Two", canvas.Snapshot{Placeables: []canvas.Placeable{item("a", 0, 0)}}, first.ID)
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
	if second.ID != first.ID || second.Name != "Two" || len(second.State.Placeables) != 1 {
		t.Fatalf("unexpected replace result: %+v", second)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updated_at not advanced: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestListOrdersByUpdatedDesc(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, _ := s.Save(ctx, "A", canvas.Snapshot{}, "")
	b, _ := s.Save(ctx, "B", canvas.Snapshot{}, "")
	if _, err := s.Save(ctx, "A2", canvas.Snapshot{}, a.ID); err != nil {
		t.Fatalf("touch A: %v", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestGetAndDeleteMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: %v", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestDecodeStateRejectsNewerVersion(t *testing.T) {
	if _, err := DecodeState([]byte(`{"version": 99, "placeables": []}`)); err == nil {
		t.Fatal("expected error for newer format version")
	}
	s, err := DecodeState([]byte(`{"version": 1}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Placeables == nil {
		t.Fatal("placeables should be non-nil")
	}
}
