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
	"context"
	"fmt"
	"testing"

	"muralsynth/internal/canvas"
	"muralsynth/internal/synth"
)

func TestJournalRecordListAndPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec, err := s.Save(ctx, "J", canvas.Snapshot{}, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	j := s.Journal(rec.ID)
	for i := 0; i < 5; i++ {
		e := synth.JournalEntry{
			ID:           fmt.Sprintf("s%d", i),
			Model:        "imagen-4.0-generate-001",
			AspectRatio:  synth.AspectWide,
			Prompt:       fmt.Sprintf("prompt %d", i),
			Outcome:      synth.OutcomeReconciled,
			Contributors: i,
		}
		if i == 4 {
			e.Outcome = synth.OutcomeRolledBack
			e.Stage = synth.StageImage
			e.Error = "quota"
		}
		if err := j.RecordSynthesis(ctx, e); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	list, err := s.ListSyntheses(ctx, rec.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(list))
	}
	top := list[0]
	if top.ID != "s4" || top.Outcome != synth.OutcomeRolledBack || top.Stage != synth.StageImage || top.Error != "quota" || top.Contributors != 4 {
		t.Fatalf("unexpected newest row: %+v", top)
	}
	if top.AspectRatio != synth.AspectWide || top.BoardID != rec.ID || top.TS.IsZero() {
		t.Fatalf("unexpected newest row fields: %+v", top)
	}

	n, err := s.PruneSyntheses(ctx, rec.ID, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pruned, got %d", n)
	}
	list, _ = s.ListSyntheses(ctx, rec.ID, 10)
	if len(list) != 2 || list[0].ID != "s4" || list[1].ID != "s3" {
		t.Fatalf("unexpected rows after prune: %+v", list)
	}
}

func TestDeleteBoardRemovesJournal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec, _ := s.Save(ctx, "J", canvas.Snapshot{}, "")
	if err := s.RecordSynthesis(ctx, rec.ID, synth.JournalEntry{ID: "x", Model: "m", Outcome: synth.OutcomeDiscarded}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := s.ListSyntheses(ctx, rec.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("journal rows should be gone, got %d", len(list))
	}
}

func TestRecordSynthesisRequiresBoard(t *testing.T) {
	s := openTestStore(t)
	if err := s.RecordSynthesis(context.Background(), "", synth.JournalEntry{ID: "x"}); err == nil {
		t.Fatal("expected error without board id")
	}
}
