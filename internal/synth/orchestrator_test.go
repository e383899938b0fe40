/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package synth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"muralsynth/internal/canvas"
	"muralsynth/internal/geom"
	"muralsynth/internal/undo"
)

type promptFunc func(context.Context, string, []PromptInput) (string, error)

func (f promptFunc) GeneratePrompt(ctx context.Context, cred string, in []PromptInput) (string, error) {
	return f(ctx, cred, in)
}

type imageFunc func(context.Context, string, ImageRequest) (ImagePayload, error)

func (f imageFunc) SynthesizeImage(ctx context.Context, cred string, req ImageRequest) (ImagePayload, error) {
	return f(ctx, cred, req)
}

type memJournal struct {
	mu      sync.Mutex
	entries []JournalEntry
}

func (j *memJournal) RecordSynthesis(_ context.Context, e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

var okImage = imageFunc(func(context.Context, string, ImageRequest) (ImagePayload, error) {
	return ImagePayload{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"}, nil
})

var okPrompt = promptFunc(func(context.Context, string, []PromptInput) (string, error) {
	return "a quiet harbor at dusk", nil
})

var opts = Options{Model: "imagen-3.0-generate-002", AspectRatio: "1:1", Radius: 1000}

func seededBoard(t *testing.T) *canvas.Board {
	t.Helper()
	b := canvas.NewBoard(undo.NewHistory(undo.Config{}))
	_, err := b.Add(canvas.Placeable{
		ID:       "src",
		Pos:      geom.Pt{X: -50, Y: -50},
		Size:     geom.Size{W: 100, H: 100},
		Image:    []byte{1, 2, 3},
		MimeType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return b
}

func idsOf(b *canvas.Board) []string {
	var out []string
	for _, p := range b.Items() {
		out = append(out, p.ID)
	}
	return out
}

func TestSynthesizeReconcilesInPlace(t *testing.T) {
	b := seededBoard(t)
	var gotInputs []PromptInput
	var gotReq ImageRequest
	prompts := promptFunc(func(_ context.Context, cred string, in []PromptInput) (string, error) {
		if cred != "key" {
			t.Errorf("credential not forwarded: %q", cred)
		}
		gotInputs = in
		return "harbor", nil
	})
	images := imageFunc(func(ctx context.Context, cred string, req ImageRequest) (ImagePayload, error) {
		gotReq = req
		items := b.Items()
		last := items[len(items)-1]
		if last.State != canvas.Pending || last.HasImage() {
			t.Errorf("placeholder should be pending during the image call: %+v", last)
		}
		return okImage(ctx, cred, req)
	})
	o := New(b, prompts, images)
	j := &memJournal{}
	o.Journal = j
	var states []State
	o.Observer = func(_ string, _, to State) { states = append(states, to) }

	res, err := o.SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(gotInputs) != 1 || gotInputs[0].Influence != 2 || gotInputs[0].MimeType != "image/jpeg" {
		t.Fatalf("prompt inputs: %+v", gotInputs)
	}
	if gotReq.Prompt != "harbor" || gotReq.AspectRatio != AspectSquare || gotReq.Model != opts.Model {
		t.Fatalf("image request: %+v", gotReq)
	}
	p, ok := b.Get(res.ID)
	if !ok {
		t.Fatalf("synthesized item missing")
	}
	if p.State != canvas.Idle || p.Pos != (geom.Pt{X: -50, Y: -50}) || p.Size != (geom.Size{W: 100, H: 100}) {
		t.Fatalf("reconciled item: %+v", p)
	}
	if p.Provenance == nil || p.Provenance.Prompt != "harbor" || len(p.Provenance.Contributors) != 1 ||
		p.Provenance.Contributors[0].Percent != 100 || p.Provenance.Contributors[0].SourceID != "src" {
		t.Fatalf("provenance: %+v", p.Provenance)
	}
	if src, _ := b.Get("src"); src.Influence != 2 {
		t.Fatalf("source influence not written back: %v", src.Influence)
	}
	want := []State{StateScoring, StatePlaceholderInserted, StatePromptRequested, StateImageRequested, StateReconciled}
	if len(states) != len(want) {
		t.Fatalf("states = %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v", states)
		}
	}
	if len(j.entries) != 1 || j.entries[0].Outcome != OutcomeReconciled || j.entries[0].Prompt != "harbor" {
		t.Fatalf("journal: %+v", j.entries)
	}
}

func TestConfigurationErrorsTouchNothing(t *testing.T) {
	b := seededBoard(t)
	o := New(b, okPrompt, okImage)
	cases := []struct {
		name string
		cred string
		opts Options
		size float64
	}{
		{"no credential", "  ", opts, 100},
		{"bad ratio", "key", Options{Model: "m", AspectRatio: "3:2"}, 100},
		{"no model", "key", Options{AspectRatio: "1:1"}, 100},
		{"zero size", "key", opts, 0},
	}
	for _, c := range cases {
		_, err := o.SynthesizeAt(context.Background(), geom.Pt{}, c.size, c.opts, c.cred)
		if !errors.Is(err, ErrConfiguration) {
			t.Fatalf("%s: expected ErrConfiguration, got %v", c.name, err)
		}
	}
	if b.Len() != 1 {
		t.Fatalf("board changed: %v", idsOf(b))
	}
}

func TestEmptyFieldLeavesBoardUnchanged(t *testing.T) {
	b := seededBoard(t)
	called := false
	prompts := promptFunc(func(context.Context, string, []PromptInput) (string, error) {
		called = true
		return "", nil
	})
	o := New(b, prompts, okImage)
	histBefore := b.CanUndo()
	_, err := o.SynthesizeAt(context.Background(), geom.Pt{X: 5000, Y: 5000}, 100, opts, "key")
	if !errors.Is(err, ErrEmptyInfluenceField) {
		t.Fatalf("expected ErrEmptyInfluenceField, got %v", err)
	}
	if called || b.Len() != 1 {
		t.Fatalf("empty field must not call out or insert (called=%v, items=%v)", called, idsOf(b))
	}
	b.Undo()
	if b.Len() != 0 || !histBefore {
		t.Fatalf("empty field must not push an undo snapshot")
	}
}

func TestImageFailureRollsBack(t *testing.T) {
	b := seededBoard(t)
	images := imageFunc(func(context.Context, string, ImageRequest) (ImagePayload, error) {
		return ImagePayload{}, errors.New("quota exceeded")
	})
	o := New(b, okPrompt, images)
	j := &memJournal{}
	o.Journal = j
	_, err := o.SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key")
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if gerr.Stage != StageImage || gerr.Auth || gerr.Message != "quota exceeded" {
		t.Fatalf("generation error: %+v", gerr)
	}
	if errors.Is(err, ErrAuthorization) {
		t.Fatalf("quota error must not be an authorization error")
	}
	if got := idsOf(b); len(got) != 1 || got[0] != "src" {
		t.Fatalf("placeholder left behind: %v", got)
	}
	if len(j.entries) != 1 || j.entries[0].Outcome != OutcomeRolledBack || j.entries[0].Stage != StageImage {
		t.Fatalf("journal: %+v", j.entries)
	}
}

func TestEmptyImagePayloadIsFailure(t *testing.T) {
	b := seededBoard(t)
	images := imageFunc(func(context.Context, string, ImageRequest) (ImagePayload, error) {
		return ImagePayload{MimeType: "image/png"}, nil
	})
	_, err := New(b, okPrompt, images).SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key")
	var gerr *GenerationError
	if !errors.As(err, &gerr) || gerr.Stage != StageImage {
		t.Fatalf("expected image stage failure, got %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("placeholder left behind")
	}
}

func TestPromptAuthFailure(t *testing.T) {
	b := seededBoard(t)
	imageCalled := false
	prompts := promptFunc(func(context.Context, string, []PromptInput) (string, error) {
		return "", errors.New("400 INVALID_ARGUMENT: API key not valid. Please pass a valid API key.")
	})
	images := imageFunc(func(ctx context.Context, c string, r ImageRequest) (ImagePayload, error) {
		imageCalled = true
		return okImage(ctx, c, r)
	})
	_, err := New(b, prompts, images).SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key")
	if !errors.Is(err, ErrAuthorization) {
		t.Fatalf("expected authorization failure, got %v", err)
	}
	if imageCalled {
		t.Fatalf("image call must not follow a failed prompt call")
	}
	if b.Len() != 1 {
		t.Fatalf("placeholder left behind")
	}
}

func TestEmptyPromptFallsBackToDefault(t *testing.T) {
	b := seededBoard(t)
	prompts := promptFunc(func(context.Context, string, []PromptInput) (string, error) { return "   ", nil })
	var got string
	images := imageFunc(func(ctx context.Context, c string, r ImageRequest) (ImagePayload, error) {
		got = r.Prompt
		return okImage(ctx, c, r)
	})
	if _, err := New(b, prompts, images).SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key"); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got != DefaultPrompt {
		t.Fatalf("prompt = %q", got)
	}

	o := New(seededBoard(t), prompts, images)
	o.FallbackPrompt = "storm over the bay"
	if _, err := o.SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key"); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got != "storm over the bay" {
		t.Fatalf("configured fallback not used: %q", got)
	}
}

func TestDeletedPlaceholderIsNotResurrected(t *testing.T) {
	b := seededBoard(t)
	images := imageFunc(func(ctx context.Context, c string, r ImageRequest) (ImagePayload, error) {
		for _, p := range b.Items() {
			if p.State == canvas.Pending {
				b.Remove(p.ID)
			}
		}
		return okImage(ctx, c, r)
	})
	o := New(b, okPrompt, images)
	j := &memJournal{}
	o.Journal = j
	_, err := o.SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key")
	if !errors.Is(err, ErrPlaceholderGone) {
		t.Fatalf("expected ErrPlaceholderGone, got %v", err)
	}
	if got := idsOf(b); len(got) != 1 || got[0] != "src" {
		t.Fatalf("board after discard: %v", got)
	}
	if len(j.entries) != 1 || j.entries[0].Outcome != OutcomeDiscarded {
		t.Fatalf("journal: %+v", j.entries)
	}
}

func TestUndoDuringFlightKeepsPlaceholder(t *testing.T) {
	b := seededBoard(t)
	prompts := promptFunc(func(context.Context, string, []PromptInput) (string, error) {
		// the placeholder insertion changes nothing visible, so this undoes the seed
		if !b.Undo() {
			t.Errorf("undo during flight reported no change")
		}
		return "p", nil
	})
	res, err := New(b, prompts, okImage).SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	got := idsOf(b)
	if len(got) != 1 || got[0] != res.ID {
		t.Fatalf("expected only the synthesized item, got %v", got)
	}
}

func TestUndoAfterReconcileKeepsResult(t *testing.T) {
	b := seededBoard(t)
	images := imageFunc(func(ctx context.Context, c string, r ImageRequest) (ImagePayload, error) {
		_, err := b.Add(canvas.Placeable{
			ID:    "x",
			Pos:   geom.Pt{X: 400, Y: 400},
			Size:  geom.Size{W: 50, H: 50},
			Image: []byte{4},
		})
		if err != nil {
			t.Errorf("add during flight: %v", err)
		}
		return okImage(ctx, c, r)
	})
	res, err := New(b, okPrompt, images).SynthesizeAt(context.Background(), geom.Pt{}, 100, opts, "key")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got := idsOf(b); len(got) != 3 {
		t.Fatalf("before undo: %v", got)
	}

	if !b.Undo() {
		t.Fatalf("undo of the add failed")
	}
	got := idsOf(b)
	if len(got) != 2 || got[0] != "src" || got[1] != res.ID {
		t.Fatalf("undoing the add should keep the result, got %v", got)
	}
	if p, _ := b.Get(res.ID); p.State != canvas.Idle || len(p.Image) == 0 {
		t.Fatalf("result lost its image: %+v", p)
	}

	// the insertion snapshot predates the result, so the next undo removes it
	if !b.Undo() {
		t.Fatalf("undo of the synthesis failed")
	}
	if got := idsOf(b); len(got) != 1 || got[0] != "src" {
		t.Fatalf("after second undo: %v", got)
	}
}

func TestCancelledContextRollsBack(t *testing.T) {
	b := seededBoard(t)
	ctx, cancel := context.WithCancel(context.Background())
	prompts := promptFunc(func(ctx context.Context, _ string, _ []PromptInput) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := New(b, prompts, okImage).SynthesizeAt(ctx, geom.Pt{}, 100, opts, "key")
	var gerr *GenerationError
	if !errors.As(err, &gerr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation wrapped in GenerationError, got %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("placeholder left behind")
	}
}

func TestConcurrentInvocationsAreIndependent(t *testing.T) {
	b := seededBoard(t)
	release := make(chan struct{})
	images := imageFunc(func(ctx context.Context, c string, r ImageRequest) (ImagePayload, error) {
		<-release
		if r.AspectRatio == AspectWide {
			return ImagePayload{}, errors.New("safety filter")
		}
		return okImage(ctx, c, r)
	})
	o := New(b, okPrompt, images)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	ratios := []string{"1:1", "16:9"}
	for i := range ratios {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op := opts
			op.AspectRatio = ratios[i]
			_, errs[i] = o.SynthesizeAt(context.Background(), geom.Pt{X: float64(i * 10)}, 100, op, "key")
		}(i)
	}
	// wait for both placeholders
	for {
		pending := 0
		for _, p := range b.Items() {
			if p.State == canvas.Pending {
				pending++
			}
		}
		if pending == 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if errs[0] != nil {
		t.Fatalf("first invocation: %v", errs[0])
	}
	var gerr *GenerationError
	if !errors.As(errs[1], &gerr) {
		t.Fatalf("second invocation: %v", errs[1])
	}
	items := b.Items()
	if len(items) != 2 {
		t.Fatalf("expected source and one result, got %d", len(items))
	}
	for _, p := range items {
		if p.State != canvas.Idle {
			t.Fatalf("leftover pending item: %+v", p)
		}
	}
}

func TestTargetBoxAspect(t *testing.T) {
	r := TargetBox(geom.Pt{X: 100, Y: 100}, 160, AspectWide)
	if r.W != 160 || r.H != 90 || r.Center() != (geom.Pt{X: 100, Y: 100}) {
		t.Fatalf("target box = %+v", r)
	}
	r = TargetBox(geom.Pt{}, 90, AspectPortrait)
	if r.H != 160 {
		t.Fatalf("portrait height = %v", r.H)
	}
}

func TestIllegalTransitionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	r := New(nil, nil, nil).newRun(context.Background())
	r.to(StateReconciled)
}

func TestIsAuthFailure(t *testing.T) {
	for _, msg := range []string{
		"Requested entity was not found.",
		"PERMISSION_DENIED: caller lacks access",
		"request had invalid authentication credentials: UNAUTHENTICATED",
	} {
		if !IsAuthFailure(errors.New(msg)) {
			t.Fatalf("%q should be an auth failure", msg)
		}
	}
	if IsAuthFailure(errors.New("deadline exceeded")) || IsAuthFailure(nil) {
		t.Fatalf("false positive")
	}
}
