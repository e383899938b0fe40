/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package synth orchestrates one synthesis: score the board around a target,
// insert a pending placeholder, ask a prompt model and then an image model,
// and reconcile the result into the board or roll the placeholder back.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"muralsynth/internal/canvas"
	"muralsynth/internal/geom"
	"muralsynth/internal/influence"
	applog "muralsynth/internal/log"
)

// DefaultRadius is the influence radius used when Options.Radius is unset.
const DefaultRadius = 1000.0

// Options select the model and output shape for one invocation.
type Options struct {
	Model       string
	AspectRatio string
	Radius      float64
}

// Result describes a reconciled synthesis.
type Result struct {
	ID     string
	Item   canvas.Placeable
	Prompt string
	Field  influence.Field
}

// Orchestrator runs synthesis invocations against a board. It holds no
// credential; every call receives one. Invocations may run concurrently.
type Orchestrator struct {
	board   *canvas.Board
	prompts PromptGenerator
	images  ImageSynthesizer

	Thumbnailer Thumbnailer
	Journal     Journal
	Events      EventSink
	Observer    Observer
	// FallbackPrompt replaces DefaultPrompt when the prompt model answers with empty text.
	FallbackPrompt string

	log *slog.Logger
	now func() time.Time
}

func New(board *canvas.Board, prompts PromptGenerator, images ImageSynthesizer) *Orchestrator {
	return &Orchestrator{
		board:   board,
		prompts: prompts,
		images:  images,
		log:     applog.WithComponent("synth"),
		now:     time.Now,
	}
}

// TargetBox returns the box of width size centered on center with the ratio's height.
func TargetBox(center geom.Pt, size float64, ratio AspectRatio) geom.Rect {
	w, h := ratio.Dims()
	return geom.RectAround(center, geom.Size{W: size, H: size * h / w})
}

// SynthesizeAt generates an image centered on a canvas point.
//
// Configuration and empty-field errors are returned before the board is
// touched. Once the placeholder is inserted exactly one of three things
// happens: it becomes the generated image, it is removed and a
// *GenerationError is returned, or it was already removed by the user and
// ErrPlaceholderGone is returned.
func (o *Orchestrator) SynthesizeAt(ctx context.Context, center geom.Pt, size float64, opts Options, credential string) (*Result, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: no credential", ErrConfiguration)
	}
	if o.prompts == nil || o.images == nil {
		return nil, fmt.Errorf("%w: generation backends not set", ErrConfiguration)
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("%w: no image model", ErrConfiguration)
	}
	ratio, err := ParseAspectRatio(opts.AspectRatio)
	if err != nil {
		return nil, err
	}
	if !(size > 0) {
		return nil, fmt.Errorf("%w: target size %v", ErrConfiguration, size)
	}
	radius := opts.Radius
	if !(radius > 0) {
		radius = DefaultRadius
	}

	r := o.newRun(ctx)
	r.to(StateScoring)
	target := TargetBox(center, size, ratio)
	field := influence.Score(o.board.Items(), target, radius)
	if field.Empty() {
		r.to(StateRolledBack)
		return nil, fmt.Errorf("%w: nothing within %.0f units of (%.0f, %.0f)", ErrEmptyInfluenceField, radius, center.X, center.Y)
	}
	o.board.SetInfluence(field.Scores())

	ph := canvas.Placeable{ID: r.id, Pos: target.Min(), Size: target.Size(), State: canvas.Pending}
	if _, err := o.board.Add(ph); err != nil {
		r.to(StateRolledBack)
		return nil, fmt.Errorf("insert placeholder: %w", err)
	}
	r.to(StatePlaceholderInserted)
	o.emit("synthesis_started", map[string]any{
		"model":        opts.Model,
		"aspect_ratio": string(ratio),
		"contributors": len(field.Entries),
	})
	entry := JournalEntry{ID: r.id, Model: opts.Model, AspectRatio: ratio, Contributors: len(field.Entries)}

	contributors := field.Contributors()
	inputs := make([]PromptInput, 0, len(contributors))
	for _, e := range contributors {
		inputs = append(inputs, PromptInput{Image: e.Image, MimeType: e.MimeType, Influence: e.Display()})
	}

	r.to(StatePromptRequested)
	prompt, err := o.prompts.GeneratePrompt(r.ctx, credential, inputs)
	if err != nil {
		return nil, r.fail(StagePrompt, err, entry)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = o.fallbackPrompt()
	}
	entry.Prompt = prompt
	if _, ok := o.board.Get(r.id); !ok {
		return nil, r.discard(entry)
	}

	r.to(StateImageRequested)
	img, err := o.images.SynthesizeImage(r.ctx, credential, ImageRequest{Prompt: prompt, Model: opts.Model, AspectRatio: ratio})
	if err == nil && len(img.Data) == 0 {
		err = fmt.Errorf("model %s returned an empty image", opts.Model)
	}
	if err != nil {
		return nil, r.fail(StageImage, err, entry)
	}

	prov := &canvas.Provenance{Prompt: prompt, Model: opts.Model, Contributors: o.provenance(r.ctx, contributors)}
	var item canvas.Placeable
	ok := o.board.Reconcile(r.id, func(p *canvas.Placeable) {
		p.State = canvas.Idle
		p.Image = img.Data
		p.MimeType = img.MimeType
		p.Provenance = prov
		item = *p
	})
	if !ok {
		return nil, r.discard(entry)
	}
	r.to(StateReconciled)
	entry.Outcome = OutcomeReconciled
	o.record(r.ctx, entry)
	o.emit("synthesis_reconciled", map[string]any{"model": opts.Model, "duration_ms": o.now().Sub(r.started).Milliseconds()})
	r.log.InfoContext(r.ctx, "synthesis reconciled", slog.Int("bytes", len(img.Data)), slog.String("mime", img.MimeType))
	return &Result{ID: r.id, Item: item, Prompt: prompt, Field: field}, nil
}

func (o *Orchestrator) fallbackPrompt() string {
	if p := strings.TrimSpace(o.FallbackPrompt); p != "" {
		return p
	}
	return DefaultPrompt
}

func (o *Orchestrator) provenance(ctx context.Context, contributors []influence.Entry) []canvas.Contributor {
	out := make([]canvas.Contributor, 0, len(contributors))
	for _, e := range contributors {
		c := canvas.Contributor{SourceID: e.ID, Percent: e.Percent}
		if o.Thumbnailer != nil {
			thumb, mime, err := o.Thumbnailer.Thumbnail(ctx, e.ID, e.Image, e.MimeType)
			if err != nil {
				o.log.WarnContext(ctx, "contributor thumbnail failed", slog.String("source", e.ID), slog.Any("err", err))
			} else {
				c.Thumbnail, c.ThumbnailMime = thumb, mime
			}
		}
		out = append(out, c)
	}
	return out
}

func (o *Orchestrator) record(ctx context.Context, e JournalEntry) {
	if o.Journal == nil {
		return
	}
	if err := o.Journal.RecordSynthesis(ctx, e); err != nil {
		o.log.WarnContext(ctx, "journal write failed", slog.Any("err", err))
	}
}

func (o *Orchestrator) emit(name string, props map[string]any) {
	if o.Events != nil {
		o.Events(name, props)
	}
}

// run tracks one invocation's state.
type run struct {
	o       *Orchestrator
	id      string
	state   State
	ctx     context.Context
	log     *slog.Logger
	started time.Time
}

func (o *Orchestrator) newRun(ctx context.Context) *run {
	id := canvas.NewID()
	return &run{
		o:       o,
		id:      id,
		state:   StateIdle,
		ctx:     applog.WithSynthesis(ctx, id),
		log:     applog.WithOperation(o.log, "synthesize"),
		started: o.now(),
	}
}

// to advances the state machine. An illegal transition is a programming error.
func (r *run) to(next State) {
	if !CanTransition(r.state, next) {
		panic(fmt.Sprintf("synth: illegal transition %s -> %s", r.state, next))
	}
	prev := r.state
	r.state = next
	r.log.DebugContext(r.ctx, "state", slog.String("from", prev.String()), slog.String("to", next.String()))
	if r.o.Observer != nil {
		r.o.Observer(r.id, prev, next)
	}
}

// fail removes the placeholder and reports the failed stage.
func (r *run) fail(stage Stage, err error, entry JournalEntry) error {
	r.o.board.Discard(r.id)
	r.to(StateRolledBack)
	gerr := newGenerationError(stage, err)
	entry.Outcome, entry.Stage, entry.Error = OutcomeRolledBack, stage, gerr.Message
	r.o.record(r.ctx, entry)
	r.o.emit("synthesis_rolled_back", map[string]any{"stage": string(stage), "auth": gerr.Auth})
	r.log.WarnContext(r.ctx, "synthesis rolled back", slog.String("stage", string(stage)), slog.Bool("auth", gerr.Auth), slog.Any("err", err))
	return gerr
}

// discard handles a placeholder that disappeared while the invocation was in flight.
func (r *run) discard(entry JournalEntry) error {
	r.to(StateRolledBack)
	entry.Outcome = OutcomeDiscarded
	r.o.record(r.ctx, entry)
	r.o.emit("synthesis_rolled_back", map[string]any{"stage": "reconcile", "auth": false})
	r.log.InfoContext(r.ctx, "placeholder gone, result discarded")
	return fmt.Errorf("%w: %s", ErrPlaceholderGone, r.id)
}
