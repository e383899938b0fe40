/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package workspace ties one board to its view, selection, undo history and
// synthesis orchestrator. It is what a front end drives.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"muralsynth/internal/canvas"
	"muralsynth/internal/geom"
	"muralsynth/internal/imaging"
	applog "muralsynth/internal/log"
	"muralsynth/internal/synth"
	"muralsynth/internal/undo"
	"muralsynth/internal/viewport"
)

const (
	DefaultNoticeTTL     = 4 * time.Second
	DefaultHandleSize    = 12.0 // screen pixels
	DefaultMaxImportEdge = 400.0
	DefaultTargetSize    = 512.0

	// wheelBase is the zoom factor per wheel delta unit.
	wheelBase = 1.0015
)

// ErrNotAuthenticated is returned by Synthesize until Connect succeeds, and
// again after the backend rejected the credential.
var ErrNotAuthenticated = errors.New("not authenticated")

// Options configure a Workspace. Zero values fall back to the package defaults.
type Options struct {
	// Settings are the defaults used where the board's own settings are empty.
	Settings       canvas.Settings
	MinScale       float64
	MaxScale       float64
	Undo           undo.Config
	NoticeTTL      time.Duration
	HandleSize     float64
	MaxImportEdge  float64
	SnapThreshold  float64 // screen pixels; 0 disables snapping while dragging
	Thumbnailer    synth.Thumbnailer
	Journal        synth.Journal
	Events         synth.EventSink
	FallbackPrompt string
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeError
)

func (l NoticeLevel) String() string {
	if l == NoticeError {
		return "error"
	}
	return "info"
}

// Notice is a transient status message.
type Notice struct {
	Level   NoticeLevel
	Message string
	Expires time.Time
}

// Workspace is safe for concurrent use. Synthesis runs without holding the
// workspace lock, so the board stays interactive while a request is in flight.
type Workspace struct {
	board   *canvas.Board
	history *undo.History
	orch    *synth.Orchestrator
	opts    Options
	log     *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	view       *viewport.Transform
	selection  *canvas.Selection
	gesture    *canvas.Gesture
	notice     Notice
	credential string
	authed     bool
}

// New creates an empty workspace backed by the given generation backends.
func New(opts Options, prompts synth.PromptGenerator, images synth.ImageSynthesizer) *Workspace {
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = DefaultNoticeTTL
	}
	if !(opts.HandleSize > 0) {
		opts.HandleSize = DefaultHandleSize
	}
	if !(opts.MaxImportEdge > 0) {
		opts.MaxImportEdge = DefaultMaxImportEdge
	}
	h := undo.NewHistory(opts.Undo)
	b := canvas.NewBoard(h)
	v := viewport.New(opts.MinScale, opts.MaxScale)

	o := synth.New(b, prompts, images)
	o.Thumbnailer = opts.Thumbnailer
	o.Journal = opts.Journal
	o.Events = opts.Events
	o.FallbackPrompt = opts.FallbackPrompt

	g := canvas.NewGesture(b, v)
	g.SnapThreshold = opts.SnapThreshold

	return &Workspace{
		board:     b,
		history:   h,
		orch:      o,
		opts:      opts,
		log:       applog.WithComponent("workspace"),
		now:       time.Now,
		view:      v,
		selection: canvas.NewSelection(),
		gesture:   g,
	}
}

func (w *Workspace) Board() *canvas.Board { return w.board }

// Orchestrator exposes the synthesis engine, e.g. to attach an Observer.
func (w *Workspace) Orchestrator() *synth.Orchestrator { return w.orch }

// Connect stores the credential used for synthesis. It is kept in memory only.
func (w *Workspace) Connect(credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return fmt.Errorf("%w: empty credential", synth.ErrConfiguration)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credential = credential
	w.authed = true
	return nil
}

func (w *Workspace) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credential = ""
	w.authed = false
}

func (w *Workspace) Authenticated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authed
}

// Notice returns the current notice, or false when none is showing.
func (w *Workspace) Notice() (Notice, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notice.Message == "" || !w.now().Before(w.notice.Expires) {
		return Notice{}, false
	}
	return w.notice, true
}

func (w *Workspace) setNoticeLocked(level NoticeLevel, msg string) {
	w.notice = Notice{Level: level, Message: msg, Expires: w.now().Add(w.opts.NoticeTTL)}
}

// View returns a copy of the current transform.
func (w *Workspace) View() viewport.Transform {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.view
}

// Select brings id to the front and updates the selection.
func (w *Workspace) Select(id string, multi bool) bool {
	if !w.board.BringToFront(id) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.Select(id, multi)
	return true
}

func (w *Workspace) ClearSelection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.Clear()
}

func (w *Workspace) Selection() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection.IDs()
}

// PointerDown hit-tests the board at a screen position and starts a gesture.
// A hit selects the item, or toggles it when multi is set. A miss clears the
// selection unless multi is set.
func (w *Workspace) PointerDown(screen geom.Pt, multi bool) canvas.GestureMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	pt := w.view.ToCanvas(screen)
	id, onHandle := w.board.HitTest(pt, w.opts.HandleSize/w.view.Scale)
	switch {
	case id != "":
		w.selection.Select(id, multi)
	case !multi:
		w.selection.Clear()
	}
	return w.gesture.PointerDown(screen, id, onHandle)
}

func (w *Workspace) PointerMove(screen geom.Pt) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gesture.PointerMove(screen)
}

// Guides returns the snapping guides of the drag in progress.
func (w *Workspace) Guides() []canvas.Guide {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gesture.Guides()
}

func (w *Workspace) PointerUp() canvas.GestureMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := w.gesture.PointerUp()
	w.pruneSelectionLocked()
	return m
}

// Wheel zooms around the cursor. Positive deltaY zooms out.
func (w *Workspace) Wheel(screen geom.Pt, deltaY float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view.ZoomBy(screen, math.Pow(wheelBase, -deltaY))
}

func (w *Workspace) Pan(dx, dy float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view.Pan(dx, dy)
}

func (w *Workspace) ZoomAt(anchor geom.Pt, scale float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view.ZoomAt(anchor, scale)
}

// AddImage places an encoded image centered on a screen position. Its size is
// the pixel size scaled down to MaxImportEdge canvas units.
func (w *Workspace) AddImage(data []byte, screen geom.Pt) (string, error) {
	pw, ph, mime, err := imaging.Sniff(data)
	if err != nil {
		return "", err
	}
	cw, chh := imaging.Fit(float64(pw), float64(ph), w.opts.MaxImportEdge)
	w.mu.Lock()
	center := w.view.ToCanvas(screen)
	w.mu.Unlock()
	return w.AddImageAt(data, mime, geom.RectAround(center, geom.Size{W: cw, H: chh}))
}

// AddImageAt places image data at an explicit canvas rectangle.
func (w *Workspace) AddImageAt(data []byte, mime string, r geom.Rect) (string, error) {
	id, err := w.board.Add(canvas.Placeable{
		Pos:      r.Min(),
		Size:     r.Size(),
		Image:    data,
		MimeType: mime,
		State:    canvas.Idle,
	})
	if err != nil {
		return "", err
	}
	w.log.Debug("image added", slog.String("id", id), slog.String("mime", mime), slog.Int("bytes", len(data)))
	return id, nil
}

// DeleteSelected removes every selected item in one undo step.
func (w *Workspace) DeleteSelected() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := w.selection.IDs()
	if len(ids) == 0 {
		return 0
	}
	n := w.board.RemoveMany(ids)
	w.selection.Clear()
	return n
}

func (w *Workspace) Delete(id string) bool {
	ok := w.board.Remove(id)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneSelectionLocked()
	return ok
}

// Undo restores the previous board state and drops selected ids that no longer exist.
func (w *Workspace) Undo() bool {
	ok := w.board.Undo()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneSelectionLocked()
	if !ok {
		w.setNoticeLocked(NoticeInfo, "nothing to undo")
	}
	return ok
}

func (w *Workspace) pruneSelectionLocked() {
	w.selection.Prune(func(id string) bool {
		_, ok := w.board.Get(id)
		return ok
	})
}

// Settings merges the board's settings over the workspace defaults.
func (w *Workspace) Settings() canvas.Settings {
	s := w.opts.Settings
	b := w.board.Settings()
	if b.Model != "" {
		s.Model = b.Model
	}
	if b.AspectRatio != "" {
		s.AspectRatio = b.AspectRatio
	}
	if b.TargetSize > 0 {
		s.TargetSize = b.TargetSize
	}
	if b.Radius > 0 {
		s.Radius = b.Radius
	}
	if !(s.TargetSize > 0) {
		s.TargetSize = DefaultTargetSize
	}
	return s
}

// Synthesize generates an image centered on a screen position.
func (w *Workspace) Synthesize(ctx context.Context, screen geom.Pt) (*synth.Result, error) {
	w.mu.Lock()
	center := w.view.ToCanvas(screen)
	w.mu.Unlock()
	return w.SynthesizeAtCanvas(ctx, center)
}

// SynthesizeAtCanvas generates an image centered on a canvas point. Failures
// also surface as an error notice. A rejected credential disconnects the workspace.
func (w *Workspace) SynthesizeAtCanvas(ctx context.Context, center geom.Pt) (*synth.Result, error) {
	w.mu.Lock()
	authed, cred := w.authed, w.credential
	if !authed {
		w.setNoticeLocked(NoticeError, "connect an API key before generating")
	}
	w.mu.Unlock()
	if !authed {
		return nil, ErrNotAuthenticated
	}

	s := w.Settings()
	opts := synth.Options{Model: s.Model, AspectRatio: s.AspectRatio, Radius: s.Radius}
	res, err := w.orch.SynthesizeAt(ctx, center, s.TargetSize, opts, cred)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if errors.Is(err, synth.ErrAuthorization) && w.credential == cred {
			w.credential = ""
			w.authed = false
		}
		w.setNoticeLocked(NoticeError, noticeText(err))
		return nil, err
	}
	w.setNoticeLocked(NoticeInfo, "image generated")
	return res, nil
}

// Outcome is delivered by SynthesizeAsync.
type Outcome struct {
	Result *synth.Result
	Err    error
}

// SynthesizeAsync runs SynthesizeAtCanvas on its own goroutine. The channel
// receives exactly one Outcome and is then closed.
func (w *Workspace) SynthesizeAsync(ctx context.Context, center geom.Pt) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		res, err := w.SynthesizeAtCanvas(ctx, center)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

func noticeText(err error) string {
	switch {
	case errors.Is(err, synth.ErrAuthorization):
		return "the API key was rejected; connect again"
	case errors.Is(err, synth.ErrEmptyInfluenceField):
		return "move closer to existing images to generate"
	case errors.Is(err, synth.ErrPlaceholderGone):
		return "generation finished after its placeholder was deleted"
	case errors.Is(err, synth.ErrConfiguration):
		return err.Error()
	}
	var ge *synth.GenerationError
	if errors.As(err, &ge) {
		return ge.Error()
	}
	return "generation failed"
}

// Persistable returns the board's persistable state.
func (w *Workspace) Persistable() canvas.Snapshot { return w.board.Persistable() }

// Load replaces the board content and resets selection and undo history.
func (w *Workspace) Load(s canvas.Snapshot) error {
	if err := w.board.Load(s); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection.Clear()
	w.gesture.PointerUp()
	return nil
}

func (w *Workspace) Items() []canvas.Placeable { return w.board.Items() }

// UndoStats reports the memory held by the undo history.
func (w *Workspace) UndoStats() (bytes, snapshots int) { return w.history.Stats() }
