/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package synth

import "context"

// DefaultPrompt is used when the prompt model returns no text.
const DefaultPrompt = "A cohesive artistic composition blending the visual elements, palette and mood of the reference images."

// PromptInput is one reference image with its rounded influence level (0..10).
type PromptInput struct {
	Image     []byte
	MimeType  string
	Influence int
}

// ImageRequest asks an image model for one picture.
type ImageRequest struct {
	Prompt      string
	Model       string
	AspectRatio AspectRatio
}

// ImagePayload is a generated image normalized across backends.
type ImagePayload struct {
	Data     []byte
	MimeType string
}

// PromptGenerator derives a text prompt from weighted reference images.
type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, credential string, inputs []PromptInput) (string, error)
}

// ImageSynthesizer renders an image from a prompt.
type ImageSynthesizer interface {
	SynthesizeImage(ctx context.Context, credential string, req ImageRequest) (ImagePayload, error)
}

// Thumbnailer shrinks contributor images for provenance records.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, sourceID string, data []byte, mimeType string) (thumb []byte, thumbMime string, err error)
}

// Outcome is the terminal result of an invocation as recorded in the journal.
type Outcome string

const (
	OutcomeReconciled Outcome = "reconciled"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeDiscarded  Outcome = "discarded"
)

// JournalEntry describes one finished invocation.
type JournalEntry struct {
	ID           string
	Model        string
	AspectRatio  AspectRatio
	Prompt       string
	Outcome      Outcome
	Stage        Stage
	Error        string
	Contributors int
}

// Journal records finished invocations.
type Journal interface {
	RecordSynthesis(ctx context.Context, e JournalEntry) error
}

// Observer is notified of every state transition.
type Observer func(id string, from, to State)

// EventSink receives anonymous usage events.
type EventSink func(name string, props map[string]any)
