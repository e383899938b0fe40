/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"muralsynth/internal/synth"
)

// DefaultPromptModel is the multimodal text model used to write prompts.
const DefaultPromptModel = "gemini-2.5-flash"

// DefaultInstruction asks for a single prompt blending the reference images.
const DefaultInstruction = "You are given reference images, each followed by its influence level from 0 to 10. " +
	"Write one concise image-generation prompt describing a single new picture that blends their subjects, " +
	"palette and mood, weighting each image by its influence. Reply with the prompt text only."

// PromptClient writes prompts from weighted images with a multimodal model.
type PromptClient struct {
	c           *Client
	Model       string
	Instruction string
	// Fallback is returned when the model answers without text.
	Fallback string
}

func NewPromptClient(c *Client, model string) *PromptClient {
	if strings.TrimSpace(model) == "" {
		model = DefaultPromptModel
	}
	return &PromptClient{c: c, Model: model, Instruction: DefaultInstruction, Fallback: synth.DefaultPrompt}
}

// GeneratePrompt implements synth.PromptGenerator.
func (p *PromptClient) GeneratePrompt(ctx context.Context, apiKey string, inputs []synth.PromptInput) (string, error) {
	parts := make([]part, 0, 1+2*len(inputs))
	parts = append(parts, part{Text: p.Instruction})
	for i, in := range inputs {
		mime := in.MimeType
		if mime == "" {
			mime = http.DetectContentType(in.Image)
		}
		parts = append(parts,
			part{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(in.Image)}},
			part{Text: fmt.Sprintf("Image %d influence: %d/10", i+1, in.Influence)},
		)
	}
	body := map[string]any{"contents": []content{{Role: "user", Parts: parts}}}

	var resp generateContentResponse
	if err := p.c.doJSON(ctx, http.MethodPost, modelPath(p.Model, "generateContent"), apiKey, body, &resp); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		for _, pt := range cand.Content.Parts {
			b.WriteString(pt.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	if text := strings.TrimSpace(b.String()); text != "" {
		return text, nil
	}
	return p.Fallback, nil
}
