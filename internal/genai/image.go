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
	"errors"
	"fmt"
	"net/http"
	"strings"

	"muralsynth/internal/synth"
)

// DefaultImageModel is used when no image model is configured.
const DefaultImageModel = "imagen-4.0-generate-001"

// imageAdapter hides one model family's request and response shape.
type imageAdapter interface {
	generate(ctx context.Context, c *Client, apiKey string, req synth.ImageRequest) (synth.ImagePayload, error)
}

// ErrNoImage is returned when the service answered without image data,
// typically because a safety filter dropped the output.
var ErrNoImage = errors.New("no image in response")

// ImageClient implements synth.ImageSynthesizer, choosing the adapter by model name.
type ImageClient struct {
	c *Client
}

func NewImageClient(c *Client) *ImageClient { return &ImageClient{c: c} }

// SynthesizeImage implements synth.ImageSynthesizer.
func (ic *ImageClient) SynthesizeImage(ctx context.Context, apiKey string, req synth.ImageRequest) (synth.ImagePayload, error) {
	return adapterFor(req.Model).generate(ctx, ic.c, apiKey, req)
}

func adapterFor(model string) imageAdapter {
	if strings.HasPrefix(strings.TrimPrefix(model, "models/"), "imagen") {
		return imagesAdapter{}
	}
	return inlineAdapter{}
}

// imagesAdapter serves dedicated image models via :predict.
type imagesAdapter struct{}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
		RaiFilteredReason  string `json:"raiFilteredReason"`
	} `json:"predictions"`
}

func (imagesAdapter) generate(ctx context.Context, c *Client, apiKey string, req synth.ImageRequest) (synth.ImagePayload, error) {
	body := map[string]any{
		"instances": []map[string]any{{"prompt": req.Prompt}},
		"parameters": map[string]any{
			"sampleCount": 1,
			"aspectRatio": string(req.AspectRatio),
		},
	}
	var resp predictResponse
	if err := c.doJSON(ctx, http.MethodPost, modelPath(req.Model, "predict"), apiKey, body, &resp); err != nil {
		return synth.ImagePayload{}, err
	}
	for _, p := range resp.Predictions {
		if p.BytesBase64Encoded == "" {
			if p.RaiFilteredReason != "" {
				return synth.ImagePayload{}, fmt.Errorf("%w: %s", ErrNoImage, p.RaiFilteredReason)
			}
			continue
		}
		return decodePayload(p.BytesBase64Encoded, p.MimeType)
	}
	return synth.ImagePayload{}, ErrNoImage
}

// inlineAdapter serves multimodal models that return images as inline parts of :generateContent.
type inlineAdapter struct{}

func (inlineAdapter) generate(ctx context.Context, c *Client, apiKey string, req synth.ImageRequest) (synth.ImagePayload, error) {
	body := map[string]any{
		"contents": []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
		"generationConfig": map[string]any{
			"responseModalities": []string{"IMAGE"},
			"imageConfig":        map[string]any{"aspectRatio": string(req.AspectRatio)},
		},
	}
	var resp generateContentResponse
	if err := c.doJSON(ctx, http.MethodPost, modelPath(req.Model, "generateContent"), apiKey, body, &resp); err != nil {
		return synth.ImagePayload{}, err
	}
	var text string
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return decodePayload(p.InlineData.Data, p.InlineData.MimeType)
			}
			if text == "" {
				text = strings.TrimSpace(p.Text)
			}
		}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return synth.ImagePayload{}, fmt.Errorf("%w: blocked (%s)", ErrNoImage, resp.PromptFeedback.BlockReason)
	}
	if text != "" {
		return synth.ImagePayload{}, fmt.Errorf("%w: model answered with text: %s", ErrNoImage, text)
	}
	return synth.ImagePayload{}, ErrNoImage
}

func decodePayload(b64, mime string) (synth.ImagePayload, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return synth.ImagePayload{}, fmt.Errorf("decode image data: %w", err)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return synth.ImagePayload{Data: data, MimeType: mime}, nil
}
