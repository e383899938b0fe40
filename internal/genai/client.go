/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package genai talks to a Gemini-style REST API for prompt and image generation.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"muralsynth/internal/synth"
)

// DefaultBaseURL is the public generative language endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Client is a minimal HTTP client shared by the prompt and image clients.
// The API key is passed per request and never stored.
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it will be normalized.
// A non-positive timeout selects 120s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	b := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if b == "" {
		b = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{BaseURL: b, client: &http.Client{Timeout: timeout}}
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Status     string // e.g. PERMISSION_DENIED
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Status != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Status, msg)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, msg)
}

// AuthFailure reports whether the service rejected the credential.
func (e *APIError) AuthFailure() bool {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return true
	}
	return synth.LooksLikeAuthFailure(e.Status) || synth.LooksLikeAuthFailure(e.Message)
}

// IsAuthFailure reports whether err is a credential rejection.
func IsAuthFailure(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.AuthFailure()
	}
	return err != nil && synth.LooksLikeAuthFailure(err.Error())
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) doJSON(ctx context.Context, method, path, apiKey string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ae := &APIError{StatusCode: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
			ae.Status, ae.Message = env.Error.Status, env.Error.Message
		} else {
			ae.Message = strings.TrimSpace(string(raw))
		}
		return ae
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", u.Path, err)
	}
	return nil
}

func modelPath(model, method string) string {
	return "/v1beta/models/" + url.PathEscape(strings.TrimPrefix(model, "models/")) + ":" + method
}

// wire types shared by generateContent requests and responses

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}
