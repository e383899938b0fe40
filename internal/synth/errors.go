/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package synth

import (
	"errors"
	"strings"
)

var (
	// ErrConfiguration reports missing or invalid credentials or options. It is
	// raised before any external call and before a placeholder exists.
	ErrConfiguration = errors.New("synthesis not configured")
	// ErrEmptyInfluenceField reports that no image lies close enough to the target.
	ErrEmptyInfluenceField = errors.New("no images within influence radius")
	// ErrAuthorization matches a GenerationError caused by a rejected credential.
	ErrAuthorization = errors.New("authorization failed")
	// ErrPlaceholderGone reports that the placeholder was removed while the
	// synthesis was in flight; the generated image was discarded.
	ErrPlaceholderGone = errors.New("placeholder removed before completion")
)

// Stage names the external call that failed.
type Stage string

const (
	StagePrompt Stage = "prompt"
	StageImage  Stage = "image"
)

// GenerationError is returned when a prompt or image call fails. The
// placeholder has already been removed when the caller sees it.
type GenerationError struct {
	Stage   Stage
	Message string
	Auth    bool
	Err     error
}

func (e *GenerationError) Error() string {
	return "synthesis failed at " + string(e.Stage) + " stage: " + e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAuthorization) true for credential failures.
func (e *GenerationError) Is(target error) bool {
	return target == ErrAuthorization && e.Auth
}

// AuthFailure is implemented by backend errors that know whether they were
// caused by a rejected credential.
type AuthFailure interface {
	AuthFailure() bool
}

var authSignatures = []string{
	"requested entity was not found",
	"api key not valid",
	"api_key_invalid",
	"permission_denied",
	"unauthenticated",
}

// IsAuthFailure reports whether err stems from a rejected credential.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	var af AuthFailure
	if errors.As(err, &af) {
		return af.AuthFailure()
	}
	return LooksLikeAuthFailure(err.Error())
}

// LooksLikeAuthFailure matches known credential rejection messages.
func LooksLikeAuthFailure(msg string) bool {
	m := strings.ToLower(msg)
	for _, s := range authSignatures {
		if strings.Contains(m, s) {
			return true
		}
	}
	return false
}

func newGenerationError(stage Stage, err error) *GenerationError {
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = "the generation service returned no result"
	}
	return &GenerationError{Stage: stage, Message: msg, Auth: IsAuthFailure(err), Err: err}
}
