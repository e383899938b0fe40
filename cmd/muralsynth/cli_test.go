/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"muralsynth/internal/canvas"
	"muralsynth/internal/config"
	"muralsynth/internal/synth"
)

func TestFileSafe(t *testing.T) {
	cases := map[string]string{
		"Harbor Study":  "Harbor-Study",
		"a/b\\c:d":      "a-b-c-d",
		"   ":           "board",
		"tabs\tremoved": "tabsremoved",
	}
	for in, want := range cases {
		if got := fileSafe(in); got != want {
			t.Errorf("fileSafe(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateCollapsesWhitespace(t *testing.T) {
	if got := truncate("a  quiet\nharbor", 20); got != "a quiet harbor" {
		t.Fatalf("got %q", got)
	}
	got := truncate(strings.Repeat("x", 30), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("got %q", got)
	}
}

func TestMask(t *testing.T) {
	if got := mask("abcdefgh1234"); got != "********1234" {
		t.Fatalf("got %q", got)
	}
	if got := mask("abc"); got != "***" {
		t.Fatalf("got %q", got)
	}
}

func TestSettingsFlagsApply(t *testing.T) {
	f := settingsFlags{aspect: "16:9", size: 300}
	s, err := f.apply(canvas.Settings{Model: "m", AspectRatio: "1:1", TargetSize: 512, Radius: 800})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.Model != "m" || s.AspectRatio != "16:9" || s.TargetSize != 300 || s.Radius != 800 {
		t.Fatalf("settings = %+v", s)
	}
	f = settingsFlags{aspect: "3:2"}
	if _, err := f.apply(canvas.Settings{}); !errors.Is(err, synth.ErrConfiguration) {
		t.Fatalf("invalid aspect: %v", err)
	}
}

func TestReadKey(t *testing.T) {
	key, err := readKey(strings.NewReader("  secret-key \n"), &bytes.Buffer{})
	if err != nil || key != "secret-key" {
		t.Fatalf("key=%q err=%v", key, err)
	}
	if _, err := readKey(strings.NewReader("\n"), &bytes.Buffer{}); !errors.Is(err, config.ErrNoAPIKey) {
		t.Fatalf("empty input: %v", err)
	}
}
