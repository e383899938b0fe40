/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package synth

import (
	"fmt"
	"strconv"
	"strings"
)

// AspectRatio is a supported output frame shape, written "w:h".
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectLandscape AspectRatio = "4:3"
	AspectWide      AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

var supportedRatios = []AspectRatio{AspectSquare, AspectLandscape, AspectWide, AspectPortrait}

// SupportedAspectRatios lists the accepted values.
func SupportedAspectRatios() []AspectRatio { return append([]AspectRatio(nil), supportedRatios...) }

// ParseAspectRatio validates s. An empty string yields 1:1.
func ParseAspectRatio(s string) (AspectRatio, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AspectSquare, nil
	}
	for _, r := range supportedRatios {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported aspect ratio %q", ErrConfiguration, s)
}

// Dims returns the ratio's width and height terms.
func (a AspectRatio) Dims() (w, h float64) {
	ws, hs, ok := strings.Cut(string(a), ":")
	if !ok {
		return 1, 1
	}
	w, err1 := strconv.ParseFloat(ws, 64)
	h, err2 := strconv.ParseFloat(hs, 64)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 1, 1
	}
	return w, h
}
