/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encoded(t *testing.T, w, h int, jpg bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	var err error
	if jpg {
		err = jpeg.Encode(&buf, img, nil)
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	w, h, mime, err := Sniff(encoded(t, 40, 30, true))
	if err != nil || w != 40 || h != 30 || mime != "image/jpeg" {
		t.Fatalf("sniff = %d %d %s %v", w, h, mime, err)
	}
	if _, _, _, err := Sniff([]byte("not an image")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestThumbnailBoundsLongestEdge(t *testing.T) {
	thumb, mime, err := Thumbnail(encoded(t, 200, 100, false), 32)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("mime = %s", mime)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumb: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 16 {
		t.Fatalf("thumb size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	thumb, _, err := Thumbnailer{}.Thumbnail(context.Background(), "id", encoded(t, 20, 10, false), "image/png")
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	cfg, _ := png.DecodeConfig(bytes.NewReader(thumb))
	if cfg.Width != 20 || cfg.Height != 10 {
		t.Fatalf("small image resized to %dx%d", cfg.Width, cfg.Height)
	}
}

func TestFit(t *testing.T) {
	if w, h := Fit(600, 300, 300); w != 300 || h != 150 {
		t.Fatalf("fit = %v %v", w, h)
	}
	if w, h := Fit(100, 50, 300); w != 100 || h != 50 {
		t.Fatalf("fit should not upscale: %v %v", w, h)
	}
}
