/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imaging decodes dropped image files and produces scaled copies for
// thumbnails and composite renders.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultThumbEdge is the longest edge of a provenance thumbnail in pixels.
const DefaultThumbEdge = 96

// ErrUnsupported is returned for data no registered decoder understands.
var ErrUnsupported = errors.New("unsupported image format")

var mimeByFormat = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// MimeFor maps a decoder format name to its MIME type.
func MimeFor(format string) string {
	if m, ok := mimeByFormat[format]; ok {
		return m
	}
	return "application/octet-stream"
}

// Decode decodes any registered format.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupported
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Sniff reads only the header and returns the pixel size and MIME type.
func Sniff(data []byte) (w, h int, mime string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return 0, 0, "", ErrUnsupported
		}
		return 0, 0, "", fmt.Errorf("read image header: %w", err)
	}
	return cfg.Width, cfg.Height, MimeFor(format), nil
}

// Fit scales w,h down so the longer edge is at most maxEdge, keeping the ratio.
// Sizes already within bounds are returned unchanged.
func Fit(w, h, maxEdge float64) (float64, float64) {
	if w <= 0 || h <= 0 || maxEdge <= 0 {
		return w, h
	}
	longest := math.Max(w, h)
	if longest <= maxEdge {
		return w, h
	}
	k := maxEdge / longest
	return w * k, h * k
}

// Scale resamples src to w by h pixels with Catmull-Rom filtering.
func Scale(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail decodes data and returns a PNG whose longest edge is at most maxEdge.
func Thumbnail(data []byte, maxEdge int) ([]byte, string, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultThumbEdge
	}
	src, _, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	b := src.Bounds()
	w, h := Fit(float64(b.Dx()), float64(b.Dy()), float64(maxEdge))
	out, err := EncodePNG(Scale(src, int(math.Round(w)), int(math.Round(h))))
	if err != nil {
		return nil, "", err
	}
	return out, "image/png", nil
}

// Thumbnailer produces provenance thumbnails without caching.
type Thumbnailer struct {
	MaxEdge int
}

// Thumbnail implements synth.Thumbnailer.
func (t Thumbnailer) Thumbnail(_ context.Context, _ string, data []byte, _ string) ([]byte, string, error) {
	return Thumbnail(data, t.MaxEdge)
}
