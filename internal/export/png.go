/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"muralsynth/internal/canvas"
	"muralsynth/internal/geom"
	"muralsynth/internal/imaging"
	applog "muralsynth/internal/log"
)

// ErrEmptyBoard is returned when there is nothing to render.
var ErrEmptyBoard = errors.New("board has no renderable items")

// PNGOptions controls the composite render.
//   - Scale: output pixels per canvas unit (default 1)
//   - Padding: margin around the content bounds, in output pixels
//   - MaxEdge: longest output edge; the scale is reduced to fit (0 = unlimited)
//   - IncludeFrames: draw a 1px border around every item
//
//nolint:revive // clarity is preferred
type PNGOptions struct {
	Scale         float64
	Padding       int
	MaxEdge       int
	IncludeFrames bool
	Background    color.RGBA
	FrameColor    color.RGBA
}

// renderable returns idle items carrying image data, in stacking order.
func renderable(items []canvas.Placeable) []canvas.Placeable {
	out := make([]canvas.Placeable, 0, len(items))
	for _, p := range items {
		if p.IsPending() || !p.HasImage() {
			continue
		}
		out = append(out, p)
	}
	return out
}

// RenderComposite draws the board's idle items at their canvas positions into one image.
// Later items paint over earlier ones. Items whose data cannot be decoded are drawn
// as grey boxes so the layout stays intact.
func RenderComposite(items []canvas.Placeable, opt PNGOptions) (*image.RGBA, error) {
	items = renderable(items)
	if len(items) == 0 {
		return nil, ErrEmptyBoard
	}
	var bounds geom.Rect
	for _, p := range items {
		bounds = bounds.Union(p.Rect())
	}

	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	pad := opt.Padding
	if pad < 0 {
		pad = 0
	}
	if opt.MaxEdge > 0 {
		longest := math.Max(bounds.W, bounds.H) * scale
		if limit := float64(opt.MaxEdge - 2*pad); limit > 0 && longest > limit {
			scale *= limit / longest
		}
	}
	bg := opt.Background
	if bg == (color.RGBA{}) {
		bg = color.RGBA{255, 255, 255, 255}
	}
	fc := opt.FrameColor
	if fc == (color.RGBA{}) {
		fc = color.RGBA{0, 0, 0, 255}
	}

	pixW := int(math.Ceil(bounds.W*scale)) + 2*pad
	pixH := int(math.Ceil(bounds.H*scale)) + 2*pad
	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	l := applog.WithComponent("export")
	missing := color.RGBA{200, 200, 200, 255}
	for _, p := range items {
		r := p.Rect()
		x := int(math.Round((r.X-bounds.X)*scale)) + pad
		y := int(math.Round((r.Y-bounds.Y)*scale)) + pad
		w := int(math.Round(r.W * scale))
		h := int(math.Round(r.H * scale))
		if w < 1 || h < 1 {
			continue
		}
		dst := image.Rect(x, y, x+w, y+h)
		src, _, err := imaging.Decode(p.Image)
		if err != nil {
			l.Warn("cannot decode item; drawing placeholder", slog.String("item", p.ID), slog.Any("err", err))
			fillRect(img, x, y, x+w-1, y+h-1, missing)
		} else {
			xdraw.CatmullRom.Scale(img, dst, src, src.Bounds(), xdraw.Over, nil)
		}
		if opt.IncludeFrames {
			strokeRect(img, x, y, x+w-1, y+h-1, fc)
		}
	}
	return img, nil
}

// ExportBoardPNG renders the composite and writes it to outPath.
func ExportBoardPNG(items []canvas.Placeable, outPath string, opt PNGOptions) error {
	img, err := RenderComposite(items, opt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	// top and bottom
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	// left and right
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}
