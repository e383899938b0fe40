/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"muralsynth/internal/canvas"
	"muralsynth/internal/geom"
)

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func sampleBoard(t *testing.T) []canvas.Placeable {
	t.Helper()
	red := solidPNG(t, 40, 40, color.RGBA{255, 0, 0, 255})
	blue := solidPNG(t, 40, 20, color.RGBA{0, 0, 255, 255})
	return []canvas.Placeable{
		{ID: "red", Pos: geom.Pt{X: 0, Y: 0}, Size: geom.Size{W: 100, H: 100}, Image: red, MimeType: "image/png", Influence: 5},
		{ID: "blue", Pos: geom.Pt{X: 150, Y: 50}, Size: geom.Size{W: 100, H: 50}, Image: blue, MimeType: "image/png", Influence: 2,
			Provenance: &canvas.Provenance{Prompt: "a blue band, calm and wide", Model: "imagen", Contributors: []canvas.Contributor{
				{SourceID: "red", Percent: 100, Thumbnail: red, ThumbnailMime: "image/png"},
			}}},
		{ID: "pending", Pos: geom.Pt{X: 1000, Y: 1000}, Size: geom.Size{W: 100, H: 100}, State: canvas.Pending},
	}
}

func TestRenderCompositePlacesItemsAtCanvasPositions(t *testing.T) {
	img, err := RenderComposite(sampleBoard(t), PNGOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// bounds are (0,0)-(250,100); the pending item is ignored
	if b := img.Bounds(); b.Dx() != 250 || b.Dy() != 100 {
		t.Fatalf("unexpected size %v", b)
	}
	if c := img.RGBAAt(50, 50); c.R < 200 || c.B > 50 {
		t.Fatalf("expected red at (50,50), got %v", c)
	}
	if c := img.RGBAAt(200, 75); c.B < 200 || c.R > 50 {
		t.Fatalf("expected blue at (200,75), got %v", c)
	}
	if c := img.RGBAAt(125, 20); c != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("expected background between items, got %v", c)
	}
}

func TestRenderCompositeScaleFramesAndMaxEdge(t *testing.T) {
	img, err := RenderComposite(sampleBoard(t), PNGOptions{Scale: 2, Padding: 4, IncludeFrames: true})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 508 || b.Dy() != 208 {
		t.Fatalf("unexpected size %v", b)
	}
	if c := img.RGBAAt(4, 4); c != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("expected frame pixel, got %v", c)
	}
	small, err := RenderComposite(sampleBoard(t), PNGOptions{MaxEdge: 125})
	if err != nil {
		t.Fatalf("render small: %v", err)
	}
	if b := small.Bounds(); b.Dx() != 125 || b.Dy() != 50 {
		t.Fatalf("max edge not honored: %v", b)
	}
}

func TestRenderCompositeUndecodableItemDrawsPlaceholder(t *testing.T) {
	items := []canvas.Placeable{{ID: "x", Size: geom.Size{W: 20, H: 20}, Image: []byte("not an image")}}
	img, err := RenderComposite(items, PNGOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if c := img.RGBAAt(10, 10); c != (color.RGBA{200, 200, 200, 255}) {
		t.Fatalf("expected grey placeholder, got %v", c)
	}
}

func TestRenderEmptyBoard(t *testing.T) {
	pending := []canvas.Placeable{{ID: "p", Size: geom.Size{W: 1, H: 1}, State: canvas.Pending}}
	if _, err := RenderComposite(pending, PNGOptions{}); !errors.Is(err, ErrEmptyBoard) {
		t.Fatalf("expected ErrEmptyBoard, got %v", err)
	}
	if err := ExportBoardPDF(nil, filepath.Join(t.TempDir(), "x.pdf"), PDFOptions{}); !errors.Is(err, ErrEmptyBoard) {
		t.Fatalf("expected ErrEmptyBoard from pdf, got %v", err)
	}
}

func TestExportBoardPNGWritesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "board.png")
	if err := ExportBoardPNG(sampleBoard(t), out, PNGOptions{}); err != nil {
		t.Fatalf("export png: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 250 || cfg.Height != 100 {
		t.Fatalf("unexpected png size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestExportBoardPDF_CreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "board.pdf")
	err := ExportBoardPDF(sampleBoard(t), out, PDFOptions{Title: "Harbor – Étude", IncludeProvenance: true, Columns: 2})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
}

func TestBatchExportPresets(t *testing.T) {
	dir := t.TempDir()
	paths, err := BatchExport(sampleBoard(t), BatchOptions{Preset: PresetPrint, OutDir: dir, Base: "harbor", Title: "Harbor"})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected pdf and png, got %v", paths)
	}
	for _, p := range paths {
		if st, err := os.Stat(p); err != nil || st.Size() == 0 {
			t.Fatalf("missing output %s: %v", p, err)
		}
	}
	if _, err := BatchExport(sampleBoard(t), BatchOptions{Formats: []string{"cbz"}, OutDir: dir}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	web, err := BatchExport(sampleBoard(t), BatchOptions{Preset: PresetWeb, OutDir: dir})
	if err != nil || len(web) != 1 || filepath.Base(web[0]) != "board.png" {
		t.Fatalf("web preset: %v %v", web, err)
	}
}
