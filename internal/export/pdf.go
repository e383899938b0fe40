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
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"muralsynth/internal/canvas"
	"muralsynth/internal/imaging"
)

// PDFOptions controls the board PDF.
// Units are points (pt). Built-in Helvetica keeps text vector without font embedding.
//
// Layout:
//   - page 1: title and the composite render of the whole board
//   - contact sheet: every item in a grid with its id and influence
//   - provenance: one page per synthesized item with prompt and contributor shares
//
//nolint:revive // keep options grouped and explicit for clarity
type PDFOptions struct {
	Title             string
	Columns           int     // contact sheet columns, default 3
	PageWidth         float64 // default A4 portrait
	PageHeight        float64
	Margin            float64
	IncludeProvenance bool
	MaxImageEdge      int // images are downscaled to this edge before embedding, default 1600
}

const (
	defaultPageW   = 595.28
	defaultPageH   = 841.89
	defaultMargin  = 36
	defaultPDFEdge = 1600
)

func (o PDFOptions) withDefaults() PDFOptions {
	if o.Columns <= 0 {
		o.Columns = 3
	}
	if o.PageWidth <= 0 || o.PageHeight <= 0 {
		o.PageWidth, o.PageHeight = defaultPageW, defaultPageH
	}
	if o.Margin <= 0 {
		o.Margin = defaultMargin
	}
	if o.MaxImageEdge <= 0 {
		o.MaxImageEdge = defaultPDFEdge
	}
	if strings.TrimSpace(o.Title) == "" {
		o.Title = "Board"
	}
	return o
}

// ExportBoardPDF writes a contact sheet PDF of the board's idle items to outPath.
func ExportBoardPDF(items []canvas.Placeable, outPath string, opt PDFOptions) error {
	items = renderable(items)
	if len(items) == 0 {
		return ErrEmptyBoard
	}
	opt = opt.withDefaults()

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: opt.PageWidth, Ht: opt.PageHeight},
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(opt.Title, true)
	pdf.SetAuthor("muralsynth", false)
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetAutoPageBreak(false, opt.Margin)

	contentW := opt.PageWidth - 2*opt.Margin
	contentH := opt.PageHeight - 2*opt.Margin

	// Overview
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(opt.Margin, opt.Margin+14, tr(opt.Title))
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(opt.Margin, opt.Margin+30, fmt.Sprintf("%d items, %d synthesized", len(items), countSynthesized(items)))
	comp, err := RenderComposite(items, PNGOptions{MaxEdge: opt.MaxImageEdge, Padding: 8})
	if err != nil {
		return err
	}
	compPNG, err := imaging.EncodePNG(comp)
	if err != nil {
		return fmt.Errorf("encode overview: %w", err)
	}
	top := opt.Margin + 44
	registerPNG(pdf, "overview", compPNG)
	b := comp.Bounds()
	placeImage(pdf, "overview", float64(b.Dx()), float64(b.Dy()), opt.Margin, top, contentW, contentH-(top-opt.Margin))

	// Contact sheet
	gutter := 12.0
	caption := 26.0
	cellW := (contentW - float64(opt.Columns-1)*gutter) / float64(opt.Columns)
	cellH := cellW + caption
	rows := int(math.Max(1, math.Floor((contentH+gutter)/(cellH+gutter))))
	perPage := rows * opt.Columns
	for i, p := range items {
		if i%perPage == 0 {
			pdf.AddPage()
		}
		slot := i % perPage
		x := opt.Margin + float64(slot%opt.Columns)*(cellW+gutter)
		y := opt.Margin + float64(slot/opt.Columns)*(cellH+gutter)

		name := "item-" + p.ID
		if w, h, err := registerItem(pdf, name, p.Image, opt.MaxImageEdge); err == nil {
			placeImage(pdf, name, w, h, x, y, cellW, cellW)
		} else {
			pdf.SetFillColor(200, 200, 200)
			pdf.Rect(x, y, cellW, cellW, "F")
		}
		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.5)
		pdf.Rect(x, y, cellW, cellW, "D")
		pdf.SetFont("Helvetica", "", 8)
		pdf.Text(x, y+cellW+11, tr(shortID(p.ID)))
		label := fmt.Sprintf("influence %d/10", int(math.Round(p.Influence)))
		if p.Synthesized() {
			label += "  synthesized"
		}
		pdf.Text(x, y+cellW+21, label)
	}

	if opt.IncludeProvenance {
		for _, p := range items {
			if !p.Synthesized() {
				continue
			}
			provenancePage(pdf, tr, p, opt)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func provenancePage(pdf *gofpdf.Fpdf, tr func(string) string, p canvas.Placeable, opt PDFOptions) {
	pdf.AddPage()
	contentW := opt.PageWidth - 2*opt.Margin
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(opt.Margin, opt.Margin+12, tr("Provenance "+shortID(p.ID)))

	y := opt.Margin + 24
	imgBox := contentW / 2
	if w, h, err := registerItem(pdf, "item-"+p.ID, p.Image, opt.MaxImageEdge); err == nil {
		placeImage(pdf, "item-"+p.ID, w, h, opt.Margin, y, imgBox, imgBox)
	}
	y += imgBox + 16

	pv := p.Provenance
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(opt.Margin, y, "Prompt")
	if pv.Model != "" {
		pdf.SetFont("Helvetica", "", 8)
		pdf.Text(opt.Margin+60, y, tr("model "+pv.Model))
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(opt.Margin, y+4)
	pdf.MultiCell(contentW, 13, tr(pv.Prompt), "", "L", false)
	y = pdf.GetY() + 14

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Text(opt.Margin, y, "Influences")
	y += 8
	thumb := 36.0
	pdf.SetFont("Helvetica", "", 9)
	for i, c := range pv.Contributors {
		if y+thumb > opt.PageHeight-opt.Margin {
			break
		}
		name := fmt.Sprintf("thumb-%s-%d", p.ID, i)
		if w, h, err := registerItem(pdf, name, c.Thumbnail, opt.MaxImageEdge); err == nil {
			placeImage(pdf, name, w, h, opt.Margin, y, thumb, thumb)
		}
		pdf.Text(opt.Margin+thumb+8, y+thumb/2+3, tr(fmt.Sprintf("%d%%  %s", c.Percent, shortID(c.SourceID))))
		y += thumb + 6
	}
}

// registerItem decodes data, normalizes it to an 8-bit PNG gofpdf can embed and
// registers it under name. Returns the pixel size of the embedded image.
func registerItem(pdf *gofpdf.Fpdf, name string, data []byte, maxEdge int) (float64, float64, error) {
	if len(data) == 0 {
		return 0, 0, ErrEmptyBoard
	}
	if info := pdf.GetImageInfo(name); info != nil {
		return info.Width(), info.Height(), nil
	}
	src, _, err := imaging.Decode(data)
	if err != nil {
		return 0, 0, err
	}
	b := src.Bounds()
	w, h := imaging.Fit(float64(b.Dx()), float64(b.Dy()), float64(maxEdge))
	out, err := imaging.EncodePNG(imaging.Scale(src, int(math.Max(1, math.Round(w))), int(math.Max(1, math.Round(h)))))
	if err != nil {
		return 0, 0, err
	}
	registerPNG(pdf, name, out)
	return math.Round(w), math.Round(h), nil
}

func registerPNG(pdf *gofpdf.Fpdf, name string, data []byte) {
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
}

// placeImage draws a registered image centered in the box, preserving its aspect ratio.
func placeImage(pdf *gofpdf.Fpdf, name string, imgW, imgH, x, y, boxW, boxH float64) {
	if imgW <= 0 || imgH <= 0 || boxW <= 0 || boxH <= 0 {
		return
	}
	k := math.Min(boxW/imgW, boxH/imgH)
	w, h := imgW*k, imgH*k
	pdf.ImageOptions(name, x+(boxW-w)/2, y+(boxH-h)/2, w, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}

func countSynthesized(items []canvas.Placeable) int {
	n := 0
	for _, p := range items {
		if p.Synthesized() {
			n++
		}
	}
	return n
}

func shortID(id string) string {
	if len(id) > 13 {
		return id[:13]
	}
	return id
}
