/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"muralsynth/internal/canvas"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls batch export of one board to several formats.
//
// Path semantics:
//   - OutDir is created if missing; files are named <base>.pdf and <base>.png inside it.
//   - Base defaults to "board".
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Preset        PresetName
	Formats       []string // allowed: pdf, png; empty means preset defaults
	Title         string
	Base          string
	OutDir        string
	IncludeFrames *bool // when set, overrides the preset's default for item frames
}

// BatchExport runs exports according to the given preset and returns the written paths.
func BatchExport(items []canvas.Placeable, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	base := strings.TrimSpace(opt.Base)
	if base == "" {
		base = "board"
	}
	outDir := opt.OutDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	frames := presetIncludeFrames(opt.Preset)
	if opt.IncludeFrames != nil {
		frames = *opt.IncludeFrames
	}

	var written []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			out := filepath.Join(outDir, base+".pdf")
			po := PDFOptions{Title: opt.Title, IncludeProvenance: true}
			if opt.Preset == PresetWeb {
				po.MaxImageEdge = 800
			}
			if err := ExportBoardPDF(items, out, po); err != nil {
				return written, fmt.Errorf("pdf: %w", err)
			}
			written = append(written, out)
		case "png":
			out := filepath.Join(outDir, base+".png")
			po := PNGOptions{IncludeFrames: frames, Padding: 16}
			switch opt.Preset {
			case PresetWeb:
				po.MaxEdge = 2048
			case PresetPrint:
				po.Scale = 2
			}
			if err := ExportBoardPNG(items, out, po); err != nil {
				return written, fmt.Errorf("png: %w", err)
			}
			written = append(written, out)
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"pdf"}
	}
}

func presetIncludeFrames(p PresetName) bool {
	return p == PresetPrint
}
