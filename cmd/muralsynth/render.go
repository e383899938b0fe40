/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"muralsynth/internal/export"
)

func newRenderCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a board to PDF or PNG",
	}
	cmd.AddCommand(newRenderPDFCommand(a))
	cmd.AddCommand(newRenderPNGCommand(a))
	cmd.AddCommand(newRenderBatchCommand(a))
	return cmd
}

func newRenderPDFCommand(a *app) *cobra.Command {
	var (
		opt    export.PDFOptions
		noProv bool
	)
	cmd := &cobra.Command{
		Use:   "pdf <board> [out.pdf]",
		Short: "Write an overview page, a contact sheet and provenance pages",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.findBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := fileSafe(rec.Name) + ".pdf"
			if len(args) == 2 {
				out = args[1]
			}
			if opt.Title == "" {
				opt.Title = rec.Name
			}
			opt.IncludeProvenance = !noProv
			if err := export.ExportBoardPDF(rec.State.Placeables, out, opt); err != nil {
				return err
			}
			a.log.Info("rendered pdf", slog.String("board", rec.ID), slog.String("path", out))
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&opt.Title, "title", "", "Document title (defaults to the board name)")
	cmd.Flags().IntVar(&opt.Columns, "columns", 3, "Contact sheet columns")
	cmd.Flags().IntVar(&opt.MaxImageEdge, "max-edge", 1600, "Downscale embedded images to this edge in pixels")
	cmd.Flags().BoolVar(&noProv, "no-provenance", false, "Skip provenance pages of generated images")
	return cmd
}

func newRenderPNGCommand(a *app) *cobra.Command {
	var opt export.PNGOptions
	cmd := &cobra.Command{
		Use:   "png <board> [out.png]",
		Short: "Render the board's images at their canvas positions into one PNG",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.findBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := fileSafe(rec.Name) + ".png"
			if len(args) == 2 {
				out = args[1]
			}
			if err := export.ExportBoardPNG(rec.State.Placeables, out, opt); err != nil {
				return err
			}
			a.log.Info("rendered png", slog.String("board", rec.ID), slog.String("path", out))
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", out)
			return nil
		},
	}
	cmd.Flags().Float64Var(&opt.Scale, "scale", 1, "Output pixels per canvas unit")
	cmd.Flags().IntVar(&opt.Padding, "padding", 16, "Margin around the content in pixels")
	cmd.Flags().IntVar(&opt.MaxEdge, "max-edge", 4096, "Longest output edge in pixels (0 = unlimited)")
	cmd.Flags().BoolVar(&opt.IncludeFrames, "frames", false, "Draw a border around every image")
	return cmd
}

func newRenderBatchCommand(a *app) *cobra.Command {
	var (
		preset  string
		formats []string
		outDir  string
		frames  bool
	)
	cmd := &cobra.Command{
		Use:   "batch <board>",
		Short: "Render with a preset (web: png; print: pdf and framed png)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.findBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			opt := export.BatchOptions{
				Preset:  export.PresetName(preset),
				Formats: formats,
				Title:   rec.Name,
				Base:    fileSafe(rec.Name),
				OutDir:  outDir,
			}
			if cmd.Flags().Changed("frames") {
				opt.IncludeFrames = &frames
			}
			paths, err := export.BatchExport(rec.State.Placeables, opt)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), "Wrote", filepath.Clean(p))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetWeb), "Preset: web or print")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Formats to write (pdf, png); defaults to the preset's")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&frames, "frames", false, "Override the preset's item frames")
	return cmd
}
