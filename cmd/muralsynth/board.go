/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"muralsynth/internal/canvas"
	"muralsynth/internal/geom"
	"muralsynth/internal/storage"
	"muralsynth/internal/synth"
)

func newBoardCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Create, list and edit boards",
	}
	cmd.AddCommand(newBoardNewCommand(a))
	cmd.AddCommand(newBoardAddCommand(a))
	cmd.AddCommand(newBoardListCommand(a))
	cmd.AddCommand(newBoardShowCommand(a))
	cmd.AddCommand(newBoardDeleteCommand(a))
	cmd.AddCommand(newBoardImportCommand(a))
	cmd.AddCommand(newBoardExportCommand(a))
	cmd.AddCommand(newBoardJournalCommand(a))
	return cmd
}

// settingsFlags are the per-board synthesis overrides shared by several commands.
type settingsFlags struct {
	model  string
	aspect string
	size   float64
	radius float64
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.model, "model", "", "Image model")
	cmd.Flags().StringVar(&f.aspect, "aspect", "", "Aspect ratio of generated images (1:1, 4:3, 16:9, 9:16)")
	cmd.Flags().Float64Var(&f.size, "size", 0, "Width of generated images in canvas units")
	cmd.Flags().Float64Var(&f.radius, "radius", 0, "Influence radius in canvas units")
}

func (f *settingsFlags) apply(s canvas.Settings) (canvas.Settings, error) {
	if f.model != "" {
		s.Model = f.model
	}
	if f.aspect != "" {
		r, err := synth.ParseAspectRatio(f.aspect)
		if err != nil {
			return s, err
		}
		s.AspectRatio = string(r)
	}
	if f.size > 0 {
		s.TargetSize = f.size
	}
	if f.radius > 0 {
		s.Radius = f.radius
	}
	return s, nil
}

func newBoardNewCommand(a *app) *cobra.Command {
	var sf settingsFlags
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create an empty board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.boards(ctx)
			if err != nil {
				return err
			}
			settings, err := sf.apply(a.cfg.Synthesis.BoardSettings())
			if err != nil {
				return err
			}
			snap := canvas.Snapshot{Version: canvas.SnapshotVersion, Settings: settings}
			rec, err := st.Save(ctx, args[0], snap, "")
			if err != nil {
				return err
			}
			a.log.Info("board created", slog.String("board", rec.ID), slog.String("name", rec.Name))
			fmt.Fprintf(cmd.OutOrStdout(), "Created board %q (%s)\n", rec.Name, rec.ID)
			return nil
		},
	}
	sf.register(cmd)
	return cmd
}

func newBoardAddCommand(a *app) *cobra.Command {
	var x, y, gap float64
	cmd := &cobra.Command{
		Use:   "add <board> <image>...",
		Short: "Place images on a board, left to right starting at --x/--y",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := a.findBoard(ctx, args[0])
			if err != nil {
				return err
			}
			ws, err := a.workspace(rec)
			if err != nil {
				return err
			}
			left := x
			for _, path := range args[1:] {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				// The default view is the identity, so screen and canvas coincide.
				id, err := ws.AddImage(data, geom.Pt{})
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				p, _ := ws.Board().Get(id)
				ws.Board().Move(id, geom.Pt{X: left, Y: y - p.Size.H/2})
				left += p.Size.W + gap
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s (%.0fx%.0f)\n", filepath.Base(path), id, p.Size.W, p.Size.H)
			}
			_, err = a.save(ctx, rec, ws)
			return err
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "Left edge of the first image")
	cmd.Flags().Float64Var(&y, "y", 0, "Vertical center of the images")
	cmd.Flags().Float64Var(&gap, "gap", 20, "Horizontal gap between images")
	return cmd
}

func newBoardListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List boards, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.boards(ctx)
			if err != nil {
				return err
			}
			recs, err := st.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tITEMS\tUPDATED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.Name, len(r.State.Placeables), r.UpdatedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
}

func newBoardShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <board>",
		Short: "Show a board's settings and items in paint order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.findBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func printBoard(w io.Writer, rec storage.Record) {
	s := rec.State.Settings
	fmt.Fprintf(w, "Board:    %s (%s)\n", rec.Name, rec.ID)
	fmt.Fprintf(w, "Updated:  %s\n", rec.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Settings: model=%s aspect=%s size=%.0f radius=%.0f\n", orDash(s.Model), orDash(s.AspectRatio), s.TargetSize, s.Radius)
	if len(rec.State.Placeables) == 0 {
		fmt.Fprintln(w, "No items.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tX\tY\tW\tH\tKIND\tDETAIL")
	for _, p := range rec.State.Placeables {
		kind, detail := "image", p.MimeType
		if p.Provenance != nil {
			kind = "generated"
			detail = truncate(p.Provenance.Prompt, 48)
		}
		fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\t%.0f\t%s\t%s\n", p.ID, p.Pos.X, p.Pos.Y, p.Size.W, p.Size.H, kind, detail)
	}
	_ = tw.Flush()
}

func newBoardDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <board>",
		Short: "Delete a board and its synthesis journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := a.findBoard(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.store.Delete(ctx, rec.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted board %q (%s)\n", rec.Name, rec.ID)
			return nil
		},
	}
}

func newBoardImportCommand(a *app) *cobra.Command {
	var name string
	var keepID bool
	cmd := &cobra.Command{
		Use:   "import <file" + storage.BoardFileExt + ">",
		Short: "Import a board file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := storage.ImportBoardFile(args[0])
			if err != nil {
				return err
			}
			st, err := a.boards(ctx)
			if err != nil {
				return err
			}
			if name != "" {
				rec.Name = name
			}
			id := ""
			if keepID {
				id = rec.ID
			}
			saved, err := st.Save(ctx, rec.Name, rec.State, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items as board %q (%s)\n", len(saved.State.Placeables), saved.Name, saved.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name for the imported board")
	cmd.Flags().BoolVar(&keepID, "keep-id", false, "Keep the file's board id, replacing a stored board with the same id")
	return cmd
}

func newBoardExportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <board> [file]",
		Short: "Write a board file; an existing file is backed up first",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.findBoard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path := fileSafe(rec.Name) + storage.BoardFileExt
			if len(args) == 2 {
				path = args[1]
			}
			if err := storage.ExportBoardFile(path, rec); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
			return nil
		},
	}
}

func newBoardJournalCommand(a *app) *cobra.Command {
	var limit, keep int
	cmd := &cobra.Command{
		Use:   "journal <board>",
		Short: "List recent syntheses of a board (SQLite store only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := a.findBoard(ctx, args[0])
			if err != nil {
				return err
			}
			if a.sqlite == nil {
				return fmt.Errorf("the %s store keeps no readable journal", a.cfg.Store.Driver)
			}
			if keep > 0 {
				n, err := a.sqlite.PruneSyntheses(ctx, rec.ID, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries\n", n)
			}
			return printJournal(ctx, cmd.OutOrStdout(), a.sqlite, rec.ID, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	cmd.Flags().IntVar(&keep, "prune", 0, "Keep only the newest N entries")
	return cmd
}

func printJournal(ctx context.Context, w io.Writer, s *storage.SQLiteStore, boardID string, limit int) error {
	rows, err := s.ListSyntheses(ctx, boardID, limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No syntheses recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tOUTCOME\tMODEL\tREFS\tDETAIL")
	for _, r := range rows {
		detail := truncate(r.Prompt, 48)
		if r.Error != "" {
			detail = string(r.Stage) + ": " + truncate(r.Error, 48)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.TS.Local().Format(time.DateTime), r.Outcome, r.Model, r.Contributors, detail)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// fileSafe turns a board name into a file name.
func fileSafe(name string) string {
	name = strings.TrimSpace(name)
	b := strings.Builder{}
	for _, r := range name {
		switch {
		case r == ' ' || r == '/' || r == '\\' || r == ':':
			b.WriteRune('-')
		case r < 32:
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "board"
	}
	return b.String()
}
