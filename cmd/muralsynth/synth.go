/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"muralsynth/internal/config"
	"muralsynth/internal/geom"
	applog "muralsynth/internal/log"
	"muralsynth/internal/synth"
)

func newSynthCommand(a *app) *cobra.Command {
	var (
		x, y    float64
		sf      settingsFlags
		persist bool
	)
	cmd := &cobra.Command{
		Use:   "synth <board>",
		Short: "Generate an image at a canvas point from the images around it",
		Long: `Scores every image within the influence radius of the target point, asks the
prompt model to describe a blend of them and places the generated image centered
on the point. The board is saved afterwards unless --save=false is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if a.apiKey == "" {
				return fmt.Errorf("%w: run 'muralsynth auth login' or set %s", config.ErrNoAPIKey, config.EnvAPIKey)
			}
			rec, err := a.findBoard(ctx, args[0])
			if err != nil {
				return err
			}
			settings, err := sf.apply(rec.State.Settings)
			if err != nil {
				return err
			}
			rec.State.Settings = settings

			ws, err := a.workspace(rec)
			if err != nil {
				return err
			}
			if err := ws.Connect(a.apiKey); err != nil {
				return err
			}
			ctx = applog.WithBoard(ctx, rec.ID)
			l := applog.WithOperation(a.log, "synth").With(slog.String("board", rec.ID))
			l.Info("synthesis requested", slog.Float64("x", x), slog.Float64("y", y))

			res, err := ws.SynthesizeAtCanvas(ctx, geom.Pt{X: x, Y: y})
			if err != nil {
				var ge *synth.GenerationError
				if errors.As(err, &ge) {
					l.Error("synthesis failed", slog.String("stage", string(ge.Stage)), slog.Bool("auth", ge.Auth), slog.Any("err", err))
				}
				if errors.Is(err, synth.ErrAuthorization) {
					return fmt.Errorf("%w; run 'muralsynth auth login' with a valid key", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %s at (%.0f, %.0f) size %.0fx%.0f\n",
				res.ID, res.Item.Pos.X, res.Item.Pos.Y, res.Item.Size.W, res.Item.Size.H)
			fmt.Fprintf(out, "Prompt: %s\n", res.Prompt)
			for _, c := range res.Item.Provenance.Contributors {
				fmt.Fprintf(out, "  %3d%%  %s\n", c.Percent, c.SourceID)
			}
			if !persist {
				return nil
			}
			if _, err := a.save(ctx, rec, ws); err != nil {
				return fmt.Errorf("save board: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "Target point X in canvas units")
	cmd.Flags().Float64Var(&y, "y", 0, "Target point Y in canvas units")
	sf.register(cmd)
	cmd.Flags().BoolVar(&persist, "save", true, "Save the board after generating")
	return cmd
}
