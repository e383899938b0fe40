/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command muralsynth manages synthesis boards: collect reference images on an
// infinite canvas, generate new images from their neighborhood and export the result.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"muralsynth/internal/crash"
	"muralsynth/internal/version"
)

func main() {
	target := &crash.Target{}
	defer crash.Recover(target)

	a := &app{crash: target}
	rootCmd := &cobra.Command{
		Use:   "muralsynth",
		Short: "Mural Synth - generate images from their neighbors on an infinite board",
		Long: `Mural Synth keeps boards of reference images on an unbounded canvas. Pick a
point on the board and the images around it, weighted by proximity, seed a new
generated image placed right there.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newBoardCommand(a))
	rootCmd.AddCommand(newSynthCommand(a))
	rootCmd.AddCommand(newAuthCommand(a))
	rootCmd.AddCommand(newRenderCommand(a))
	rootCmd.AddCommand(newConfigCommand(a))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		a.close()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Annotations: map[string]string{
			skipInit: "true",
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Mural Synth")
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
