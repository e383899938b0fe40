/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"muralsynth/internal/config"
)

func newAuthCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the API key used for generation",
	}
	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand(a))
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key in the OS keychain",
		Long: `Stores the API key in the OS keychain. Without --key the key is read from
standard input. The key is never written to the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if key == "" {
				var err error
				if key, err = readKey(cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
					return err
				}
			}
			if err := config.SaveAPIKey(key); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key stored in the OS keychain.")
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key (read from stdin when omitted)")
	return cmd
}

func readKey(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprint(prompt, "API key: ")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", config.ErrNoAPIKey
	}
	return key, nil
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the API key from the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.DeleteAPIKey(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed.")
			if os.Getenv(config.EnvAPIKey) != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Note: %s is still set in the environment.\n", config.EnvAPIKey)
			}
			return nil
		},
	}
}

func newAuthStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the API key comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, src := config.APIKey()
			out := cmd.OutOrStdout()
			switch src {
			case config.SourceEnv:
				fmt.Fprintf(out, "API key: %s (from %s)\n", mask(key), config.EnvAPIKey)
			case config.SourceKeyring:
				fmt.Fprintf(out, "API key: %s (from OS keychain)\n", mask(key))
			default:
				fmt.Fprintln(out, "API key: not configured")
			}
			fmt.Fprintf(out, "Image model:  %s\n", a.cfg.Synthesis.Model)
			fmt.Fprintf(out, "Prompt model: %s\n", a.cfg.Synthesis.PromptModel)
			fmt.Fprintf(out, "Endpoint:     %s\n", a.cfg.Backend.BaseURL)
			return nil
		},
	}
}

// mask shows only the last four characters of a secret.
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}
