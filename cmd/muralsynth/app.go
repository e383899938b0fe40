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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"muralsynth/internal/backend"
	"muralsynth/internal/config"
	"muralsynth/internal/crash"
	"muralsynth/internal/genai"
	"muralsynth/internal/imaging"
	applog "muralsynth/internal/log"
	"muralsynth/internal/storage"
	"muralsynth/internal/synth"
	"muralsynth/internal/telemetry"
	"muralsynth/internal/undo"
	"muralsynth/internal/workspace"
)

// skipInit marks commands that run without config, logging or telemetry.
const skipInit = "muralsynth/skip-init"

// app carries the process-wide wiring shared by all commands. Stores are
// opened on first use so that auth and config commands never touch a database.
type app struct {
	cfg    config.AppConfig
	apiKey string
	log    *slog.Logger
	tel    *telemetry.Client
	crash  *crash.Target

	store  storage.BoardStore
	sqlite *storage.SQLiteStore
	pg     *backend.PGStore

	ready  bool
	closed bool
}

func (a *app) init(cmd *cobra.Command) error {
	if cmd.Annotations[skipInit] != "" {
		return nil
	}
	cfg, key, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	a.cfg, a.apiKey = cfg, key
	a.log = applog.WithComponent("cli")
	a.tel = telemetry.New(telemetry.FromEnv().WithOptIn(cfg.General.TelemetryOptIn))
	if dir, err := config.ConfigDir(); err == nil {
		a.crash.Dir = dir
	}
	a.ready = true
	a.log.Debug("start", slog.String("command", cmd.CommandPath()))
	a.tel.Event("command", map[string]any{"command": cmd.Name()})
	return nil
}

func (a *app) close() {
	if !a.ready || a.closed {
		return
	}
	a.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	a.tel.Flush(ctx)
	a.tel.Close()
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.log.Warn("close board store", slog.Any("err", err))
		}
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.log.Warn("close board store", slog.Any("err", err))
		}
	}
}

// boards opens the configured board store.
func (a *app) boards(ctx context.Context) (storage.BoardStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		dsn := strings.TrimSpace(a.cfg.Store.DSN)
		if dsn == "" {
			dsn = backend.DSNFromEnv()
		}
		pg, err := backend.OpenPG(ctx, dsn)
		if err != nil {
			return nil, err
		}
		a.pg, a.store = pg, pg
	default:
		path, err := a.cfg.StorePath()
		if err != nil {
			return nil, err
		}
		s, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		a.sqlite, a.store = s, s
	}
	return a.store, nil
}

// findBoard resolves ref as a board id, a unique id prefix or a unique name.
func (a *app) findBoard(ctx context.Context, ref string) (storage.Record, error) {
	st, err := a.boards(ctx)
	if err != nil {
		return storage.Record{}, err
	}
	rec, err := st.Get(ctx, ref)
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		return rec, err
	}
	all, err := st.List(ctx)
	if err != nil {
		return storage.Record{}, err
	}
	var matches []storage.Record
	for _, r := range all {
		if strings.HasPrefix(r.ID, ref) || r.Name == ref {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return storage.Record{}, fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return storage.Record{}, fmt.Errorf("%q matches %d boards; use the full id", ref, len(matches))
	}
}

func (a *app) thumbnailer() synth.Thumbnailer {
	if a.sqlite != nil {
		return storage.CachedThumbnailer{Store: a.sqlite, MaxEdge: imaging.DefaultThumbEdge}
	}
	return imaging.Thumbnailer{MaxEdge: imaging.DefaultThumbEdge}
}

func (a *app) journal(boardID string) synth.Journal {
	switch {
	case a.sqlite != nil:
		return a.sqlite.Journal(boardID)
	case a.pg != nil:
		return a.pg.Journal(boardID)
	}
	return nil
}

// workspace builds a workspace around a stored board and registers it for crash autosave.
func (a *app) workspace(rec storage.Record) (*workspace.Workspace, error) {
	gc := genai.NewClient(a.cfg.Backend.BaseURL, a.cfg.Backend.Timeout())
	ws := workspace.New(workspace.Options{
		Settings: a.cfg.Synthesis.BoardSettings(),
		MinScale: a.cfg.Canvas.MinScale,
		MaxScale: a.cfg.Canvas.MaxScale,
		Undo: undo.Config{
			Capacity: a.cfg.Canvas.UndoCapacity,
			MaxBytes: a.cfg.Canvas.UndoMaxBytes,
		},
		Thumbnailer:    a.thumbnailer(),
		Journal:        a.journal(rec.ID),
		Events:         a.tel.Sink(),
		FallbackPrompt: a.cfg.Synthesis.DefaultPrompt,
	}, genai.NewPromptClient(gc, a.cfg.Synthesis.PromptModel), genai.NewImageClient(gc))
	if err := ws.Load(rec.State); err != nil {
		return nil, fmt.Errorf("load board %s: %w", rec.ID, err)
	}
	ws.Orchestrator().Observer = func(id string, from, to synth.State) {
		a.log.Debug("synthesis state", slog.String("synthesis", id), slog.String("from", from.String()), slog.String("to", to.String()))
	}
	a.crash.BoardID, a.crash.Name, a.crash.Board = rec.ID, rec.Name, ws
	return ws, nil
}

// save writes the workspace back under the record's id and name.
func (a *app) save(ctx context.Context, rec storage.Record, ws *workspace.Workspace) (storage.Record, error) {
	st, err := a.boards(ctx)
	if err != nil {
		return storage.Record{}, err
	}
	return st.Save(ctx, rec.Name, ws.Persistable(), rec.ID)
}
