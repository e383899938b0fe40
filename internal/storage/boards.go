/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"muralsynth/internal/canvas"
)

// ErrNotFound is returned when a board id does not exist.
var ErrNotFound = errors.New("board not found")

// Record is a stored board.
type Record struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	State     canvas.Snapshot `json:"board"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// BoardStore persists named boards. Save with an empty id creates a new board;
// with an id it creates or replaces that board.
type BoardStore interface {
	Save(ctx context.Context, name string, state canvas.Snapshot, id string) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}

// EncodeState serializes the persistable part of a board. Pending placeholders are dropped.
func EncodeState(s canvas.Snapshot) ([]byte, error) {
	out := canvas.Snapshot{Version: canvas.SnapshotVersion, Settings: s.Settings, Placeables: []canvas.Placeable{}}
	for _, p := range s.Placeables {
		if p.State == canvas.Pending {
			continue
		}
		out.Placeables = append(out.Placeables, p)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal board: %w", err)
	}
	return b, nil
}

// DecodeState parses a stored board.
func DecodeState(b []byte) (canvas.Snapshot, error) {
	var s canvas.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return canvas.Snapshot{}, fmt.Errorf("parse board: %w", err)
	}
	if s.Version > canvas.SnapshotVersion {
		return canvas.Snapshot{}, fmt.Errorf("board format version %d is newer than supported %d", s.Version, canvas.SnapshotVersion)
	}
	if s.Placeables == nil {
		s.Placeables = []canvas.Placeable{}
	}
	return s, nil
}

// NewBoardID returns a fresh board identifier.
func NewBoardID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// language=SQL
// dialect=SQLite
const upsertBoardSQL = `INSERT INTO boards(id, name, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET name=excluded.name, state=excluded.state, updated_at=excluded.updated_at`

// language=SQL
// dialect=SQLite
const selectBoardSQL = `SELECT id, name, state, created_at, updated_at FROM boards WHERE id = ?`

// language=SQL
// dialect=SQLite
const listBoardsSQL = `SELECT id, name, state, created_at, updated_at FROM boards ORDER BY updated_at DESC, id`

// Save implements BoardStore.
func (s *SQLiteStore) Save(ctx context.Context, name string, state canvas.Snapshot, id string) (Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Record{}, errors.New("board name is required")
	}
	blob, err := EncodeState(state)
	if err != nil {
		return Record{}, err
	}
	if id == "" {
		id = NewBoardID()
	}
	now := formatTS(s.now())
	if _, err := s.db.ExecContext(ctx, upsertBoardSQL, id, name, blob, now, now); err != nil {
		s.log.ErrorContext(ctx, "save board failed", slog.String("board", id), slog.Any("err", err))
		return Record{}, fmt.Errorf("save board: %w", err)
	}
	return s.Get(ctx, id)
}

// Get implements BoardStore.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectBoardSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List implements BoardStore, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, listBoardsSQL)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete implements BoardStore. The board's journal rows go with it.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM syntheses WHERE board_id = ?`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete journal: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (Record, error) {
	var (
		rec              Record
		blob             []byte
		created, updated string
	)
	if err := r.Scan(&rec.ID, &rec.Name, &blob, &created, &updated); err != nil {
		return Record{}, err
	}
	st, err := DecodeState(blob)
	if err != nil {
		return Record{}, fmt.Errorf("board %s: %w", rec.ID, err)
	}
	rec.State = st
	rec.CreatedAt = parseTS(created)
	rec.UpdatedAt = parseTS(updated)
	return rec, nil
}
