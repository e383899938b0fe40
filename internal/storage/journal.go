/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"time"

	"muralsynth/internal/synth"
)

// language=SQL
// dialect=SQLite
const insertSynthesisSQL = `INSERT INTO syntheses(id, board_id, ts, model, aspect_ratio, prompt, outcome, stage, error, contributors)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const listSynthesesSQL = `SELECT id, ts, model, aspect_ratio, prompt, outcome, stage, error, contributors
	FROM syntheses WHERE board_id = ? ORDER BY ts DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneSynthesesSQL = `DELETE FROM syntheses WHERE board_id = ? AND id NOT IN (
	SELECT id FROM syntheses WHERE board_id = ? ORDER BY ts DESC LIMIT ?
)`

// JournalRecord is a stored synthesis journal row.
type JournalRecord struct {
	synth.JournalEntry
	BoardID string
	TS      time.Time
}

// RecordSynthesis appends one finished invocation to a board's journal.
func (s *SQLiteStore) RecordSynthesis(ctx context.Context, boardID string, e synth.JournalEntry) error {
	if boardID == "" {
		return errors.New("journal entry without board id")
	}
	_, err := s.db.ExecContext(ctx, insertSynthesisSQL,
		e.ID, boardID, formatTS(s.now()), e.Model, string(e.AspectRatio), e.Prompt,
		string(e.Outcome), string(e.Stage), e.Error, e.Contributors)
	return err
}

// ListSyntheses returns up to limit most recent journal rows for a board.
func (s *SQLiteStore) ListSyntheses(ctx context.Context, boardID string, limit int) ([]JournalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listSynthesesSQL, boardID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []JournalRecord
	for rows.Next() {
		var (
			r                                       JournalRecord
			ts, aspect, outcome, stage, prompt, msg string
		)
		if err := rows.Scan(&r.ID, &ts, &r.Model, &aspect, &prompt, &outcome, &stage, &msg, &r.Contributors); err != nil {
			return nil, err
		}
		r.BoardID = boardID
		r.TS = parseTS(ts)
		r.AspectRatio = synth.AspectRatio(aspect)
		r.Prompt = prompt
		r.Outcome = synth.Outcome(outcome)
		r.Stage = synth.Stage(stage)
		r.Error = msg
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneSyntheses keeps at most keepLast journal rows for the board and deletes older ones.
func (s *SQLiteStore) PruneSyntheses(ctx context.Context, boardID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneSynthesesSQL, boardID, boardID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Journal returns a synth.Journal bound to one board.
func (s *SQLiteStore) Journal(boardID string) synth.Journal {
	return boardJournal{s: s, boardID: boardID}
}

type boardJournal struct {
	s       *SQLiteStore
	boardID string
}

func (j boardJournal) RecordSynthesis(ctx context.Context, e synth.JournalEntry) error {
	return j.s.RecordSynthesis(ctx, j.boardID, e)
}
