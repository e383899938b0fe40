/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

const (
	BoardFileFormat = "muralsynth.board/v1"
	BoardFileExt    = ".board.json"
	BackupsDirName  = "backups"
)

//go:embed board.schema.json
var boardSchema []byte

// BoardFile is the on-disk exchange format of one board.
type BoardFile struct {
	Format     string    `json:"format"`
	ExportedAt time.Time `json:"exportedAt"`
	Record
}

// ErrInvalidBoardFile wraps schema violations.
var ErrInvalidBoardFile = errors.New("invalid board file")

// ValidateBoardFile checks data against the embedded board schema.
func ValidateBoardFile(data []byte) error {
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(boardSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBoardFile, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidBoardFile, strings.Join(msgs, "; "))
	}
	return nil
}

// ExportBoardFile writes rec to path with transactional semantics and a
// timestamped backup of the previous file (if present) under backups/.
func ExportBoardFile(path string, rec Record) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is required")
	}
	blob, err := EncodeState(rec.State)
	if err != nil {
		return err
	}
	if rec.State, err = DecodeState(blob); err != nil {
		return err
	}
	data, err := json.MarshalIndent(BoardFile{Format: BoardFileFormat, ExportedAt: time.Now().UTC(), Record: rec}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal board file: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		bdir := filepath.Join(dir, BackupsDirName)
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current file: %w", cerr)
		}
	}

	// write to a temp file in the same directory, then rename over target
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp file: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace board file: %w", rerr)
	}
	return nil
}

// ImportBoardFile reads and validates a board file. If the file cannot be read
// or parsed, the latest backup next to it is tried.
func ImportBoardFile(path string) (Record, error) {
	rec, err := readBoardFile(path)
	if err == nil {
		return rec, nil
	}
	brec, berr := readLatestBackup(path)
	if berr != nil {
		return Record{}, fmt.Errorf("open board file: %w; backup attempt: %v", err, berr)
	}
	return brec, nil
}

func readBoardFile(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	if err := ValidateBoardFile(b); err != nil {
		return Record{}, err
	}
	var bf BoardFile
	if err := json.Unmarshal(b, &bf); err != nil {
		return Record{}, fmt.Errorf("parse board file: %w", err)
	}
	if err := bf.State.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidBoardFile, err)
	}
	return bf.Record, nil
}

func readLatestBackup(path string) (Record, error) {
	bdir := filepath.Join(filepath.Dir(path), BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return Record{}, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return Record{}, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	return readBoardFile(candidates[len(candidates)-1])
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
