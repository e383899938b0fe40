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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"muralsynth/internal/imaging"
)

// GetThumbnail returns a cached thumbnail and updates its last_access, or nil if absent.
func (s *SQLiteStore) GetThumbnail(ctx context.Context, sourceID string, edge int) ([]byte, string, error) {
	var blob []byte
	var mime string
	err := s.db.QueryRowContext(ctx, `SELECT blob, mime FROM thumbnails WHERE source_id=? AND edge=?`, sourceID, edge).Scan(&blob, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("query thumbnail: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE thumbnails SET last_access=? WHERE source_id=? AND edge=?`, formatTS(s.now()), sourceID, edge)
	return blob, mime, nil
}

// PutThumbnail upserts a thumbnail and enforces the cache size cap via LRU eviction.
func (s *SQLiteStore) PutThumbnail(ctx context.Context, sourceID string, edge int, mime string, blob []byte) error {
	if strings.TrimSpace(sourceID) == "" {
		return errors.New("thumbnail source id is required")
	}
	now := formatTS(s.now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO thumbnails(source_id, edge, mime, blob, size, updated_at, last_access)
		VALUES(?,?,?,?,?,?,?)
		ON CONFLICT(source_id, edge) DO UPDATE SET mime=excluded.mime, blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`,
		sourceID, edge, mime, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert thumbnail: %w", err)
	}
	if s.thumbCap > 0 {
		return s.EvictThumbnailsToFit(ctx, s.thumbCap)
	}
	return nil
}

// GetOrCreateThumbnail fetches a thumbnail or generates and stores it.
func (s *SQLiteStore) GetOrCreateThumbnail(ctx context.Context, sourceID string, edge int, gen func(context.Context) ([]byte, string, error)) ([]byte, string, error) {
	if b, mime, err := s.GetThumbnail(ctx, sourceID, edge); err != nil {
		return nil, "", err
	} else if b != nil {
		return b, mime, nil
	}
	if gen == nil {
		return nil, "", nil
	}
	data, mime, err := gen(ctx)
	if err != nil || data == nil {
		return nil, "", err
	}
	if err := s.PutThumbnail(ctx, sourceID, edge, mime, data); err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

// EvictThumbnailsToFit deletes least-recently-used rows until total size <= capBytes.
func (s *SQLiteStore) EvictThumbnailsToFit(ctx context.Context, capBytes int64) error {
	total, err := s.TotalThumbnailBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, size FROM thumbnails ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// close the cursor before writing
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM thumbnails WHERE id IN (?` + strings.Repeat(",?", len(victims)-1) + `)`
	if _, err := s.db.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// TotalThumbnailBytes returns total bytes tracked by thumbnails.size.
func (s *SQLiteStore) TotalThumbnailBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM thumbnails`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum thumbnails size: %w", err)
	}
	return total, nil
}

// SetThumbnailCap overrides the cache cap read from the environment. 0 disables eviction.
func (s *SQLiteStore) SetThumbnailCap(capBytes int64) { s.thumbCap = capBytes }

// MaxThumbnailBytesFromEnv reads MSY_THUMBS_MAX_BYTES, defaulting to 64MB if unset.
func MaxThumbnailBytesFromEnv() int64 {
	const def = 64 * 1024 * 1024
	v := os.Getenv("MSY_THUMBS_MAX_BYTES")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// CachedThumbnailer implements synth.Thumbnailer on top of the thumbnail cache.
// Source content never changes for a given id, so the id is the cache key.
type CachedThumbnailer struct {
	Store   *SQLiteStore
	MaxEdge int
}

func (c CachedThumbnailer) Thumbnail(ctx context.Context, sourceID string, data []byte, _ string) ([]byte, string, error) {
	edge := c.MaxEdge
	if edge <= 0 {
		edge = imaging.DefaultThumbEdge
	}
	return c.Store.GetOrCreateThumbnail(ctx, sourceID, edge, func(context.Context) ([]byte, string, error) {
		return imaging.Thumbnail(data, edge)
	})
}
