/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import "sort"

// Selection is the set of selected item ids. It is owned by the interacting
// goroutine and is not safe for concurrent use.
type Selection struct {
	ids map[string]struct{}
}

func NewSelection() *Selection { return &Selection{ids: map[string]struct{}{}} }

// Select replaces the selection with id, or toggles id when multi is set.
func (s *Selection) Select(id string, multi bool) {
	if s.ids == nil {
		s.ids = map[string]struct{}{}
	}
	if !multi {
		clear(s.ids)
		s.ids[id] = struct{}{}
		return
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return
	}
	s.ids[id] = struct{}{}
}

func (s *Selection) Clear()   { clear(s.ids) }
func (s *Selection) Len() int { return len(s.ids) }

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the selected ids sorted.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Prune drops ids for which exists returns false (after undo or deletion).
func (s *Selection) Prune(exists func(id string) bool) {
	for id := range s.ids {
		if !exists(id) {
			delete(s.ids, id)
		}
	}
}
