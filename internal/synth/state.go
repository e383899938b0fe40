/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package synth

import "fmt"

// State is a step of one synthesis invocation.
type State int

const (
	StateIdle State = iota
	StateScoring
	StatePlaceholderInserted
	StatePromptRequested
	StateImageRequested
	StateReconciled
	StateRolledBack
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateScoring:             "scoring",
	StatePlaceholderInserted: "placeholder_inserted",
	StatePromptRequested:     "prompt_requested",
	StateImageRequested:      "image_requested",
	StateReconciled:          "reconciled",
	StateRolledBack:          "rolled_back",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool { return s == StateReconciled || s == StateRolledBack }

var transitions = map[State][]State{
	StateIdle:                {StateScoring},
	StateScoring:             {StatePlaceholderInserted, StateRolledBack},
	StatePlaceholderInserted: {StatePromptRequested, StateRolledBack},
	StatePromptRequested:     {StateImageRequested, StateRolledBack},
	StateImageRequested:      {StateReconciled, StateRolledBack},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
