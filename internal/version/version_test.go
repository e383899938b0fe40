/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package version

import "testing"

func TestStringAppendsCommitWhenKnown(t *testing.T) {
	v, c := Version, Commit
	t.Cleanup(func() { Version, Commit = v, c })

	Version, Commit = "1.4.0", ""
	if got := String(); got != "1.4.0" {
		t.Fatalf("without commit: %q", got)
	}
	Commit = "9f3c2e1"
	if got := String(); got != "1.4.0 (9f3c2e1)" {
		t.Fatalf("with commit: %q", got)
	}
}
