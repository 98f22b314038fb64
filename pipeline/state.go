// Copyright © 2024 Meroxa, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

// State is a step of the job. A run moves through the states in declaration
// order and stops in StateDone, or in StateFailed from any step.
type State int

const (
	StateStart State = iota
	StateConfigLoaded
	StateSessionOpen
	StateFetched
	StateUploaded
	StateVerified
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateStart:        "START",
	StateConfigLoaded: "CONFIG_LOADED",
	StateSessionOpen:  "SESSION_OPEN",
	StateFetched:      "FETCHED",
	StateUploaded:     "UPLOADED",
	StateVerified:     "VERIFIED",
	StateDone:         "DONE",
	StateFailed:       "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}
