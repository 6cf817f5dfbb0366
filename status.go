// Copyright 2026 The go-usbrelay Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package usbrelay

import (
	"regexp"
	"strconv"
)

// Status is an observed relay state. Unlike State it is tri-valued: a board
// that does not answer a query, or answers in a format we cannot decode,
// yields StatusUnknown. Unknown is a normal result, not an error.
type Status int8

const (
	// StatusUnknown means the channel's state could not be observed.
	StatusUnknown Status = iota
	// StatusOff means the board reported the channel de-energized.
	StatusOff
	// StatusOn means the board reported the channel energized.
	StatusOn
)

// String returns a human-readable status.
func (s Status) String() string {
	switch s {
	case StatusOff:
		return "off"
	case StatusOn:
		return "on"
	default:
		return "unknown"
	}
}

// statusFromBool converts a decoded on/off flag to a Status.
func statusFromBool(on bool) Status {
	if on {
		return StatusOn
	}
	return StatusOff
}

// statusTokenRe matches the ad hoc ASCII reply some firmwares emit, e.g.
// "CH1:OFFCH2:ON...CH8:OFF". There are no framing guarantees; tokens may
// appear in any order and any count.
var statusTokenRe = regexp.MustCompile(`CH(\d+):(ON|OFF)`)

// DecodeStatus extracts per-channel states from a raw status reply.
// Undecodable bytes are ignored rather than treated as failure. Returns nil
// when no token decodes: a silent device, an unsupported query and an
// unrecognized reply format are indistinguishable, and all three mean the
// caller learned nothing. Channels absent from the reply are simply absent
// from the map; absent means unknown, not off.
func DecodeStatus(raw []byte) map[int]bool {
	matches := statusTokenRe.FindAllSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	states := make(map[int]bool, len(matches))
	for _, m := range matches {
		ch, err := strconv.Atoi(string(m[1]))
		if err != nil {
			// Digit run too long for an int. Not a real channel.
			continue
		}
		states[ch] = string(m[2]) == "ON"
	}
	if len(states) == 0 {
		return nil
	}
	return states
}
