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
	"fmt"

	"github.com/dstur/go-usbrelay/internal/frame"
)

// Wire protocol constants. Every command is a 4-byte frame
// [0xA0, channel, action, checksum].
const (
	cmdPrefix = 0xA0

	actionOff      = 0x00
	actionOn       = 0x01
	actionQuery    = 0x02 // status query, dialect A (supports broadcast target)
	actionQueryAlt = 0xFF // status query, dialect B (per-channel only)
)

// BroadcastChannel is the pseudo-channel addressing all relays at once.
// Broadcast support is firmware-dependent; not every board honors it.
const BroadcastChannel = 0x0F

// Channel numbering and board size limits.
const (
	MinChannel = 1
	MaxChannel = 32

	// DefaultChannels is the per-board channel count assumed when the
	// caller does not configure one.
	DefaultChannels = 8
)

// State is a commanded relay state. It is a closed enumeration; the wire
// action byte is the state's value.
type State byte

const (
	// StateOff de-energizes a relay.
	StateOff State = actionOff
	// StateOn energizes a relay.
	StateOn State = actionOn
)

// String returns the state's CLI spelling.
func (s State) String() string {
	if s == StateOn {
		return "on"
	}
	return "off"
}

// ParseState parses "on" or "off". Anything else is an ErrInvalidParameter.
func ParseState(s string) (State, error) {
	switch s {
	case "on":
		return StateOn, nil
	case "off":
		return StateOff, nil
	default:
		return StateOff, fmt.Errorf("%w: state must be \"on\" or \"off\", got %q", ErrInvalidParameter, s)
	}
}

// relayFrame builds the set command for a single channel.
// Relay 1 on is A0 01 01 A2, relay 1 off is A0 01 00 A1.
func relayFrame(channel int, s State) frame.Frame {
	return frame.Build(cmdPrefix, channel, int(s))
}

// broadcastFrame builds the all-channels set command (dialect A firmware
// only; dialect B boards ignore it).
func broadcastFrame(s State) frame.Frame {
	return frame.Build(cmdPrefix, BroadcastChannel, int(s))
}

// queryFrame builds a dialect-A status query. The target may be a channel
// number or BroadcastChannel for a whole-board query.
func queryFrame(target int) frame.Frame {
	return frame.Build(cmdPrefix, target, actionQuery)
}

// queryAltFrame builds a dialect-B status query. There is no broadcast form;
// dialect-B boards must be probed per channel. Many return nothing at all.
func queryAltFrame(channel int) frame.Frame {
	return frame.Build(cmdPrefix, channel, actionQueryAlt)
}

// validChannel reports whether n is an addressable relay channel.
func validChannel(n int) bool {
	return n >= MinChannel && n <= MaxChannel
}
