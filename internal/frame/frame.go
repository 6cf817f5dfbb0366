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

// Package frame implements the 4-byte command frame format used by
// CH340-based USB relay boards: [b1, b2, b3, checksum] where the checksum
// is the additive modulo-256 sum of the first three bytes.
package frame

// Size is the fixed length of every command frame.
const Size = 4

// Frame is a single wire command. Frames are immutable byte values; two
// frames with the same content are the same command.
type Frame [Size]byte

// Checksum computes the additive checksum over three frame bytes.
func Checksum(b1, b2, b3 byte) byte {
	return b1 + b2 + b3
}

// Build constructs a frame from three bytes. Inputs are masked to their low
// 8 bits before checksum computation, so out-of-range values wrap rather
// than fail. Build never errors.
func Build(b1, b2, b3 int) Frame {
	v1 := byte(b1 & 0xFF)
	v2 := byte(b2 & 0xFF)
	v3 := byte(b3 & 0xFF)
	return Frame{v1, v2, v3, Checksum(v1, v2, v3)}
}

// Valid reports whether the frame's fourth byte matches the additive
// checksum of the first three.
func (f Frame) Valid() bool {
	return f[3] == Checksum(f[0], f[1], f[2])
}

// Bytes returns the frame as a freshly allocated slice suitable for writing
// to a transport.
func (f Frame) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, f[:])
	return b
}
