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

package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	usbrelay "github.com/dstur/go-usbrelay"
)

// parseHexBytes turns command-line hex tokens into a payload. Tokens may be
// separated by spaces or commas, carry an optional 0x prefix, and contain
// one or more byte pairs each, so all of these mean the same payload:
//
//	A0 01 01 A2
//	0xA0,0x01,0x01,0xA2
//	A0010 1A2  (any grouping, as long as each token has even length)
func parseHexBytes(tokens []string) ([]byte, error) {
	joined := strings.ReplaceAll(strings.Join(tokens, " "), ",", " ")

	var payload []byte
	for _, chunk := range strings.Fields(joined) {
		chunk = strings.TrimPrefix(strings.TrimPrefix(chunk, "0x"), "0X")
		if chunk == "" {
			continue
		}
		if len(chunk)%2 != 0 {
			return nil, fmt.Errorf("%w: hex byte sequence must have even length, got %q",
				usbrelay.ErrInvalidParameter, chunk)
		}
		decoded, err := hex.DecodeString(chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex byte sequence %q",
				usbrelay.ErrInvalidParameter, chunk)
		}
		payload = append(payload, decoded...)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: no hex bytes given", usbrelay.ErrInvalidParameter)
	}
	return payload, nil
}
