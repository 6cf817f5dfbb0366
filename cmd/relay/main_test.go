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
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	usbrelay "github.com/dstur/go-usbrelay"
	"github.com/dstur/go-usbrelay/detection"
)

func TestParseHexBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		tokens   []string
		expected []byte
		wantErr  bool
	}{
		{
			name:     "space separated pairs",
			tokens:   []string{"A0", "01", "01", "A2"},
			expected: []byte{0xA0, 0x01, 0x01, 0xA2},
		},
		{
			name:     "0x prefixes and commas",
			tokens:   []string{"0xA0,0x01,0x01,0xA2"},
			expected: []byte{0xA0, 0x01, 0x01, 0xA2},
		},
		{
			name:     "lowercase",
			tokens:   []string{"a0", "0f", "01", "b0"},
			expected: []byte{0xA0, 0x0F, 0x01, 0xB0},
		},
		{
			name:     "one run of pairs",
			tokens:   []string{"A00101A2"},
			expected: []byte{0xA0, 0x01, 0x01, 0xA2},
		},
		{
			name:     "mixed grouping",
			tokens:   []string{"A001", "01", "A2"},
			expected: []byte{0xA0, 0x01, 0x01, 0xA2},
		},
		{name: "odd length", tokens: []string{"A0", "1"}, wantErr: true},
		{name: "not hex", tokens: []string{"A0", "GG"}, wantErr: true},
		{name: "no tokens", tokens: nil, wantErr: true},
		{name: "only separators", tokens: []string{",", ","}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload, err := parseHexBytes(tt.tokens)
			if tt.wantErr {
				require.ErrorIs(t, err, usbrelay.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, payload)
		})
	}
}

func TestStatusValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1", statusValue(usbrelay.StatusOn))
	assert.Equal(t, "0", statusValue(usbrelay.StatusOff))
	assert.Equal(t, "?", statusValue(usbrelay.StatusUnknown))
}

func TestSecondsToDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Second, secondsToDuration(1.0))
	assert.Equal(t, 1500*time.Millisecond, secondsToDuration(1.5))
	assert.Equal(t, time.Duration(0), secondsToDuration(0))
}

func testPorts() []detection.PortInfo {
	return []detection.PortInfo{
		{
			Path:         "/dev/ttyUSB0",
			Name:         "ttyUSB0",
			VIDPID:       "1A86:7523",
			Manufacturer: "wch.cn",
			Product:      "USB2.0-Ser!",
			SerialNumber: "5&1A2B3C",
			IsUSB:        true,
		},
		{
			Path: "/dev/ttyS0",
			Name: "ttyS0",
		},
	}
}

func TestFormatPortsTable(t *testing.T) {
	t.Parallel()

	out := formatPortsTable(testPorts())
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4) // header, divider, two ports

	assert.Contains(t, lines[0], "Port | VID:PID")
	assert.Contains(t, lines[1], "-+-")
	assert.Contains(t, lines[2], "/dev/ttyUSB0")
	assert.Contains(t, lines[2], "1A86:7523")
	assert.Contains(t, lines[3], "/dev/ttyS0")
	assert.Contains(t, lines[3], "-") // missing fields rendered as dashes
}

func TestFormatPortsCSV(t *testing.T) {
	t.Parallel()

	out, err := formatPortsCSV(testPorts())
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Port,VID:PID,Manufacturer,Product,Serial", lines[0])
	assert.Equal(t, "/dev/ttyUSB0,1A86:7523,wch.cn,USB2.0-Ser!,5&1A2B3C", lines[1])
	assert.Equal(t, "/dev/ttyS0,-,-,-,-", lines[2])
}

func TestFormatPortsJSON(t *testing.T) {
	t.Parallel()

	out, err := formatPortsJSON(testPorts())
	require.NoError(t, err)

	assert.Contains(t, out, `"port": "/dev/ttyUSB0"`)
	assert.Contains(t, out, `"vidpid": "1A86:7523"`)
	assert.Contains(t, out, `"is_usb": true`)
	// Empty optional fields are omitted for the built-in UART.
	assert.Contains(t, out, `"port": "/dev/ttyS0"`)
	assert.NotContains(t, out, `"vidpid": ""`)
}

func TestRunCommandUnknown(t *testing.T) {
	t.Parallel()

	err := runCommand(context.Background(), &config{}, "reboot", nil)
	require.ErrorIs(t, err, errUsage)
}
