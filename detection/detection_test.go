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

package detection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installPorts routes listPortsFn at a fixed port list for one test.
func installPorts(t *testing.T, ports []PortInfo, err error) {
	t.Helper()

	original := listPortsFn
	listPortsFn = func() ([]PortInfo, error) {
		return ports, err
	}
	t.Cleanup(func() { listPortsFn = original })
}

func TestResolvePort(t *testing.T) {
	ch340 := PortInfo{
		Path:   "/dev/ttyUSB1",
		Name:   "ttyUSB1",
		VIDPID: "1A86:7523",
		IsUSB:  true,
	}
	builtin := PortInfo{Path: "/dev/ttyS0", Name: "ttyS0"}
	ftdi := PortInfo{
		Path:    "/dev/ttyUSB0",
		Name:    "ttyUSB0",
		VIDPID:  "0403:6001",
		Product: "FT232R USB UART",
		IsUSB:   true,
	}

	t.Run("explicit port wins even when absent", func(t *testing.T) {
		installPorts(t, []PortInfo{builtin}, nil)

		// The transport reports a missing port with more context than we
		// could here, so no existence check happens.
		port, err := ResolvePort("/dev/ttyUSB9")
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyUSB9", port)
	})

	t.Run("prefers a likely relay adapter", func(t *testing.T) {
		installPorts(t, []PortInfo{builtin, ftdi, ch340}, nil)

		port, err := ResolvePort("")
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyUSB1", port)
	})

	t.Run("falls back to the first port", func(t *testing.T) {
		installPorts(t, []PortInfo{builtin, ftdi}, nil)

		port, err := ResolvePort("")
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyS0", port)
	})

	t.Run("no ports at all", func(t *testing.T) {
		installPorts(t, nil, nil)

		_, err := ResolvePort("")
		require.ErrorIs(t, err, ErrNoPortsFound)
	})

	t.Run("enumeration failure propagates", func(t *testing.T) {
		installPorts(t, nil, errors.New("udev unavailable"))

		_, err := ResolvePort("")
		require.Error(t, err)
	})
}

func TestPorts(t *testing.T) {
	expected := []PortInfo{{Path: "COM8", Name: "COM8", VIDPID: "1A86:7523", IsUSB: true}}
	installPorts(t, expected, nil)

	ports, err := Ports()
	require.NoError(t, err)
	assert.Equal(t, expected, ports)
}

func TestIsLikelyRelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		port     PortInfo
		expected bool
	}{
		{
			name:     "CH340 by VID:PID",
			port:     PortInfo{VIDPID: "1A86:7523", IsUSB: true},
			expected: true,
		},
		{
			name:     "CH341 by VID:PID",
			port:     PortInfo{VIDPID: "1A86:5523", IsUSB: true},
			expected: true,
		},
		{
			name:     "PL2303 by VID:PID",
			port:     PortInfo{VIDPID: "067B:2303", IsUSB: true},
			expected: true,
		},
		{
			name:     "CP210x by VID:PID",
			port:     PortInfo{VIDPID: "10C4:EA60", IsUSB: true},
			expected: true,
		},
		{
			name:     "lowercase vid:pid still matches",
			port:     PortInfo{VIDPID: "1a86:7523", IsUSB: true},
			expected: true,
		},
		{
			name:     "relay keyword in product",
			port:     PortInfo{Product: "8-Channel Relay Board"},
			expected: true,
		},
		{
			name:     "ch340 keyword in product",
			port:     PortInfo{Product: "USB2.0-Ser! (CH340)"},
			expected: true,
		},
		{
			name:     "keyword in manufacturer",
			port:     PortInfo{Manufacturer: "wch.cn USB-SERIAL"},
			expected: true,
		},
		{
			name:     "FTDI adapter is not a relay",
			port:     PortInfo{VIDPID: "0403:6001", Product: "FT232R USB UART", IsUSB: true},
			expected: false,
		},
		{
			name:     "built-in UART",
			port:     PortInfo{Path: "/dev/ttyS0", Name: "ttyS0"},
			expected: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsLikelyRelay(&tt.port))
		})
	}
}
