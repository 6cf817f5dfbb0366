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

// Package detection enumerates serial ports and resolves which one a relay
// command should target when the caller does not name a port explicitly.
package detection

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoPortsFound indicates no serial ports are visible on this system.
var ErrNoPortsFound = errors.New("no serial ports found on this system")

// PortInfo describes one visible serial port with whatever USB metadata the
// platform exposes. Non-USB ports carry only Path and Name.
type PortInfo struct {
	// Path is the device path passed to the transport
	// (e.g. /dev/ttyUSB0, COM8).
	Path string
	// Name is the short device name (e.g. ttyUSB0).
	Name string
	// VIDPID is the USB vendor:product pair, upper-case hex ("1A86:7523").
	VIDPID string
	// Manufacturer is the USB manufacturer string, when readable.
	Manufacturer string
	// Product is the USB product string.
	Product string
	// SerialNumber is the USB serial number.
	SerialNumber string
	// IsUSB reports whether the port is a USB device.
	IsUSB bool
}

// listPortsFn is replaced in tests.
var listPortsFn = listPorts

// Ports returns every serial port currently visible, USB relays or not.
// The list is what `relay list-ports` shows.
func Ports() ([]PortInfo, error) {
	return listPortsFn()
}

func listPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		port := PortInfo{
			Path:         d.Name,
			Name:         filepath.Base(d.Name),
			IsUSB:        d.IsUSB,
			Product:      d.Product,
			SerialNumber: d.SerialNumber,
		}
		if d.IsUSB && d.VID != "" {
			port.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		enrichPort(&port)
		ports = append(ports, port)
	}
	return ports, nil
}

// ResolvePort returns the port a command should use. An explicitly
// requested port always wins, even if it does not currently exist — the
// transport will report the open failure with more context. Otherwise the
// first port that looks like a USB relay adapter is chosen, falling back to
// the first port of any kind.
func ResolvePort(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}

	ports, err := listPortsFn()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoPortsFound
	}

	for i := range ports {
		if IsLikelyRelay(&ports[i]) {
			return ports[i].Path, nil
		}
	}
	return ports[0].Path, nil
}

// IsLikelyRelay checks if a serial port looks like a CH340-family relay
// board or a compatible USB-serial bridge.
func IsLikelyRelay(port *PortInfo) bool {
	// USB-serial bridges seen on these relay boards
	knownBridges := []string{
		"1A86:7523", // QinHeng CH340 (the usual suspect)
		"1A86:5523", // QinHeng CH341
		"067B:2303", // Prolific PL2303
		"10C4:EA60", // Silicon Labs CP210x
	}

	upperVIDPID := strings.ToUpper(port.VIDPID)
	for _, known := range knownBridges {
		if upperVIDPID == known {
			return true
		}
	}

	// Check product/manufacturer strings
	lowerProduct := strings.ToLower(port.Product)
	lowerManuf := strings.ToLower(port.Manufacturer)

	keywords := []string{"relay", "ch340", "ch341", "usb-serial", "usb2.0-ser"}
	for _, keyword := range keywords {
		if strings.Contains(lowerProduct, keyword) || strings.Contains(lowerManuf, keyword) {
			return true
		}
	}

	return false
}
