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

//go:build linux

package detection

import (
	"os"
	"path/filepath"
	"strings"
)

// enrichPort fills in USB descriptor strings the enumerator does not expose
// (notably the manufacturer) by walking the sysfs device tree.
func enrichPort(port *PortInfo) {
	if !port.IsUSB {
		return
	}

	devicePath := filepath.Join("/sys/class/tty", port.Name, "device")
	resolved, err := filepath.EvalSymlinks(devicePath)
	if err != nil {
		return
	}
	if !strings.Contains(resolved, "/usb") {
		return
	}

	readUSBDescriptors(port, resolved)
}

// readUSBDescriptors walks up the USB device tree looking for the node that
// carries the descriptor files.
func readUSBDescriptors(port *PortInfo, devicePath string) {
	current := devicePath
	for i := 0; i < 10; i++ { // Limit iterations to prevent infinite loops
		if readDescriptorFiles(port, current) {
			return
		}

		current = filepath.Dir(current)
		if current == "/" || current == "." {
			return
		}
	}
}

// readDescriptorFiles reads manufacturer/product/serial from one sysfs node.
// Returns true once a node with an idVendor file is found, whether or not
// the optional descriptor strings are present.
func readDescriptorFiles(port *PortInfo, path string) bool {
	// Validate path is under /sys/
	cleanPath := filepath.Clean(path)
	if !strings.HasPrefix(cleanPath, "/sys/") {
		return false
	}

	if _, err := os.Stat(filepath.Join(cleanPath, "idVendor")); err != nil {
		return false
	}

	// #nosec G304 -- Path is validated to be under /sys/
	if mfgBytes, err := os.ReadFile(filepath.Join(cleanPath, "manufacturer")); err == nil {
		port.Manufacturer = strings.TrimSpace(string(mfgBytes))
	}
	if port.Product == "" {
		// #nosec G304 -- Path is validated to be under /sys/
		if prodBytes, err := os.ReadFile(filepath.Join(cleanPath, "product")); err == nil {
			port.Product = strings.TrimSpace(string(prodBytes))
		}
	}
	if port.SerialNumber == "" {
		// #nosec G304 -- Path is validated to be under /sys/
		if serialBytes, err := os.ReadFile(filepath.Join(cleanPath, "serial")); err == nil {
			port.SerialNumber = strings.TrimSpace(string(serialBytes))
		}
	}
	return true
}
