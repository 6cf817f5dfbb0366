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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dstur/go-usbrelay/detection"
)

var portColumns = []string{"Port", "VID:PID", "Manufacturer", "Product", "Serial"}

// portFields returns a port's values in portColumns order, with "-" for
// anything the platform did not report.
func portFields(p *detection.PortInfo) []string {
	fields := []string{p.Path, p.VIDPID, p.Manufacturer, p.Product, p.SerialNumber}
	for i, f := range fields {
		if f == "" {
			fields[i] = "-"
		}
	}
	return fields
}

// formatPortsTable renders an aligned text table for --detailed output.
func formatPortsTable(ports []detection.PortInfo) string {
	rows := make([][]string, 0, len(ports)+1)
	rows = append(rows, portColumns)
	for i := range ports {
		rows = append(rows, portFields(&ports[i]))
	}

	widths := make([]int, len(portColumns))
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for rowIdx, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, " | "), " "))
		b.WriteByte('\n')

		if rowIdx == 0 {
			dividers := make([]string, len(widths))
			for i, w := range widths {
				dividers[i] = strings.Repeat("-", w)
			}
			b.WriteString(strings.Join(dividers, "-+-"))
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPortsCSV(ports []detection.PortInfo) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(portColumns); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range ports {
		if err := w.Write(portFields(&ports[i])); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV output: %w", err)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// portJSON is the stable machine-readable shape consumed by GUI wrappers
// that shell out to this tool.
type portJSON struct {
	Port         string `json:"port"`
	VIDPID       string `json:"vidpid,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
	Serial       string `json:"serial,omitempty"`
	IsUSB        bool   `json:"is_usb"`
}

func formatPortsJSON(ports []detection.PortInfo) (string, error) {
	out := make([]portJSON, 0, len(ports))
	for i := range ports {
		p := &ports[i]
		out = append(out, portJSON{
			Port:         p.Path,
			VIDPID:       p.VIDPID,
			Manufacturer: p.Manufacturer,
			Product:      p.Product,
			Serial:       p.SerialNumber,
			IsUSB:        p.IsUSB,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal ports: %w", err)
	}
	return string(data), nil
}
