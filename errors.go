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
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error categories. Transport errors surface serial-port faults; parameter
// errors are raised before any I/O is attempted.
var (
	// ErrPortOpen indicates the serial port could not be opened.
	ErrPortOpen = errors.New("serial port open failed")
	// ErrTransportWrite indicates a write to the serial port failed.
	ErrTransportWrite = errors.New("transport write failed")
	// ErrTransportRead indicates a read from the serial port failed.
	ErrTransportRead = errors.New("transport read failed")

	// ErrInvalidParameter indicates a caller-supplied value outside the
	// protocol range (channel, channel count, malformed raw bytes).
	ErrInvalidParameter = errors.New("invalid parameter")
)

// TransportError wraps serial transport failures with the operation and the
// port they occurred on. The underlying OS error is preserved for
// errors.Is/As inspection.
type TransportError struct {
	Err  error  // Underlying error
	Op   string // Operation that failed
	Port string // Port the transaction targeted
	Hint string // Optional remediation hint appended to the message
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewPortOpenError reports a failure to open the named port. The message
// names the port and points the user at port listing, per the CLI contract.
func NewPortOpenError(port string, cause error) *TransportError {
	return &TransportError{
		Op:   "open",
		Port: port,
		Err:  fmt.Errorf("%w: %w", ErrPortOpen, cause),
		Hint: "run `relay list-ports` to see available ports",
	}
}

// NewTransportWriteError reports a failed or short write.
func NewTransportWriteError(op, port string, cause error) *TransportError {
	err := error(ErrTransportWrite)
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrTransportWrite, cause)
	}
	return &TransportError{Op: op, Port: port, Err: err}
}

// NewTransportReadError reports a failed read.
func NewTransportReadError(op, port string, cause error) *TransportError {
	err := error(ErrTransportRead)
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrTransportRead, cause)
	}
	return &TransportError{Op: op, Port: port, Err: err}
}

// =============================================================================
// Wire Trace Logging
// =============================================================================
// TraceableError embeds wire-level trace data in errors, allowing consumer
// applications to access debug information when operations fail.

// TraceDirection indicates the direction of wire data
type TraceDirection string

const (
	// TraceTX indicates data sent to the relay board
	TraceTX TraceDirection = "TX"
	// TraceRX indicates data received from the relay board
	TraceRX TraceDirection = "RX"
)

// TraceEntry represents a single wire-level operation
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	hexData := formatHexBytes(e.Data)
	if e.Note != "" {
		return fmt.Sprintf("[%s] %s: %s (%s)", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData, e.Note)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, hexData)
}

// TraceableError wraps an error with wire-level trace data for debugging.
// Consumer applications can use errors.As() to extract trace information:
//
//	var te *usbrelay.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("Wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err   error
	Port  string
	Trace []TraceEntry
}

// Error implements the error interface
func (e *TraceableError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As compatibility
func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns a human-readable formatted trace log
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", e.Port)
	}

	var sb strings.Builder
	_, _ = sb.WriteString(fmt.Sprintf("[%s] Wire trace (%d entries):\n", e.Port, len(e.Trace)))

	for _, entry := range e.Trace {
		direction := ">"
		if entry.Direction == TraceRX {
			direction = "<"
		}
		hexData := formatHexBytes(entry.Data)
		if entry.Note != "" {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", direction, hexData, entry.Note))
		} else {
			_, _ = sb.WriteString(fmt.Sprintf("  %s %s\n", direction, hexData))
		}
	}

	return sb.String()
}

// formatHexBytes formats a byte slice as space-separated hex values
func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// TraceBuffer collects trace entries during a transaction.
// It uses a fixed-size buffer to limit memory usage.
type TraceBuffer struct {
	port    string
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a new trace buffer with the specified capacity
func NewTraceBuffer(port string, maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 8
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
		port:    port,
	}
}

// RecordTX records a transmission to the relay board
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX records data received from the relay board
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// record adds an entry to the buffer, evicting oldest if full
func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	// Copy data to avoid aliasing the caller's buffer
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	entry := TraceEntry{
		Direction: dir,
		Data:      dataCopy,
		Timestamp: time.Now(),
		Note:      note,
	}

	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
	} else {
		tb.entries = append(tb.entries, entry)
	}
}

// WrapError wraps an error with the collected trace data.
// Returns nil if err is nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}

	entriesCopy := make([]TraceEntry, len(tb.entries))
	copy(entriesCopy, tb.entries)

	return &TraceableError{
		Err:   err,
		Trace: entriesCopy,
		Port:  tb.port,
	}
}

// HasTrace checks if an error contains trace data
func HasTrace(err error) bool {
	var te *TraceableError
	return errors.As(err, &te)
}

// GetTrace extracts trace data from an error, returning nil if not present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}
