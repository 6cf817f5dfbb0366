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

// Package uart implements the usbrelay.Transporter interface over a serial
// port. Each transaction opens the port, writes one payload, optionally
// settles and reads, and closes the port again; CH340 relay boards behave
// most reliably when the port context is reset per command.
package uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dstur/go-usbrelay"
	"go.bug.st/serial"
)

// Line defaults. Framing is fixed at 8-N-1 with no flow control; only the
// baud rate and timing are configurable.
const (
	DefaultBaudRate    = 9600
	DefaultTimeout     = time.Second
	DefaultSettleDelay = 50 * time.Millisecond
)

const (
	// maxResponseSize caps a single transaction's response. Status replies
	// are short ASCII; anything longer is garbage.
	maxResponseSize = 128
	// drainReadTimeout bounds follow-up reads once the device has started
	// answering.
	drainReadTimeout = 20 * time.Millisecond
)

// openPortFn is replaced in tests to avoid touching real hardware.
var openPortFn = serial.Open

// Transport holds the connection parameters for one relay board's port.
// It keeps no open handle; see Transact.
type Transport struct {
	portName string
	baudRate int
	timeout  time.Duration
	settle   time.Duration
}

// Option configures a Transport.
type Option func(*Transport) error

// WithBaudRate sets the line speed (default 9600).
func WithBaudRate(baud int) Option {
	return func(t *Transport) error {
		if baud <= 0 {
			return fmt.Errorf("%w: baud rate must be positive, got %d", usbrelay.ErrInvalidParameter, baud)
		}
		t.baudRate = baud
		return nil
	}
}

// WithTimeout sets the read/write timeout for a transaction (default 1s).
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout must be positive, got %v", usbrelay.ErrInvalidParameter, timeout)
		}
		t.timeout = timeout
		return nil
	}
}

// WithSettleDelay sets how long to wait after a write before reading the
// response (default 50ms). The delay gives the board time to answer.
func WithSettleDelay(settle time.Duration) Option {
	return func(t *Transport) error {
		if settle < 0 {
			return fmt.Errorf("%w: settle delay must not be negative", usbrelay.ErrInvalidParameter)
		}
		t.settle = settle
		return nil
	}
}

// New creates a transport for the named serial port. The port is not opened
// until the first transaction.
func New(portName string, opts ...Option) (*Transport, error) {
	if portName == "" {
		return nil, fmt.Errorf("%w: port name must not be empty", usbrelay.ErrInvalidParameter)
	}

	t := &Transport{
		portName: portName,
		baudRate: DefaultBaudRate,
		timeout:  DefaultTimeout,
		settle:   DefaultSettleDelay,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// PortName returns the configured port identifier.
func (t *Transport) PortName() string {
	return t.portName
}

// Transact implements usbrelay.Transporter: open, clear buffers, write,
// optionally settle and read, close. The port is always released, whatever
// the write or read outcome.
func (t *Transport) Transact(ctx context.Context, payload []byte, readResponse bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trace := usbrelay.NewTraceBuffer(t.portName, 8)

	port, err := openPortFn(t.portName, &serial.Mode{
		BaudRate: t.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, usbrelay.NewPortOpenError(t.portName, err)
	}
	defer func() { _ = port.Close() }()

	if err := port.SetReadTimeout(t.timeout); err != nil {
		return nil, &usbrelay.TransportError{Op: "configure", Port: t.portName, Err: err}
	}

	// Stale bytes from a previous transaction must never leak into this one.
	if err := port.ResetInputBuffer(); err != nil {
		return nil, &usbrelay.TransportError{Op: "reset", Port: t.portName, Err: err}
	}
	if err := port.ResetOutputBuffer(); err != nil {
		return nil, &usbrelay.TransportError{Op: "reset", Port: t.portName, Err: err}
	}

	usbrelay.Debugf("TX: % X", payload)
	trace.RecordTX(payload, "")

	n, err := port.Write(payload)
	if err != nil {
		return nil, trace.WrapError(usbrelay.NewTransportWriteError("write", t.portName, err))
	}
	if n != len(payload) {
		return nil, trace.WrapError(usbrelay.NewTransportWriteError("write", t.portName,
			fmt.Errorf("short write: %d of %d bytes", n, len(payload))))
	}
	if err := t.drainWithRetry(port); err != nil {
		return nil, trace.WrapError(err)
	}

	if !readResponse {
		return nil, nil
	}

	time.Sleep(t.settle)

	resp, err := readAvailable(port)
	if err != nil {
		return nil, trace.WrapError(usbrelay.NewTransportReadError("read", t.portName, err))
	}

	if len(resp) > 0 {
		usbrelay.Debugf("RX: % X", resp)
	} else {
		usbrelay.Debugf("RX: (no data)")
	}
	trace.RecordRX(resp, "")

	return resp, nil
}

// readAvailable reads up to maxResponseSize bytes. The first read blocks up
// to the transaction timeout; once the device starts answering, follow-up
// reads with a short timeout collect the rest of the burst. A zero-length
// result means the device stayed silent, which is not an error.
func readAvailable(port serial.Port) ([]byte, error) {
	buf := make([]byte, maxResponseSize)

	total, err := port.Read(buf)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	for total < len(buf) {
		if err := port.SetReadTimeout(drainReadTimeout); err != nil {
			break
		}
		n, err := port.Read(buf[total:])
		if err != nil || n == 0 {
			break
		}
		total += n
	}

	return buf[:total], nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted
// system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry flushes the write buffer, retrying interrupted system calls
func (t *Transport) drainWithRetry(port serial.Port) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := port.Drain()
		if err == nil {
			return nil
		}

		if isInterruptedSystemCall(err) && attempt < maxRetries-1 {
			time.Sleep(baseDelay * time.Duration(1<<attempt)) // 2ms, 4ms
			continue
		}

		return usbrelay.NewTransportWriteError("drain", t.portName, err)
	}

	return usbrelay.NewTransportWriteError("drain", t.portName,
		fmt.Errorf("failed after %d retries", maxRetries))
}

// Ensure Transport implements usbrelay.Transporter
var _ usbrelay.Transporter = (*Transport)(nil)
