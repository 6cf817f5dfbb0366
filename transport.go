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
	"context"
	"sync"
)

// Transporter performs one serial transaction: open the port, clear stale
// buffers, write the payload, optionally settle and read a response, and
// close the port again. No connection survives between calls; some relay
// firmwares need the port context reset per command, so throughput is
// traded for compatibility.
type Transporter interface {
	// Transact writes payload and, when readResponse is true, returns
	// whatever the device sent back within the transport's settle window.
	// An empty (or nil) response with a nil error is a normal outcome.
	Transact(ctx context.Context, payload []byte, readResponse bool) ([]byte, error)

	// PortName returns the port identifier used in error messages.
	PortName() string
}

// MockTransport provides a scripted Transporter for testing. It records
// every payload written and serves configured responses keyed by payload.
type MockTransport struct {
	responses map[string][]byte
	errors    map[string]error
	failAll   error
	writes    [][]byte
	reads     int
	port      string
	mu        sync.Mutex
}

// NewMockTransport creates a mock transport reporting the given port name.
func NewMockTransport(port string) *MockTransport {
	return &MockTransport{
		port:      port,
		responses: make(map[string][]byte),
		errors:    make(map[string]error),
	}
}

// Transact implements Transporter.
func (m *MockTransport) Transact(_ context.Context, payload []byte, readResponse bool) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	written := make([]byte, len(payload))
	copy(written, payload)
	m.writes = append(m.writes, written)

	if m.failAll != nil {
		return nil, m.failAll
	}
	if err, ok := m.errors[string(payload)]; ok {
		return nil, err
	}

	if !readResponse {
		return nil, nil
	}
	m.reads++

	if resp, ok := m.responses[string(payload)]; ok {
		out := make([]byte, len(resp))
		copy(out, resp)
		return out, nil
	}
	return nil, nil
}

// PortName implements Transporter.
func (m *MockTransport) PortName() string {
	return m.port
}

// Test helper methods

// SetResponse configures the response served for an exact payload.
func (m *MockTransport) SetResponse(payload, response []byte) {
	m.mu.Lock()
	m.responses[string(payload)] = response
	m.mu.Unlock()
}

// SetError configures an error returned for an exact payload.
func (m *MockTransport) SetError(payload []byte, err error) {
	m.mu.Lock()
	m.errors[string(payload)] = err
	m.mu.Unlock()
}

// FailAll makes every transaction return err until reset with nil.
func (m *MockTransport) FailAll(err error) {
	m.mu.Lock()
	m.failAll = err
	m.mu.Unlock()
}

// Writes returns every payload written, in order.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	copy(out, m.writes)
	return out
}

// WriteCount returns the number of transactions performed.
func (m *MockTransport) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// CallCount returns how many times an exact payload was written.
func (m *MockTransport) CallCount(payload []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, w := range m.writes {
		if string(w) == string(payload) {
			count++
		}
	}
	return count
}

// Reset clears recorded writes and injected errors.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.writes = nil
	m.reads = 0
	m.failAll = nil
	m.errors = make(map[string]error)
	m.mu.Unlock()
}

// Ensure MockTransport implements Transporter
var _ Transporter = (*MockTransport)(nil)
