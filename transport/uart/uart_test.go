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

package uart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	usbrelay "github.com/dstur/go-usbrelay"
)

// fakePort implements serial.Port in memory. The response bytes are served
// on the first Read; later reads return 0 bytes, like a quiet device after
// its burst.
type fakePort struct {
	response      []byte
	readErr       error
	writeErr      error
	drainErr      error
	resetInErr    error
	resetOutErr   error
	setTimeoutErr error
	shortWrite    bool

	writes      [][]byte
	served      bool
	inputReset  bool
	outputReset bool
	closed      bool
	drainCalls  int
}

func (p *fakePort) SetMode(_ *serial.Mode) error { return nil }

func (p *fakePort) Read(buf []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.served {
		return 0, nil
	}
	p.served = true
	return copy(buf, p.response), nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	written := make([]byte, len(data))
	copy(written, data)
	p.writes = append(p.writes, written)
	if p.shortWrite {
		return len(data) - 1, nil
	}
	return len(data), nil
}

func (p *fakePort) Drain() error {
	p.drainCalls++
	return p.drainErr
}

func (p *fakePort) ResetInputBuffer() error {
	if p.resetInErr != nil {
		return p.resetInErr
	}
	p.inputReset = true
	return nil
}

func (p *fakePort) ResetOutputBuffer() error {
	if p.resetOutErr != nil {
		return p.resetOutErr
	}
	p.outputReset = true
	return nil
}

func (p *fakePort) SetDTR(_ bool) error { return nil }

func (p *fakePort) SetRTS(_ bool) error { return nil }

func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }

func (p *fakePort) SetReadTimeout(_ time.Duration) error { return p.setTimeoutErr }

func (p *fakePort) Break(_ time.Duration) error { return nil }

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

var _ serial.Port = (*fakePort)(nil)

// installFakePort routes openPortFn at the given fake for one test,
// recording the open parameters.
func installFakePort(t *testing.T, port *fakePort, openErr error) (opened *bool, mode **serial.Mode) {
	t.Helper()

	var wasOpened bool
	var gotMode *serial.Mode

	original := openPortFn
	openPortFn = func(_ string, m *serial.Mode) (serial.Port, error) {
		wasOpened = true
		gotMode = m
		if openErr != nil {
			return nil, openErr
		}
		return port, nil
	}
	t.Cleanup(func() { openPortFn = original })

	return &wasOpened, &gotMode
}

// fastTransport builds a transport with the settle delay zeroed.
func fastTransport(t *testing.T) *Transport {
	t.Helper()

	tr, err := New("/dev/ttyTEST0", WithSettleDelay(0))
	require.NoError(t, err)
	return tr
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		port    string
		opts    []Option
		wantErr bool
	}{
		{name: "defaults", port: "/dev/ttyUSB0"},
		{name: "empty port", port: "", wantErr: true},
		{name: "custom baud", port: "COM8", opts: []Option{WithBaudRate(115200)}},
		{name: "zero baud", port: "COM8", opts: []Option{WithBaudRate(0)}, wantErr: true},
		{name: "negative baud", port: "COM8", opts: []Option{WithBaudRate(-1)}, wantErr: true},
		{name: "zero timeout", port: "COM8", opts: []Option{WithTimeout(0)}, wantErr: true},
		{name: "zero settle", port: "COM8", opts: []Option{WithSettleDelay(0)}},
		{name: "negative settle", port: "COM8", opts: []Option{WithSettleDelay(-time.Millisecond)}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, err := New(tt.port, tt.opts...)
			if tt.wantErr {
				require.ErrorIs(t, err, usbrelay.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.port, tr.PortName())
		})
	}
}

func TestTransactOpenFailure(t *testing.T) {
	installFakePort(t, nil, errors.New("no such device"))

	tr := fastTransport(t)
	_, err := tr.Transact(context.Background(), []byte{0xA0, 0x01, 0x01, 0xA2}, false)

	require.ErrorIs(t, err, usbrelay.ErrPortOpen)
	assert.Contains(t, err.Error(), "/dev/ttyTEST0")
	assert.Contains(t, err.Error(), "list-ports")
}

func TestTransactWriteOnly(t *testing.T) {
	port := &fakePort{response: []byte("CH1:ON")}
	installFakePort(t, port, nil)

	tr := fastTransport(t)
	payload := []byte{0xA0, 0x01, 0x01, 0xA2}
	resp, err := tr.Transact(context.Background(), payload, false)

	require.NoError(t, err)
	assert.Nil(t, resp) // response is never read when not requested
	require.Len(t, port.writes, 1)
	assert.Equal(t, payload, port.writes[0])
	assert.True(t, port.inputReset)
	assert.True(t, port.outputReset)
	assert.True(t, port.closed)
	assert.Positive(t, port.drainCalls)
}

func TestTransactReadsResponse(t *testing.T) {
	port := &fakePort{response: []byte("CH1:OFFCH2:ON")}
	installFakePort(t, port, nil)

	tr := fastTransport(t)
	resp, err := tr.Transact(context.Background(), []byte{0xA0, 0x0F, 0x02, 0xB1}, true)

	require.NoError(t, err)
	assert.Equal(t, []byte("CH1:OFFCH2:ON"), resp)
	assert.True(t, port.closed)
}

func TestTransactSilentDevice(t *testing.T) {
	port := &fakePort{}
	installFakePort(t, port, nil)

	tr := fastTransport(t)
	resp, err := tr.Transact(context.Background(), []byte{0xA0, 0x01, 0xFF, 0xA0}, true)

	// Many boards simply never answer a status query.
	require.NoError(t, err)
	assert.Empty(t, resp)
}

func TestTransactLineSettings(t *testing.T) {
	port := &fakePort{}
	_, mode := installFakePort(t, port, nil)

	tr, err := New("/dev/ttyTEST0", WithBaudRate(19200), WithSettleDelay(0))
	require.NoError(t, err)

	_, err = tr.Transact(context.Background(), []byte{0xA0, 0x01, 0x00, 0xA1}, false)
	require.NoError(t, err)

	require.NotNil(t, *mode)
	assert.Equal(t, 19200, (*mode).BaudRate)
	assert.Equal(t, 8, (*mode).DataBits)
	assert.Equal(t, serial.NoParity, (*mode).Parity)
	assert.Equal(t, serial.OneStopBit, (*mode).StopBits)
}

func TestTransactWriteFailure(t *testing.T) {
	t.Run("write error", func(t *testing.T) {
		port := &fakePort{writeErr: errors.New("device gone")}
		installFakePort(t, port, nil)

		tr := fastTransport(t)
		_, err := tr.Transact(context.Background(), []byte{0xA0, 0x01, 0x01, 0xA2}, false)

		require.ErrorIs(t, err, usbrelay.ErrTransportWrite)
		assert.True(t, port.closed)
		assert.True(t, usbrelay.HasTrace(err))
	})

	t.Run("short write", func(t *testing.T) {
		port := &fakePort{shortWrite: true}
		installFakePort(t, port, nil)

		tr := fastTransport(t)
		_, err := tr.Transact(context.Background(), []byte{0xA0, 0x01, 0x01, 0xA2}, false)

		require.ErrorIs(t, err, usbrelay.ErrTransportWrite)
		assert.Contains(t, err.Error(), "short write")
	})
}

func TestTransactReadFailure(t *testing.T) {
	port := &fakePort{readErr: errors.New("read torn down")}
	installFakePort(t, port, nil)

	tr := fastTransport(t)
	_, err := tr.Transact(context.Background(), []byte{0xA0, 0x01, 0x02, 0xA3}, true)

	require.ErrorIs(t, err, usbrelay.ErrTransportRead)
	assert.True(t, port.closed)

	// The failed transaction's trace carries the TX frame for diagnostics.
	te := usbrelay.GetTrace(err)
	require.NotNil(t, te)
	require.NotEmpty(t, te.Trace)
	assert.Equal(t, usbrelay.TraceTX, te.Trace[0].Direction)
}

func TestTransactBufferResetFailure(t *testing.T) {
	port := &fakePort{resetInErr: errors.New("ioctl failed")}
	installFakePort(t, port, nil)

	tr := fastTransport(t)
	_, err := tr.Transact(context.Background(), []byte{0xA0, 0x01, 0x01, 0xA2}, false)

	require.Error(t, err)
	var terr *usbrelay.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "reset", terr.Op)
	assert.Empty(t, port.writes) // nothing written on a dirty line
	assert.True(t, port.closed)
}

func TestTransactContextCanceled(t *testing.T) {
	opened, _ := installFakePort(t, &fakePort{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := fastTransport(t)
	_, err := tr.Transact(ctx, []byte{0xA0, 0x01, 0x01, 0xA2}, false)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, *opened)
}

func TestDrainRetriesInterruptedSyscall(t *testing.T) {
	port := &fakePort{drainErr: errors.New("interrupted system call")}
	installFakePort(t, port, nil)

	tr := fastTransport(t)
	_, err := tr.Transact(context.Background(), []byte{0xA0, 0x01, 0x01, 0xA2}, false)

	require.ErrorIs(t, err, usbrelay.ErrTransportWrite)
	assert.Equal(t, 3, port.drainCalls)
}

func TestIsInterruptedSystemCall(t *testing.T) {
	t.Parallel()

	assert.True(t, isInterruptedSystemCall(errors.New("write: interrupted system call")))
	assert.True(t, isInterruptedSystemCall(errors.New("EINTR")))
	assert.False(t, isInterruptedSystemCall(errors.New("device gone")))
	assert.False(t, isInterruptedSystemCall(nil))
}
