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

// Package usbrelay controls CH340-based USB relay boards over a serial
// link. Commands are fixed 4-byte frames with an additive checksum; two
// incompatible firmware dialects exist in the wild, so all-channel
// operations send both the broadcast form and a per-channel loop, and
// status queries try both query encodings before giving up.
package usbrelay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dstur/go-usbrelay/internal/frame"
	"github.com/dstur/go-usbrelay/internal/syncutil"
)

// interCommandDelay is the default pause between consecutive frames of a
// multi-command operation. Boards need a moment to latch each command.
const interCommandDelay = 10 * time.Millisecond

// FailurePolicy controls what a multi-step operation does when a transport
// error occurs mid-sequence.
type FailurePolicy int

const (
	// ContinueOnError keeps going best-effort and reports the collected
	// errors at the end. This is the default: a pulse must attempt its
	// "off" leg even when the "on" leg failed, so a transient fault
	// cannot leave channels latched on.
	ContinueOnError FailurePolicy = iota
	// AbortOnError stops at the first transport error.
	AbortOnError
)

// Device is the control engine for one relay board. All operations are
// one-shot sequences of transport transactions; no connection or relay
// state is held between calls. A mutex serializes operations so concurrent
// callers cannot interleave frames on the wire.
type Device struct {
	transport Transporter
	channels  int
	delay     time.Duration
	policy    FailurePolicy
	mu        syncutil.Mutex
}

// New creates a Device driving the given transport.
func New(t Transporter, opts ...Option) (*Device, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: transport must not be nil", ErrInvalidParameter)
	}

	d := &Device{
		transport: t,
		channels:  DefaultChannels,
		delay:     interCommandDelay,
		policy:    ContinueOnError,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Channels returns the configured per-board channel count.
func (d *Device) Channels() int {
	return d.channels
}

// SetRelay switches a single channel on or off.
func (d *Device) SetRelay(ctx context.Context, channel int, s State) error {
	if err := validateChannel(channel); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(ctx, relayFrame(channel, s))
}

// PulseRelay switches a channel on, holds it for the given duration, then
// switches it off. Under ContinueOnError the off leg is attempted even if
// the on leg failed.
func (d *Device) PulseRelay(ctx context.Context, channel int, hold time.Duration) error {
	if err := validateChannel(channel); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	onErr := d.write(ctx, relayFrame(channel, StateOn))
	if onErr != nil && d.policy == AbortOnError {
		return onErr
	}

	time.Sleep(hold)

	offErr := d.write(ctx, relayFrame(channel, StateOff))
	return errors.Join(onErr, offErr)
}

// SetAll switches every channel on or off using the dual-dialect strategy:
// one broadcast frame for firmware that supports it, then a per-channel
// loop over the configured channel count for firmware that does not.
// Broadcast support cannot be detected without a working status round-trip,
// so both are always sent.
func (d *Device) SetAll(ctx context.Context, s State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setAll(ctx, s)
}

// PulseAll switches every channel on, holds, then switches every channel
// off, each phase using the SetAll compatibility strategy.
func (d *Device) PulseAll(ctx context.Context, hold time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	onErr := d.setAll(ctx, StateOn)
	if onErr != nil && d.policy == AbortOnError {
		return onErr
	}

	time.Sleep(hold)

	offErr := d.setAll(ctx, StateOff)
	return errors.Join(onErr, offErr)
}

func (d *Device) setAll(ctx context.Context, s State) error {
	var errs []error

	// Broadcast attempt. Dialect-B boards ignore it; there is no way to
	// tell whether it worked, so its outcome is not checked beyond
	// transport failure.
	if err := d.write(ctx, broadcastFrame(s)); err != nil {
		if d.policy == AbortOnError {
			return err
		}
		errs = append(errs, err)
	}
	d.pause()

	// Per-channel loop, the most compatible form.
	for ch := MinChannel; ch <= d.channels; ch++ {
		if err := d.write(ctx, relayFrame(ch, s)); err != nil {
			if d.policy == AbortOnError {
				return fmt.Errorf("channel %d: %w", ch, err)
			}
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, err))
		}
		d.pause()
	}

	return errors.Join(errs...)
}

// RelayStatus queries one channel's state. Dialect A (0x02) is tried first;
// when its reply does not mention the channel, dialect B (0xFF) is tried.
// StatusUnknown with a nil error means the board did not answer in a form
// we can decode, which is a normal outcome on many boards.
// The raw response bytes of the last attempt are returned for diagnostics.
func (d *Device) RelayStatus(ctx context.Context, channel int) (Status, []byte, error) {
	if err := validateChannel(channel); err != nil {
		return StatusUnknown, nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.probeChannel(ctx, channel)
}

// AllStatus queries every configured channel. A single dialect-A broadcast
// query is tried first; if it decodes, its result is returned as-is.
// Otherwise each channel is probed individually (dialect A then B), with
// channels that never answer reported as StatusUnknown. One channel's
// failure never aborts the sweep under ContinueOnError.
func (d *Device) AllStatus(ctx context.Context) (map[int]Status, []byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := d.transact(ctx, queryFrame(BroadcastChannel), true)
	if err != nil && d.policy == AbortOnError {
		return nil, nil, err
	}
	if err == nil {
		if decoded := DecodeStatus(raw); decoded != nil {
			states := make(map[int]Status, len(decoded))
			for ch, on := range decoded {
				states[ch] = statusFromBool(on)
			}
			return states, raw, nil
		}
	}

	// Broadcast told us nothing. Sweep the configured channels.
	states := make(map[int]Status, d.channels)
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	var lastRaw []byte

	for ch := MinChannel; ch <= d.channels; ch++ {
		st, chRaw, chErr := d.probeChannel(ctx, ch)
		states[ch] = st
		if len(chRaw) > 0 {
			lastRaw = chRaw
		}
		if chErr != nil {
			if d.policy == AbortOnError {
				return states, lastRaw, fmt.Errorf("channel %d: %w", ch, chErr)
			}
			errs = append(errs, fmt.Errorf("channel %d: %w", ch, chErr))
		}
		d.pause()
	}

	return states, lastRaw, errors.Join(errs...)
}

// probeChannel performs the dual-dialect single-channel query. Dialect B is
// only attempted when dialect A did not decode the channel.
func (d *Device) probeChannel(ctx context.Context, channel int) (Status, []byte, error) {
	raw, errA := d.transact(ctx, queryFrame(channel), true)
	if errA == nil {
		if decoded := DecodeStatus(raw); decoded != nil {
			if on, ok := decoded[channel]; ok {
				return statusFromBool(on), raw, nil
			}
		}
	} else if d.policy == AbortOnError {
		return StatusUnknown, nil, errA
	}

	rawB, errB := d.transact(ctx, queryAltFrame(channel), true)
	if errB != nil {
		return StatusUnknown, raw, errors.Join(errA, errB)
	}
	if decoded := DecodeStatus(rawB); decoded != nil {
		if on, ok := decoded[channel]; ok {
			return statusFromBool(on), rawB, nil
		}
	}

	if len(rawB) > 0 {
		raw = rawB
	}
	return StatusUnknown, raw, errA
}

// SendRaw writes an arbitrary payload without checksum validation or
// correction; the caller is responsible for frame correctness. When
// readResponse is true the raw response bytes are returned.
func (d *Device) SendRaw(ctx context.Context, payload []byte, readResponse bool) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: raw payload must not be empty", ErrInvalidParameter)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transport.Transact(ctx, payload, readResponse)
}

func (d *Device) write(ctx context.Context, f frame.Frame) error {
	_, err := d.transport.Transact(ctx, f.Bytes(), false)
	return err
}

func (d *Device) transact(ctx context.Context, f frame.Frame, readResponse bool) ([]byte, error) {
	return d.transport.Transact(ctx, f.Bytes(), readResponse)
}

func (d *Device) pause() {
	time.Sleep(d.delay)
}

// validateChannel rejects channel numbers outside the protocol range before
// any I/O happens.
func validateChannel(n int) error {
	if !validChannel(n) {
		return fmt.Errorf("%w: relay number must be %d..%d, got %d",
			ErrInvalidParameter, MinChannel, MaxChannel, n)
	}
	return nil
}
