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
	"fmt"
	"time"
)

// Option configures a Device.
type Option func(*Device) error

// WithChannels sets how many relay channels the board has (1..32, default
// 8). All-channel operations loop over this count.
//
// Counts of 15 and above include channel 15, whose wire value collides with
// the 0x0F broadcast pseudo-channel on dialect-A firmware; such boards may
// treat a channel-15 command as a broadcast. The collision is a property of
// the protocol, so the count is accepted and the aliasing left to the
// board.
func WithChannels(n int) Option {
	return func(d *Device) error {
		if n < MinChannel || n > MaxChannel {
			return fmt.Errorf("%w: channel count must be %d..%d, got %d",
				ErrInvalidParameter, MinChannel, MaxChannel, n)
		}
		d.channels = n
		return nil
	}
}

// WithInterCommandDelay sets the pause between consecutive frames of a
// multi-command operation (default 10ms).
func WithInterCommandDelay(delay time.Duration) Option {
	return func(d *Device) error {
		if delay < 0 {
			return fmt.Errorf("%w: inter-command delay must not be negative", ErrInvalidParameter)
		}
		d.delay = delay
		return nil
	}
}

// WithFailurePolicy sets how multi-step operations handle mid-sequence
// transport errors (default ContinueOnError).
func WithFailurePolicy(p FailurePolicy) Option {
	return func(d *Device) error {
		switch p {
		case ContinueOnError, AbortOnError:
			d.policy = p
			return nil
		default:
			return fmt.Errorf("%w: unknown failure policy %d", ErrInvalidParameter, p)
		}
	}
}
