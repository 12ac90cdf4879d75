/*
 * Copyright 2023 ICON Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package service

import "time"

const (
	DefaultBaseDelay     = 5 * time.Second
	DefaultMaxDelay      = 5 * time.Minute
	DefaultMaxAttempts   = 8
	DefaultPollInterval  = 15 * time.Second
	DefaultSubmitTimeout = 90 * time.Second
)

// RetryPolicy bounds the automatic retry schedule of transient failures.
type RetryPolicy struct {
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	MaxAttempts int           `json:"max_attempts"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// delayFor returns the backoff before attempt n+1, given n prior
// attempts. Doubling from BaseDelay, capped at MaxDelay.
func (p RetryPolicy) delayFor(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
