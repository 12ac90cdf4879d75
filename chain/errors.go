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

package chain

import (
	"github.com/icon-project/minthub/common/errors"
)

// Normalized adapter error codes. Every adapter maps its SDK errors to
// one of these before returning; the original message survives through
// wrapping.
const (
	ChainUnavailableError errors.Code = iota + errors.CodeChain
	ChainRejectedError
	InsufficientChainFundsError
	ChainNotFoundError
)

var (
	// ErrChainUnavailable means the chain endpoint could not serve the
	// call. Transient, safe to retry.
	ErrChainUnavailable = errors.NewBase(ChainUnavailableError, "ChainUnavailable")

	// ErrChainRejected means the operation itself is invalid on-chain.
	ErrChainRejected = errors.NewBase(ChainRejectedError, "ChainRejected")

	// ErrInsufficientChainFunds means the treasury cannot pay the
	// on-chain fees. Permanent until an operator tops up and retries.
	ErrInsufficientChainFunds = errors.NewBase(InsufficientChainFundsError, "InsufficientChainFunds")

	// ErrChainNotFound means the target account does not exist on-chain.
	ErrChainNotFound = errors.NewBase(ChainNotFoundError, "NotFound")
)

// IsTransient reports whether the error is worth an automatic retry.
func IsTransient(err error) bool {
	return errors.CodeOf(err) == ChainUnavailableError
}

// KindOf returns the stable name of the normalized error kind, used in
// outbound failure events.
func KindOf(err error) string {
	switch errors.CodeOf(err) {
	case ChainUnavailableError:
		return "ChainUnavailable"
	case ChainRejectedError:
		return "ChainRejected"
	case InsufficientChainFundsError:
		return "InsufficientChainFunds"
	case ChainNotFoundError:
		return "NotFound"
	default:
		return "Unknown"
	}
}
