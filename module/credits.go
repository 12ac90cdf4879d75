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

package module

import (
	"context"
)

// CreditsGate is the narrow contract against the external billing
// ledger. A held authorization reaches exactly one of Finalize or
// Reverse; the core retries failed settlement calls until one of them
// lands.
type CreditsGate interface {
	// Authorize holds amount credits for the given reference. The
	// reference is the attempt ID and correlates the hold with one
	// transaction attempt chain.
	Authorize(ctx context.Context, amount int64, reference string) (string, error)

	// Finalize settles a held authorization after a confirmed success.
	Finalize(ctx context.Context, authID string) error

	// Reverse releases a held authorization after a permanent failure.
	Reverse(ctx context.Context, authID string) error
}
