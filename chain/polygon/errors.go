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

package polygon

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum"

	"github.com/icon-project/minthub/chain"
)

var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"i/o timeout",
	"timeout",
	"timed out",
	"eof",
	"too many requests",
	"429",
	"502",
	"503",
	"nonce too low",
	"replacement transaction underpriced",
	"already known",
}

func normalize(err error, op string) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded || err == context.Canceled {
		return chain.ChainUnavailableError.Wrapf(err, "%s: rpc timeout", op)
	}
	if err == ethereum.NotFound {
		return chain.ChainNotFoundError.Wrapf(err, "%s: not found", op)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "insufficient funds") {
		return chain.InsufficientChainFundsError.Wrapf(err, "%s: %s", op, err.Error())
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return chain.ChainUnavailableError.Wrapf(err, "%s: %s", op, err.Error())
		}
	}
	return chain.ChainRejectedError.Wrapf(err, "%s: %s", op, err.Error())
}
