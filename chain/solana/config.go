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

package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/blocto/solana-go-sdk/types"

	"github.com/icon-project/minthub/common/errors"
)

type Config struct {
	// RPCEndpoint is the JSON-RPC endpoint of the cluster.
	RPCEndpoint string `json:"rpc_endpoint"`

	// FeePayer is the 64-byte treasury keypair, either a JSON int array
	// or base64.
	FeePayer string `json:"fee_payer"`
}

// parseKeypair accepts the keypair formats treasuries are exported in:
// a JSON array of ints (solana-keygen format) or base64 of the raw
// 64 bytes.
func parseKeypair(s string) (types.Account, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.Account{}, errors.IllegalArgumentError.New("EmptyKeypair")
	}
	var raw []byte
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return types.Account{}, errors.IllegalArgumentError.Wrap(err, "InvalidKeypairJSON")
		}
		raw = make([]byte, len(ints))
		for i, v := range ints {
			raw[i] = byte(v)
		}
	} else {
		bs, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return types.Account{}, errors.IllegalArgumentError.Wrap(err, "InvalidKeypairBase64")
		}
		raw = bs
	}
	if len(raw) != ed25519.PrivateKeySize {
		return types.Account{}, errors.IllegalArgumentError.Errorf(
			"InvalidKeypairSize(size=%d)", len(raw))
	}
	return types.AccountFromBytes(raw)
}
