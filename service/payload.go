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

import (
	"encoding/json"

	"github.com/icon-project/minthub/module"
)

// CreatePayload opens a drop: a collection record plus the drop itself,
// and drives the on-chain collection creation.
type CreatePayload struct {
	Project              string          `json:"project" validate:"required"`
	Blockchain           string          `json:"blockchain" validate:"required"`
	Name                 string          `json:"name" validate:"required"`
	Symbol               string          `json:"symbol" validate:"required"`
	MetadataURI          string          `json:"metadata_uri" validate:"required,uri"`
	SellerFeeBasisPoints uint16          `json:"seller_fee_basis_points" validate:"lte=10000"`
	Supply               int64           `json:"supply" validate:"gte=0"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
}

// MintPayload issues one NFT from a drop to a recipient.
type MintPayload struct {
	Drop        string `json:"drop" validate:"required"`
	Recipient   string `json:"recipient" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Symbol      string `json:"symbol" validate:"required"`
	MetadataURI string `json:"metadata_uri" validate:"required,uri"`
}

// UpdatePayload rewrites the on-chain metadata of a drop's collection or
// of a single mint. A nil royalty keeps the one already on record;
// chains rewrite the whole metadata account, so the submission always
// carries an explicit value.
type UpdatePayload struct {
	Name                 string  `json:"name" validate:"required"`
	Symbol               string  `json:"symbol" validate:"required"`
	MetadataURI          string  `json:"metadata_uri" validate:"required,uri"`
	SellerFeeBasisPoints *uint16 `json:"seller_fee_basis_points,omitempty" validate:"omitempty,lte=10000"`
}

// TransferPayload moves a mint to a new owner.
type TransferPayload struct {
	Mint      string `json:"mint" validate:"required"`
	Recipient string `json:"recipient" validate:"required"`
}

// RetryPayload restarts a permanently failed operation. Op names the
// operation to retry and Payload carries the original operation payload;
// the retry is priced as the operation it restarts.
type RetryPayload struct {
	Op      string          `json:"op" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// storedSellerFee reads the royalty from the first metadata record that
// carries one. Create and update payloads persist it; mint payloads
// inherit the drop's.
func storedSellerFee(raws ...json.RawMessage) uint16 {
	for _, raw := range raws {
		var p struct {
			Fee *uint16 `json:"seller_fee_basis_points"`
		}
		if json.Unmarshal(raw, &p) == nil && p.Fee != nil {
			return *p.Fee
		}
	}
	return 0
}

func decodePayload(req *module.OperationRequest, out interface{}) error {
	if len(req.Payload) == 0 {
		return ValidationError.Errorf("EmptyPayload(op=%s)", req.Op)
	}
	if err := json.Unmarshal(req.Payload, out); err != nil {
		return ValidationError.Wrapf(err, "MalformedPayload(op=%s)", req.Op)
	}
	return nil
}
