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

package credits

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/icon-project/minthub/common/log"
	"github.com/icon-project/minthub/module"
)

const DefaultTimeout = 10 * time.Second

// Client talks to the external credits ledger over HTTP. Every call is
// bounded by the client timeout; transport failures and 5xx responses
// are reported as gate-unavailable so the caller can retry settlement.
type Client struct {
	endpoint string
	hc       *http.Client
	log      log.Logger
}

var _ module.CreditsGate = (*Client)(nil)

func NewClient(endpoint string, timeout time.Duration, logger log.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: timeout},
		log:      logger.WithFields(log.Fields{log.FieldKeyModule: "credits"}),
	}
}

type authorizeRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type authorizeResponse struct {
	ID string `json:"id"`
}

func (c *Client) post(ctx context.Context, path string, reqPtr, respPtr interface{}) error {
	var body io.Reader
	if reqPtr != nil {
		b, err := json.Marshal(reqPtr)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return GateUnavailableError.Wrapf(err, "GateUnreachable(endpoint=%s)", c.endpoint)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated ||
		resp.StatusCode == http.StatusNoContent:
		if respPtr != nil {
			return json.NewDecoder(resp.Body).Decode(respPtr)
		}
		return nil
	case resp.StatusCode == http.StatusPaymentRequired:
		return InsufficientCreditsError.Errorf("InsufficientCredits(path=%s)", path)
	case resp.StatusCode == http.StatusNotFound:
		return AuthorizationNotFoundError.Errorf("AuthorizationNotFound(path=%s)", path)
	case resp.StatusCode == http.StatusConflict:
		return AuthorizationStateError.Errorf("AuthorizationConflict(path=%s)", path)
	case resp.StatusCode >= http.StatusInternalServerError:
		return GateUnavailableError.Errorf("GateFailure(path=%s,status=%d)", path, resp.StatusCode)
	default:
		return AuthorizationStateError.Errorf("UnexpectedStatus(path=%s,status=%d)", path, resp.StatusCode)
	}
}

func (c *Client) Authorize(ctx context.Context, amount int64, reference string) (string, error) {
	var resp authorizeResponse
	err := c.post(ctx, "/v1/authorizations",
		&authorizeRequest{Amount: amount, Reference: reference}, &resp)
	if err != nil {
		return "", err
	}
	c.log.Debugf("authorized amount=%d reference=%s id=%s", amount, reference, resp.ID)
	return resp.ID, nil
}

func (c *Client) Finalize(ctx context.Context, authID string) error {
	return c.post(ctx, "/v1/authorizations/"+authID+"/finalize", nil, nil)
}

func (c *Client) Reverse(ctx context.Context, authID string) error {
	return c.post(ctx, "/v1/authorizations/"+authID+"/reverse", nil, nil)
}
