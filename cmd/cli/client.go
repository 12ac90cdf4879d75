package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/icon-project/minthub/common/errors"
)

// AdminClient is a thin REST client for the node's admin surface.
type AdminClient struct {
	hc   *http.Client
	base string
}

func NewAdminClient(base string) *AdminClient {
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &AdminClient{
		hc:   &http.Client{},
		base: strings.TrimSuffix(base, "/"),
	}
}

func (c *AdminClient) do(method, path string, reqBody, respBody interface{}) error {
	var reader io.Reader
	if reqBody != nil {
		bs, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(bs)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fail to connect server=%s", c.base)
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("server response not success, StatusCode:%d Message:%s",
			resp.StatusCode, strings.TrimSpace(string(bs)))
	}
	if respBody != nil {
		if err := json.Unmarshal(bs, respBody); err != nil {
			return errors.Wrapf(err, "fail to parse response body=%s", string(bs))
		}
	}
	return nil
}

func (c *AdminClient) Get(path string, respBody interface{}) error {
	return c.do(http.MethodGet, path, nil, respBody)
}

func (c *AdminClient) Post(path string, reqBody, respBody interface{}) error {
	return c.do(http.MethodPost, path, reqBody, respBody)
}
