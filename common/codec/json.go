package codec

import (
	"encoding/json"
	"io"

	"github.com/icon-project/minthub/common/errors"
)

var JSON = &jsonCodec{}

type jsonCodec struct{}

func (c *jsonCodec) Name() string {
	return "json"
}

func (c *jsonCodec) Marshal(w io.Writer, v interface{}) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return errors.CriticalFormatError.Wrap(err, "FailToEncode")
	}
	return nil
}

func (c *jsonCodec) Unmarshal(r io.Reader, v interface{}) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errors.CriticalFormatError.Wrap(err, "FailToDecode")
	}
	return nil
}

func (c *jsonCodec) MarshalToBytes(v interface{}) ([]byte, error) {
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, errors.CriticalFormatError.Wrap(err, "FailToEncode")
	}
	return bs, nil
}

func (c *jsonCodec) UnmarshalFromBytes(b []byte, v interface{}) error {
	if err := json.Unmarshal(b, v); err != nil {
		return errors.CriticalFormatError.Wrap(err, "FailToDecode")
	}
	return nil
}
