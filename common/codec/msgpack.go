package codec

import (
	"bytes"
	"io"

	"github.com/vmihailenco/msgpack/v4"

	"github.com/icon-project/minthub/common/errors"
)

var MP = &mpCodec{}

type mpCodec struct{}

func (c *mpCodec) Name() string {
	return "mp"
}

func (c *mpCodec) Marshal(w io.Writer, v interface{}) error {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactEncoding(true)
	enc.StructAsArray(true)
	if err := enc.Encode(v); err != nil {
		return errors.CriticalFormatError.Wrap(err, "FailToEncode")
	}
	return nil
}

func (c *mpCodec) Unmarshal(r io.Reader, v interface{}) error {
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return errors.CriticalFormatError.Wrap(err, "FailToDecode")
	}
	return nil
}

func (c *mpCodec) MarshalToBytes(v interface{}) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := c.Marshal(buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *mpCodec) UnmarshalFromBytes(b []byte, v interface{}) error {
	return c.Unmarshal(bytes.NewBuffer(b), v)
}
