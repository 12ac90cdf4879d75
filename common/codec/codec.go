package codec

import (
	"io"

	"github.com/icon-project/minthub/common/errors"
)

var (
	// BC is the default codec for bucket records.
	BC = MP
)

type Codec interface {
	Name() string
	Marshal(w io.Writer, v interface{}) error
	Unmarshal(r io.Reader, v interface{}) error
	MarshalToBytes(v interface{}) ([]byte, error)
	UnmarshalFromBytes(b []byte, v interface{}) error
}

func MarshalToBytes(v interface{}) ([]byte, error) {
	return BC.MarshalToBytes(v)
}

func UnmarshalFromBytes(b []byte, v interface{}) error {
	return BC.UnmarshalFromBytes(b, v)
}

// MustMarshalToBytes encodes the value and panics on failure. It's for
// records that are known to be encodable.
func MustMarshalToBytes(v interface{}) []byte {
	bs, err := MarshalToBytes(v)
	if err != nil {
		panic(errors.CriticalFormatError.Wrapf(err, "FailToMarshal(%+v)", v))
	}
	return bs
}

func MustUnmarshalFromBytes(b []byte, v interface{}) {
	if err := UnmarshalFromBytes(b, v); err != nil {
		panic(errors.CriticalFormatError.Wrapf(err, "FailToUnmarshal(%x)", b))
	}
}
