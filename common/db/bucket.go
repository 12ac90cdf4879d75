package db

import (
	"github.com/icon-project/minthub/common/errors"
)

// Bucket
type Bucket interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key []byte, value []byte) error
	Delete(key []byte) error
}

type BucketID string

//	Bucket ID
const (
	// Collections maps collection records from collection ID.
	Collections BucketID = "C"

	// Drops maps drop records from drop ID.
	Drops BucketID = "D"

	// Mints maps mint records from mint ID.
	Mints BucketID = "M"

	// Transfers maps transfer records from transfer ID.
	Transfers BucketID = "F"

	// Attempts maps transaction attempt records from attempt ID.
	Attempts BucketID = "A"

	// AttemptByRequest maps attempt ID from request ID.
	AttemptByRequest BucketID = "R"

	// CurrentAttempt maps the outstanding attempt ID from entity+operation.
	CurrentAttempt BucketID = "U"

	// AttemptHistory maps the attempt ID list from entity+operation.
	AttemptHistory BucketID = "H"

	// Wallets maps project wallet addresses from project+blockchain.
	Wallets BucketID = "W"

	// Reversals maps pending billing repair records from authorization ID.
	Reversals BucketID = "V"

	// ListIndex keeps ID lists for admin listings.
	ListIndex BucketID = "I"
)

// internalKey returns key prefixed with the bucket's id.
func internalKey(id BucketID, key []byte) []byte {
	buf := make([]byte, len(key)+len(id))
	copy(buf, id)
	copy(buf[len(id):], key)
	return buf
}

func DoGet(bk Bucket, key []byte) ([]byte, error) {
	v, err := bk.Get(key)
	if v == nil && err == nil {
		return nil, errors.NotFoundError.New("NotFound")
	}
	return v, err
}
