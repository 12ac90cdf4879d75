package service

import "github.com/icon-project/minthub/common/errors"

const (
	ValidationError errors.Code = iota + errors.CodeService
	InsufficientCreditsError
	RetriesExhaustedError
	InvalidStateError
	UnsupportedOperationError
)
