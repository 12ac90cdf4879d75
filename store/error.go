package store

import "github.com/icon-project/minthub/common/errors"

const (
	NotFoundError errors.Code = iota + errors.CodeStore
	AlreadyExistsError
	InvalidTransitionError
	OutstandingAttemptError
)

var (
	ErrNotFound           = errors.NewBase(NotFoundError, "NotFound")
	ErrAlreadyExists      = errors.NewBase(AlreadyExistsError, "AlreadyExists")
	ErrInvalidTransition  = errors.NewBase(InvalidTransitionError, "InvalidTransition")
	ErrOutstandingAttempt = errors.NewBase(OutstandingAttemptError, "OutstandingAttempt")
)
