package credits

import "github.com/icon-project/minthub/common/errors"

const (
	InsufficientCreditsError errors.Code = iota + errors.CodeCredits
	GateUnavailableError
	AuthorizationNotFoundError
	AuthorizationStateError
)

var (
	ErrInsufficientCredits   = errors.NewBase(InsufficientCreditsError, "InsufficientCredits")
	ErrGateUnavailable       = errors.NewBase(GateUnavailableError, "GateUnavailable")
	ErrAuthorizationNotFound = errors.NewBase(AuthorizationNotFoundError, "AuthorizationNotFound")
	ErrAuthorizationState    = errors.NewBase(AuthorizationStateError, "AuthorizationState")
)

// Retryable reports whether the failed ledger call may succeed later.
// Only gate availability is retryable; a declined or unknown
// authorization never settles by waiting.
func Retryable(err error) bool {
	return GateUnavailableError.Equals(err)
}
