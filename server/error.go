package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/icon-project/minthub/chain"
	"github.com/icon-project/minthub/common/errors"
	"github.com/icon-project/minthub/credits"
	"github.com/icon-project/minthub/service"
	"github.com/icon-project/minthub/store"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func statusOf(code errors.Code) int {
	switch code {
	case service.ValidationError, errors.IllegalArgumentError,
		service.UnsupportedOperationError:
		return http.StatusBadRequest
	case service.InsufficientCreditsError, credits.InsufficientCreditsError:
		return http.StatusPaymentRequired
	case store.NotFoundError, errors.NotFoundError, chain.ChainNotFoundError,
		chain.UnknownBlockchainError, credits.AuthorizationNotFoundError:
		return http.StatusNotFound
	case service.InvalidStateError, errors.InvalidStateError,
		store.InvalidTransitionError, store.OutstandingAttemptError,
		store.AlreadyExistsError:
		return http.StatusConflict
	case chain.ChainUnavailableError, credits.GateUnavailableError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler maps coded errors onto HTTP statuses; anything
// uncoded falls through to echo's default handling.
func HTTPErrorHandler(err error, c echo.Context) {
	if he, ok := err.(*echo.HTTPError); ok {
		c.Echo().DefaultHTTPErrorHandler(he, c)
		return
	}
	if coder, ok := errors.CoderOf(err); ok {
		code := coder.ErrorCode()
		resp := &errorResponse{Code: int(code), Message: errors.ToString(err)}
		if err := c.JSON(statusOf(code), resp); err != nil {
			c.Logger().Error(err)
		}
		return
	}
	c.Echo().DefaultHTTPErrorHandler(err, c)
}
