package credits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-project/minthub/common/log"
)

func TestMemoryGate_HoldSettleReverse(t *testing.T) {
	g := NewMemoryGate(10)
	ctx := context.Background()

	id1, err := g.Authorize(ctx, 4, "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), g.Balance())

	id2, err := g.Authorize(ctx, 6, "attempt-2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), g.Balance())

	_, err = g.Authorize(ctx, 1, "attempt-3")
	assert.True(t, InsufficientCreditsError.Equals(err))

	require.NoError(t, g.Finalize(ctx, id1))
	assert.Equal(t, int64(0), g.Balance())

	require.NoError(t, g.Reverse(ctx, id2))
	assert.Equal(t, int64(6), g.Balance())

	// a settled hold never settles twice
	assert.True(t, AuthorizationStateError.Equals(g.Finalize(ctx, id1)))
	assert.True(t, AuthorizationStateError.Equals(g.Reverse(ctx, id2)))
	assert.True(t, AuthorizationNotFoundError.Equals(g.Finalize(ctx, "nope")))
}

func TestClient_Authorize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/authorizations", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"auth-9"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, log.GlobalLogger())
	id, err := c.Authorize(context.Background(), 5, "attempt-1")
	require.NoError(t, err)
	assert.Equal(t, "auth-9", id)
}

func TestClient_StatusMapping(t *testing.T) {
	status := http.StatusPaymentRequired
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, log.GlobalLogger())
	ctx := context.Background()

	_, err := c.Authorize(ctx, 5, "attempt-1")
	assert.True(t, InsufficientCreditsError.Equals(err))
	assert.False(t, Retryable(err))

	status = http.StatusNotFound
	err = c.Finalize(ctx, "auth-1")
	assert.True(t, AuthorizationNotFoundError.Equals(err))

	status = http.StatusConflict
	err = c.Reverse(ctx, "auth-1")
	assert.True(t, AuthorizationStateError.Equals(err))

	status = http.StatusBadGateway
	err = c.Finalize(ctx, "auth-1")
	assert.True(t, GateUnavailableError.Equals(err))
	assert.True(t, Retryable(err))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, time.Second, log.GlobalLogger())
	_, err := c.Authorize(context.Background(), 5, "attempt-1")
	assert.True(t, GateUnavailableError.Equals(err))
	assert.True(t, Retryable(err))
}
