package login

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authbridge/authbridge/pkg/observability"
	"github.com/authbridge/authbridge/pkg/store"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testObsLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	requests := store.NewMemoryStore[*store.Request](time.Minute)
	users := store.NewMemoryStore[*store.User](time.Minute)
	t.Cleanup(func() {
		requests.Close()
		users.Close()
	})
	return NewService(requests, users, testLog())
}

func TestServiceStartRequest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	request, err := svc.StartRequest(ctx, "joeuser", true)
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, "joeuser", request.UserID)
	assert.True(t, request.ForceAuthn)
	assert.False(t, request.Completed)

	_, err = svc.StartRequest(ctx, "", false)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestServicePendingRequestPeeks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	request, err := svc.StartRequest(ctx, "joeuser", false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		found, err := svc.FindRequest(ctx, request.ID)
		require.NoError(t, err)
		assert.False(t, found.Completed)
	}
}

func TestServiceProfileDelivery(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	request, err := svc.StartRequest(ctx, "joeuser", false)
	require.NoError(t, err)

	profile := map[string]any{"email": "joe@example.com", "name": "Joe User"}
	user, err := svc.ReceiveUserProfile(ctx, request.ID, profile)
	require.NoError(t, err)
	assert.Equal(t, "joeuser", user.ID)

	// the completed request is delivered exactly once
	found, err := svc.FindRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.True(t, found.Completed)
	assert.Equal(t, "joe@example.com", found.Payload["email"])

	_, err = svc.FindRequest(ctx, request.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceUserTakenOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	request, err := svc.StartRequest(ctx, "joeuser", false)
	require.NoError(t, err)
	_, err = svc.ReceiveUserProfile(ctx, request.ID, map[string]any{"email": "joe@example.com"})
	require.NoError(t, err)

	user, err := svc.GetUserByID(ctx, "joeuser")
	require.NoError(t, err)
	assert.Equal(t, "joe@example.com", user.Profile["email"])

	_, err = svc.GetUserByID(ctx, "joeuser")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestServiceReceiveProfileInvalid(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.ReceiveUserProfile(ctx, "nonesuch", map[string]any{"email": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	request, err := svc.StartRequest(ctx, "joeuser", false)
	require.NoError(t, err)
	_, err = svc.ReceiveUserProfile(ctx, request.ID, nil)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}
