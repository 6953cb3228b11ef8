package gateway

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fastPolicy keeps test retries near-instant.
func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{Attempts: attempts, Delay: time.Millisecond}
}

func TestWithRetry_SuccessFirstTry(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockGateway(ctrl)
	inner.EXPECT().CreatePage(gomock.Any(), "lab1", gomock.Any()).Return("p1", nil)

	gw := WithRetry(inner, fastPolicy(3), slog.Default())

	id, err := gw.CreatePage(context.Background(), "lab1", PageUpload{Title: "Start"})
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockGateway(ctrl)

	transient := wrapErr(KindTransient, "create page", errors.New("nav timeout"))
	gomock.InOrder(
		inner.EXPECT().CreatePage(gomock.Any(), "lab1", gomock.Any()).Return("", transient),
		inner.EXPECT().CreatePage(gomock.Any(), "lab1", gomock.Any()).Return("p1", nil),
	)

	gw := WithRetry(inner, fastPolicy(3), slog.Default())

	id, err := gw.CreatePage(context.Background(), "lab1", PageUpload{})
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
}

func TestWithRetry_TransientExhaustsAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockGateway(ctrl)

	transient := wrapErr(KindTransient, "update page", errors.New("nav timeout"))
	inner.EXPECT().UpdatePage(gomock.Any(), "p1", gomock.Any()).Return(transient).Times(3)

	gw := WithRetry(inner, fastPolicy(3), slog.Default())

	err := gw.UpdatePage(context.Background(), "p1", PageUpload{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

// Remote rejections are deterministic; retrying them would just repeat
// the same submission.
func TestWithRetry_RemoteErrorNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockGateway(ctrl)

	remote := wrapErr(KindRemote, "create labyrinth", errors.New("form rejected"))
	inner.EXPECT().CreateLabyrinth(gomock.Any(), gomock.Any()).Return("", remote).Times(1)

	gw := WithRetry(inner, fastPolicy(3), slog.Default())

	_, err := gw.CreateLabyrinth(context.Background(), LabyrinthUpload{})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestWithRetry_AuthErrorNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockGateway(ctrl)

	auth := wrapErr(KindAuth, "delete page", errors.New("session expired"))
	inner.EXPECT().DeletePage(gomock.Any(), "lab1", "p1").Return(false, auth).Times(1)

	gw := WithRetry(inner, fastPolicy(3), slog.Default())

	_, err := gw.DeletePage(context.Background(), "lab1", "p1")
	assert.True(t, IsAuth(err))
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockGateway(ctrl)
	// No call expected: cancellation is checked before the first attempt.

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := WithRetry(inner, fastPolicy(3), slog.Default())

	err := gw.ClearPredecessorLinks(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRetry_CancelledDuringBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockGateway(ctrl)

	transient := wrapErr(KindTransient, "upload asset", errors.New("nav timeout"))
	attempted := make(chan struct{})
	inner.EXPECT().UploadAsset(gomock.Any(), "/tmp/a.png").
		DoAndReturn(func(context.Context, string) (string, error) {
			close(attempted)
			return "", transient
		})

	ctx, cancel := context.WithCancel(context.Background())

	gw := WithRetry(inner, RetryPolicy{Attempts: 3, Delay: time.Hour}, slog.Default())

	done := make(chan error, 1)
	go func() {
		_, err := gw.UploadAsset(ctx, "/tmp/a.png")
		done <- err
	}()

	// Cancel only after the first attempt has failed, so the cancellation
	// is guaranteed to land during the backoff sleep.
	<-attempted
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestWithRetry_AttemptFloor(t *testing.T) {
	ctrl := gomock.NewController(t)
	inner := NewMockGateway(ctrl)
	inner.EXPECT().SetPredecessorLink(gomock.Any(), "t", "s", 1).Return(true, nil)

	// A zero-attempt policy still runs the operation once.
	gw := WithRetry(inner, RetryPolicy{}, slog.Default())

	ok, err := gw.SetPredecessorLink(context.Background(), "t", "s", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 2*time.Second, p.Delay)
}
