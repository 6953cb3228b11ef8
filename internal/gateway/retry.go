package gateway

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds the retry behavior for transient failures: a fixed
// attempt count with a linearly scaled delay (delay, 2*delay, ...).
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy matches the remote site's observed flakiness: three
// attempts, two seconds apart and growing.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 2 * time.Second}
}

// WithRetry wraps a Gateway so that every operation retries transient
// failures per the policy. Non-transient errors propagate immediately.
func WithRetry(inner Gateway, policy RetryPolicy, logger *slog.Logger) Gateway {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &retryGateway{inner: inner, policy: policy, logger: logger}
}

type retryGateway struct {
	inner  Gateway
	policy RetryPolicy
	logger *slog.Logger
}

func (r *retryGateway) do(ctx context.Context, op string, fn func() error) error {
	var err error

	for attempt := 1; attempt <= r.policy.Attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}

		if attempt == r.policy.Attempts {
			break
		}

		delay := time.Duration(attempt) * r.policy.Delay
		r.logger.Warn("transient remote failure, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return err
}

func (r *retryGateway) CreateLabyrinth(ctx context.Context, lab LabyrinthUpload) (string, error) {
	var id string
	err := r.do(ctx, "create labyrinth", func() error {
		var err error
		id, err = r.inner.CreateLabyrinth(ctx, lab)
		return err
	})
	return id, err
}

func (r *retryGateway) UpdateLabyrinth(ctx context.Context, remoteID string, lab LabyrinthUpload) error {
	return r.do(ctx, "update labyrinth", func() error {
		return r.inner.UpdateLabyrinth(ctx, remoteID, lab)
	})
}

func (r *retryGateway) CreatePage(ctx context.Context, labyrinthID string, page PageUpload) (string, error) {
	var id string
	err := r.do(ctx, "create page", func() error {
		var err error
		id, err = r.inner.CreatePage(ctx, labyrinthID, page)
		return err
	})
	return id, err
}

func (r *retryGateway) UpdatePage(ctx context.Context, remoteID string, page PageUpload) error {
	return r.do(ctx, "update page", func() error {
		return r.inner.UpdatePage(ctx, remoteID, page)
	})
}

func (r *retryGateway) DeletePage(ctx context.Context, labyrinthID, remoteID string) (bool, error) {
	var found bool
	err := r.do(ctx, "delete page", func() error {
		var err error
		found, err = r.inner.DeletePage(ctx, labyrinthID, remoteID)
		return err
	})
	return found, err
}

func (r *retryGateway) SetPredecessorLink(ctx context.Context, targetID, sourceID string, answerPosition int) (bool, error) {
	var ok bool
	err := r.do(ctx, "set predecessor link", func() error {
		var err error
		ok, err = r.inner.SetPredecessorLink(ctx, targetID, sourceID, answerPosition)
		return err
	})
	return ok, err
}

func (r *retryGateway) ClearPredecessorLinks(ctx context.Context, targetID string) error {
	return r.do(ctx, "clear predecessor links", func() error {
		return r.inner.ClearPredecessorLinks(ctx, targetID)
	})
}

func (r *retryGateway) UploadAsset(ctx context.Context, localPath string) (string, error) {
	var url string
	err := r.do(ctx, "upload asset", func() error {
		var err error
		url, err = r.inner.UploadAsset(ctx, localPath)
		return err
	})
	return url, err
}
