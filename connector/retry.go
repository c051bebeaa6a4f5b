package connector

import (
	"context"
	"log/slog"
	"time"
)

func retryConnect(ctx context.Context, opts RetryConfig, logger *slog.Logger, connectFn func(context.Context) (Connection, error)) (Connection, error) {
	var (
		err  error
		conn Connection
	)
	delay := opts.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	backoff := opts.Backoff
	if backoff < 1 {
		backoff = 2
	}
	attempts := max(opts.MaxRetries, 1)

	for i := 1; i <= attempts; i++ {
		conn, err = connectFn(ctx)
		if err == nil {
			return conn, nil
		}
		if i == attempts {
			break
		}

		logger.Warn("connect failed, retrying",
			slog.Int("attempt", i),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay = time.Duration(float64(delay) * backoff)
			if opts.MaxDelay > 0 && delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}
	return nil, err
}
