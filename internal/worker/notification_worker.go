package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/isp-support/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Runner is a long-lived background loop such as the event relay.
type Runner interface {
	Run(ctx context.Context) error
}

const maxRestartDelay = 30 * time.Second

// StartRunner keeps runner alive until ctx is cancelled, restarting it with
// exponential backoff when it fails. The returned channel closes on exit.
func StartRunner(ctx context.Context, name string, runner Runner, logger *zap.Logger) <-chan struct{} {
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		delay := time.Second
		for {
			err := runner.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			logger.Warn("background worker stopped, restarting",
				zap.String("worker", name), zap.Duration("delay", delay), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if delay *= 2; delay > maxRestartDelay {
				delay = maxRestartDelay
			}
		}
	}()
	return done
}
