package kv

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

// WaitReady 以固定间隔 Ping 后端，直到成功、attempts 用尽或 ctx 结束。
// attempts <= 0 表示只要 ctx 未结束就一直等待。
func WaitReady(ctx context.Context, b Backend, interval time.Duration, attempts int, logger *logrus.Logger) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// PollUntilContextCancel 顺序调用条件函数，attempt 无需同步。
	attempt := 0
	err := wait.PollUntilContextCancel(ctx, interval, true, func(pollCtx context.Context) (bool, error) {
		attempt++
		pingErr := b.Ping(pollCtx)
		if pingErr == nil {
			return true, nil
		}
		if attempts > 0 && attempt >= attempts {
			return false, pingErr
		}
		logger.WithFields(logrus.Fields{
			"action":  "backend_wait",
			"attempt": attempt,
			"wait":    interval.String(),
		}).Info("backend not ready, retrying")
		return false, nil
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return Unavailable("wait", ctxErr)
	}
	return err
}
