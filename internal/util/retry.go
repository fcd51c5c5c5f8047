package util

import (
	"context"
	"fmt"
	"time"
)

// MaxBackoff 是两次尝试之间的最长等待。
const MaxBackoff = 30 * time.Second

// Retry 最多执行 attempts 次 fn，每次失败后等待时间翻倍，最后一次失败后不再等待。
// ctx 结束时立即返回 ctx 的错误。
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 1; ; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff = min(backoff*2, MaxBackoff)
		}
	}
	if attempts == 1 {
		return err
	}
	return fmt.Errorf("重试 %d 次后失败: %w", attempts, err)
}
