// Command queue-worker consumes notification jobs from a Redis list and
// gates each delivery through the distributed limiter: at most "max"
// deliveries per "window", blocking up to "wait_timeout" for a slot before
// requeueing the job.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pushmill/ratelimiter/pkg/limiter"
)

func main() {
	v := viper.New()
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("queue", "notifications")
	v.SetDefault("tenant", "default")
	v.SetDefault("max", 30)
	v.SetDefault("window", 60*time.Second)
	v.SetDefault("wait_timeout", 3*time.Second)
	v.SetDefault("poll_interval", 750*time.Millisecond)
	v.SetEnvPrefix("WORKER")
	v.AutomaticEnv()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{Addr: v.GetString("redis_addr")})
	defer client.Close()

	lim, err := limiter.NewRedisLimiter(client, limiter.WithPrefix("worker:rate:"))
	if err != nil {
		logger.Fatal("limiter init failed", zap.Error(err))
	}

	waiter := limiter.NewWaiter(lim,
		limiter.WithMax(v.GetInt64("max")),
		limiter.WithWindow(v.GetDuration("window")),
		limiter.WithWaitTimeout(v.GetDuration("wait_timeout")),
		limiter.WithPollInterval(v.GetDuration("poll_interval")),
	)

	queue := v.GetString("queue")
	id := limiter.Identity{Namespace: "push", Key: v.GetString("tenant")}
	logger.Info("worker started",
		zap.String("queue", queue),
		zap.String("tenant", v.GetString("tenant")),
		zap.Int64("max", v.GetInt64("max")),
		zap.Duration("window", v.GetDuration("window")),
	)

	for {
		res, err := client.BLPop(ctx, 5*time.Second, queue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // queue idle
			}
			if ctx.Err() != nil {
				logger.Info("worker stopping")
				return
			}
			logger.Error("queue read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		payload := res[1]

		_, err = waiter.Do(ctx, id,
			func(ctx context.Context, dec limiter.Decision) error {
				// Delivery placeholder: the actual push transport plugs
				// in here.
				logger.Info("delivering notification",
					zap.String("payload", payload),
					zap.Int64("remaining", dec.Remaining),
				)
				return nil
			},
			nil)
		if err != nil {
			var waitErr *limiter.WaitTimeoutError
			if errors.As(err, &waitErr) {
				logger.Warn("no delivery slot, requeueing",
					zap.Duration("waited", waitErr.Elapsed),
					zap.Time("window_decays_at", waitErr.Last.DecaysAt),
				)
				if pushErr := client.RPush(ctx, queue, payload).Err(); pushErr != nil {
					logger.Error("requeue failed", zap.Error(pushErr))
				}
				continue
			}
			if ctx.Err() != nil {
				logger.Info("worker stopping")
				return
			}
			logger.Error("delivery gate failed", zap.Error(err))
			continue
		}
	}
}
