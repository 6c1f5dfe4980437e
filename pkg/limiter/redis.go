package limiter

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed fixed_window.lua
var fixedWindowScript string

// RedisLimiter is a distributed fixed-window limiter backed by Redis.
//
// All state transitions for a key happen inside a single Lua script
// evaluation, so any number of instances can share one budget per identity
// without client-side locking.
type RedisLimiter struct {
	client    *redis.Client
	scriptSHA string
	prefix    string
	timeout   time.Duration
	recorder  MetricsRecorder
	now       func() time.Time
}

// NewRedisLimiter verifies connectivity and loads the window script into the
// Redis script cache. The client is treated as long-lived and safe for
// concurrent use; its lifecycle belongs to the caller.
func NewRedisLimiter(client *redis.Client, opts ...Option) (*RedisLimiter, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &StoreError{Err: err}
	}

	sha, err := client.ScriptLoad(ctx, fixedWindowScript).Result()
	if err != nil {
		return nil, &StoreError{Err: err}
	}

	return &RedisLimiter{
		client:    client,
		scriptSHA: sha,
		prefix:    cfg.prefix,
		timeout:   cfg.timeout,
		recorder:  cfg.recorder,
		now:       cfg.now,
	}, nil
}

// Allow performs one acquisition attempt for the given identity. It samples
// the clock, runs the window script, and normalizes the reply. A rejected
// acquisition is not an error; a non-nil error always means the store call
// itself failed.
func (r *RedisLimiter) Allow(ctx context.Context, id Identity, limit Limit) (Decision, error) {
	if err := limit.validate(); err != nil {
		return Decision{}, err
	}

	callStart := time.Now()
	t := r.now()
	key := r.prefix + id.String()
	now := float64(t.UnixMicro()) / 1e6
	nowFloor := t.Unix()
	windowSize := int64(limit.Window / time.Second)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tags := map[string]string{"namespace": string(id.Namespace)}
	r.recorder.Add("ratelimit.call", 1, tags)

	result, err := r.client.EvalSha(ctx, r.scriptSHA, []string{key},
		now,        // ARGV[1]
		nowFloor,   // ARGV[2]
		windowSize, // ARGV[3]
		limit.Max,  // ARGV[4]
	).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		// Script cache was flushed (e.g. Redis restart); EVAL repopulates it.
		result, err = r.client.Eval(ctx, fixedWindowScript, []string{key},
			now, nowFloor, windowSize, limit.Max).Result()
	}
	r.recorder.Observe("ratelimit.latency", time.Since(callStart).Seconds(), tags)
	if err != nil {
		return Decision{}, &StoreError{Err: err}
	}

	dec, err := parseScriptReply(result)
	if err != nil {
		return Decision{}, &StoreError{Err: err}
	}
	if !dec.Allowed {
		r.recorder.Add("ratelimit.denied", 1, tags)
	}
	return dec, nil
}

func parseScriptReply(result interface{}) (Decision, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, errors.New("invalid lua response format")
	}

	allowed := convertToInt(values[0])
	decaysAt := convertToInt(values[1])
	remaining := convertToInt(values[2])
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   allowed == 1,
		Remaining: remaining,
		DecaysAt:  time.Unix(decaysAt, 0),
	}, nil
}

func convertToInt(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}
