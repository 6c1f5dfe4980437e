package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/pushmill/ratelimiter/pkg/limiter"
)

func main() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	opts := &redis.Options{Addr: redisAddr}
	client := redis.NewClient(opts)

	l, err := limiter.NewRedisLimiter(client,
		limiter.WithPrefix("demo:"),
		limiter.WithTimeout(100*time.Millisecond),
	)
	if err != nil {
		log.Fatal(err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)

	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()

		// Rate limit: 10 requests per 30s window per IP
		id := limiter.Identity{Namespace: "ip", Key: req.RemoteAddr}
		limit := limiter.Limit{Max: 10, Window: 30 * time.Second}

		dec, err := l.Allow(ctx, id, limit)
		if err != nil {
			// Fail Open or Closed? Here we Fail Open (allow traffic on error)
			log.Printf("Limiter error: %v", err)
		} else if !dec.Allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", time.Until(dec.DecaysAt).Seconds()))
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded\n"))
			return
		}

		w.Write([]byte("Pong!\n"))
	})

	log.Printf("Server listening on :8080 (Redis: %s)", redisAddr)
	http.ListenAndServe(":8080", r)
}
