package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/uerename/internal/domain"
)

// Policy admits Burst requests at once and refills PerSecond
type Policy struct {
	Burst     int
	PerSecond float64
}

type bucket struct {
	mu       sync.Mutex
	policy   Policy
	tokens   float64
	lastSeen time.Time
}

func newBucket(p Policy, now time.Time) *bucket {
	return &bucket{policy: p, tokens: float64(p.Burst), lastSeen: now}
}

// take consumes one token. A refused call reports the wait until the next token.
func (b *bucket) take(now time.Time) (left int, wait time.Duration, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = min(float64(b.policy.Burst), b.tokens+now.Sub(b.lastSeen).Seconds()*b.policy.PerSecond)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return int(b.tokens), 0, true
	}
	if b.policy.PerSecond <= 0 {
		return 0, time.Hour, false
	}
	return 0, time.Duration((1 - b.tokens) / b.policy.PerSecond * float64(time.Second)), false
}

func (b *bucket) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeen
}

// RateLimiter keeps one bucket per client and route. Apply rewrites project
// trees and gets a quarter of the base policy; detect and plan only read and
// get double.
type RateLimiter struct {
	base   Policy
	routes map[string]Policy
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a limiter whose base policy is burst requests refilled at rps
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		base: Policy{Burst: burst, PerSecond: rps},
		routes: map[string]Policy{
			"/v1/apply":  {Burst: max(1, burst/4), PerSecond: rps / 4},
			"/v1/detect": {Burst: burst * 2, PerSecond: rps * 2},
			"/v1/plan":   {Burst: burst * 2, PerSecond: rps * 2},
			"/health":    {Burst: 20, PerSecond: 2},
			"/metrics":   {Burst: 20, PerSecond: 2},
		},
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) bucketFor(client, path string) *bucket {
	key := client + " " + path

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		policy, routed := rl.routes[path]
		if !routed {
			policy = rl.base
		}
		b = newBucket(policy, rl.now())
		rl.buckets[key] = b
	}
	return b
}

func clientKey(c *fiber.Ctx) string {
	if key := c.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	return "ip:" + c.IP()
}

// Middleware refuses requests over the route's policy with 429 and Retry-After
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, path := clientKey(c), c.Path()
		b := rl.bucketFor(client, path)

		left, wait, ok := b.take(rl.now())
		c.Set("X-RateLimit-Limit", strconv.Itoa(b.policy.Burst))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(left))
		if ok {
			return c.Next()
		}

		retry := int(math.Ceil(wait.Seconds()))
		c.Set("Retry-After", strconv.Itoa(retry))
		log.Debug().Str("client", client).Str("path", path).Int("retry_after", retry).Msg("Request rate limited")

		appErr := domain.NewAppError(domain.ErrRateLimit, "Rate limit exceeded", 429,
			map[string]any{"path": path, "retry_after_seconds": retry})
		return c.Status(appErr.StatusCode).JSON(map[string]any{
			"status":  "error",
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		})
	}
}

// Sweep drops buckets unused for longer than idle and returns how many went
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	cutoff := rl.now().Add(-idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	dropped := 0
	for key, b := range rl.buckets {
		if b.idleSince().Before(cutoff) {
			delete(rl.buckets, key)
			dropped++
		}
	}
	return dropped
}

// StartCleanupRoutine sweeps hour-idle buckets every ten minutes until stopped
func (rl *RateLimiter) StartCleanupRoutine() (stop func()) {
	ticker := time.NewTicker(10 * time.Minute)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := rl.Sweep(time.Hour); n > 0 {
					log.Debug().Int("dropped", n).Msg("Idle rate limit buckets swept")
				}
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }
}
