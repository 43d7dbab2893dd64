package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/config"
	"tally/internal/delivery/http/response"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills and debits the bucket in one atomic round trip.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		local until_next = interval_ms - (now_ms - last_refill)
		if until_next < 0 then until_next = 0 end
		retry_after_ms = until_next
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// RateLimitMiddleware applies a Redis-backed token bucket to the credential
// endpoints. When Redis is unavailable the middleware degrades open: slowing
// attackers is not worth refusing legitimate logins.
type RateLimitMiddleware struct {
	cfg    *config.RateLimitConfig
	client *redis.Client
	logger *slog.Logger
}

// NewRateLimitMiddleware is the constructor for RateLimitMiddleware.
func NewRateLimitMiddleware(cfg *config.Config, client *redis.Client, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{cfg: cfg.RateLimit, client: client, logger: logger}
}

// Limit returns the Echo middleware. It is a pass-through when rate limiting
// is disabled or no Redis client is configured.
func (m *RateLimitMiddleware) Limit() echo.MiddlewareFunc {
	if m.cfg == nil || !m.cfg.Enabled || m.client == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := m.buildKey(c)

			args := []any{
				time.Now().UnixMilli(),
				m.cfg.Capacity,
				m.cfg.RefillTokens,
				m.cfg.RefillInterval.Milliseconds(),
				int64(m.cfg.TTL / time.Second),
			}

			vals, err := tokenBucketScript.Run(c.Request().Context(), m.client, []string{key}, args...).Result()
			if err != nil {
				m.logger.Warn("Rate limiter unavailable; allowing request",
					slog.String("key", key),
					slog.Any("error", err),
				)

				return next(c)
			}

			arr, ok := vals.([]any)
			if !ok || len(arr) != 3 {
				return next(c)
			}

			allowed := asInt64(arr[0]) == 1
			remaining := asInt64(arr[1])
			retryMs := asInt64(arr[2])

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(m.cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int(math.Ceil(float64(retryMs) / 1000.0))
				if secs < 0 {
					secs = 0
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))

				return response.Message(c, http.StatusTooManyRequests, "Too many requests")
			}

			return next(c)
		}
	}
}

func (m *RateLimitMiddleware) buildKey(c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	return strings.Join([]string{m.cfg.Prefix, "ip", ip, "route", route}, ":")
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}

	return 0
}
