package mockapi

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Fault injection headers
const (
	HeaderMockStatus    = "X-Mock-Status"
	HeaderMockFailTimes = "X-Mock-Fail-Times"
	HeaderMockDelay     = "X-Mock-Delay"
	HeaderMockRaw       = "X-Mock-Raw"

	HeaderIdempotencyKey = "Idempotency-Key"
)

// defaultFailStatus is used by X-Mock-Fail-Times without X-Mock-Status
const defaultFailStatus = fiber.StatusServiceUnavailable

// rawFailureBody is sent instead of JSON when X-Mock-Raw is set
const rawFailureBody = "<html><body>upstream exploded</body></html>"

// faultInjector counts failures per request identity so that
// X-Mock-Fail-Times fails only the first N deliveries.
type faultInjector struct {
	maxDelay time.Duration

	mu   sync.Mutex
	seen map[string]int
}

func newFaultInjector(maxDelay time.Duration) *faultInjector {
	return &faultInjector{
		maxDelay: maxDelay,
		seen:     make(map[string]int),
	}
}

// Middleware applies the X-Mock headers of the request
func (f *faultInjector) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := c.Get(HeaderMockDelay); raw != "" {
			delay, err := parseDelay(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid "+HeaderMockDelay+": "+raw)
			}
			if delay > f.maxDelay {
				delay = f.maxDelay
			}
			RecordInjectedFault("delay")
			if !sleep(c, delay) {
				return nil
			}
		}

		status, err := parseStatus(c.Get(HeaderMockStatus))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid "+HeaderMockStatus)
		}

		if raw := c.Get(HeaderMockFailTimes); raw != "" {
			failTimes, err := strconv.Atoi(raw)
			if err != nil || failTimes < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid "+HeaderMockFailTimes+": "+raw)
			}
			if f.next(identity(c)) > failTimes {
				return c.Next()
			}
			if status == 0 {
				status = defaultFailStatus
			}
		}

		if status == 0 {
			return c.Next()
		}

		RecordInjectedFault("status")
		if status < fiber.StatusBadRequest {
			c.Status(status)
			return nil
		}
		if c.Get(HeaderMockRaw) != "" {
			c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
			return c.Status(status).SendString(rawFailureBody)
		}
		return c.Status(status).JSON(NewErrorResponse(
			ErrCodeInjectedFailure,
			"Injected failure with status "+strconv.Itoa(status),
			requestID(c),
		))
	}
}

// next records one more delivery of id and returns its 1-based count
func (f *faultInjector) next(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[id]++
	return f.seen[id]
}

// Reset forgets all failure counts
func (f *faultInjector) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.seen)
}

// identity groups retries of the same logical request
func identity(c *fiber.Ctx) string {
	if key := c.Get(HeaderIdempotencyKey); key != "" {
		return "key:" + key
	}
	return c.Method() + " " + c.Path()
}

// parseDelay accepts a Go duration ("250ms") or plain milliseconds ("250")
func parseDelay(raw string) (time.Duration, error) {
	if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, strconv.ErrSyntax
	}
	return d, nil
}

// parseStatus returns 0 for an empty header
func parseStatus(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	status, err := strconv.Atoi(raw)
	if err != nil || status < 100 || status > 599 {
		return 0, strconv.ErrRange
	}
	return status, nil
}

// sleep waits for d and reports false if the server shut down first
func sleep(c *fiber.Ctx, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-c.Context().Done():
		return false
	}
}
