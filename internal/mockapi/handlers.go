package mockapi

import (
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler holds all dependencies for API handlers
type Handler struct {
	startTime time.Time
	version   string

	mu     sync.Mutex
	events map[string]*eventRecord
}

// eventRecord is the first response given for an Idempotency-Key
type eventRecord struct {
	resp     EventResponse
	storedAt time.Time
}

// NewHandler creates a new handler instance
func NewHandler(version string) *Handler {
	return &Handler{
		startTime: time.Now(),
		version:   version,
		events:    make(map[string]*eventRecord),
	}
}

// Decide handles POST /v1/decide
func (h *Handler) Decide(c *fiber.Ctx) error {
	var req DecideRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	adID := adIDFor(req.Placement)
	headline := "Sponsored"
	if len(req.Keywords) > 0 {
		headline = "Best deals on " + strings.Join(req.Keywords, ", ")
	}

	RecordDecision()
	return c.JSON(&DecideResponse{
		AdID:         adID,
		Placement:    req.Placement,
		Headline:     headline,
		ClickURL:     "https://ads.adrelay.test/click/" + adID,
		ImpressionID: uuid.NewString(),
		DecidedAt:    time.Now().UTC(),
	})
}

// TrackEvent handles POST /v1/events.
// Requests repeating an Idempotency-Key get the first response back.
func (h *Handler) TrackEvent(c *fiber.Ctx) error {
	var req EventRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	key := c.Get(HeaderIdempotencyKey)

	h.mu.Lock()
	defer h.mu.Unlock()

	if key != "" {
		if first, ok := h.events[key]; ok {
			RecordEvent(req.Type, "replayed")
			replay := first.resp
			replay.Duplicate = true
			return c.Status(fiber.StatusAccepted).JSON(&replay)
		}
	}

	resp := &EventResponse{
		Status:  "accepted",
		EventID: uuid.NewString(),
	}
	if key != "" {
		h.events[key] = &eventRecord{resp: *resp, storedAt: time.Now()}
	}

	RecordEvent(req.Type, "new")
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// Health handles GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(&HealthResponse{
		Status:  "healthy",
		Service: "adrelay-mockapi",
		Version: h.version,
		Uptime:  time.Since(h.startTime).String(),
	})
}

// EventCount returns the number of distinct idempotent events stored
func (h *Handler) EventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

// ExpireEvents forgets idempotency records stored before cutoff and
// returns how many were removed
func (h *Handler) ExpireEvents(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for key, rec := range h.events {
		if rec.storedAt.Before(cutoff) {
			delete(h.events, key)
			removed++
		}
	}
	return removed
}

// parseBody decodes and validates a JSON request body
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, describeValidation(err))
	}
	return nil
}

// describeValidation turns validator errors into a short message
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}

// adIDFor picks a stable ad for a placement
func adIDFor(placement string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("adrelay:"+placement))
	return "ad-" + id.String()[:8]
}
