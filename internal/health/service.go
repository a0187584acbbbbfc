package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"komoditas/internal/logger"
)

const checkTimeout = 8 * time.Second

// CheckFunc reports a dependency as healthy by returning nil.
type CheckFunc func(ctx context.Context) error

type HealthHandler struct {
	log       *logger.Logger
	startTime time.Time

	mu         sync.RWMutex
	components map[string]CheckFunc
	ready      bool
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		log:        logger.New("HealthCheck"),
		startTime:  time.Now(),
		components: map[string]CheckFunc{},
	}
}

// Add registers a named dependency. A nil check is ignored.
func (h *HealthHandler) Add(name string, check CheckFunc) {
	if check == nil {
		return
	}
	h.mu.Lock()
	h.components[name] = check
	h.mu.Unlock()
}

// SetReady marks the application as ready to receive traffic
func (h *HealthHandler) SetReady() {
	h.mu.Lock()
	h.ready = true
	h.mu.Unlock()
	h.log.LogSuccessf("Application marked as ready for traffic after %v", time.Since(h.startTime))
}

type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type OverallHealth struct {
	OverallStatus string                     `json:"overall_status"`
	Timestamp     string                     `json:"timestamp"`
	Ready         bool                       `json:"ready"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentStatus `json:"components"`
}

// Check runs every component concurrently.
func (h *HealthHandler) Check(ctx context.Context) OverallHealth {
	h.mu.RLock()
	names := make([]string, 0, len(h.components))
	for n := range h.components {
		names = append(names, n)
	}
	checks := make(map[string]CheckFunc, len(h.components))
	for n, c := range h.components {
		checks[n] = c
	}
	ready := h.ready
	h.mu.RUnlock()
	sort.Strings(names)

	statuses := make(map[string]ComponentStatus, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	allOk := true
	for _, name := range names {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			started := time.Now()
			st := ComponentStatus{Status: "ok"}
			if err := check(ctx); err != nil {
				st = ComponentStatus{Status: "error", Error: err.Error()}
				h.log.LogErrorf("Health check failed for %s after %v: %v", name, time.Since(started), err)
			}
			mu.Lock()
			statuses[name] = st
			if st.Status != "ok" {
				allOk = false
			}
			mu.Unlock()
		}(name, checks[name])
	}
	wg.Wait()

	out := OverallHealth{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Ready:         ready,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    statuses,
	}
	switch {
	case !ready:
		out.OverallStatus = "starting"
	case allOk:
		out.OverallStatus = "ok"
	default:
		out.OverallStatus = "error"
	}
	return out
}

// HandleHealth answers 200 only when the app is ready and every component is healthy.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), checkTimeout)
	defer cancel()

	res := h.Check(ctx)
	if res.OverallStatus == "ok" {
		return c.Status(http.StatusOK).JSON(res)
	}
	if res.OverallStatus == "error" {
		h.log.LogWarnf("Health check failed. Statuses: %+v", res.Components)
	}
	return c.Status(http.StatusServiceUnavailable).JSON(res)
}

func HealthLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Rate limit exceeded"})
		},
	})
}
