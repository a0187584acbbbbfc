package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"komoditas/internal/core/job"
	"komoditas/internal/core/schedule"
	"komoditas/internal/utils/parser"
)

const healthTimeout = 15 * time.Second

type Handler struct {
	m *Manager
}

func NewHandler(m *Manager) *Handler { return &Handler{m: m} }

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(dataResponse{Success: true, Data: data})
}

func respondError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(errorResponse{Success: false, Error: msg})
}

// Register mounts the control surface on r, e.g. the /v1 group.
func (h *Handler) Register(r fiber.Router) {
	g := r.Group("/scrapers")
	g.Get("/", h.HandleList)
	g.Get("/jobs", h.HandleJobs)
	g.Get("/jobs/:jobId", h.HandleJob)
	g.Get("/schedules", h.HandleSchedules)
	g.Put("/schedules/:source", h.HandleUpdateSchedule)
	g.Get("/health", h.HandleHealth)
	g.Get("/stats", h.HandleStats)
	g.Post("/:source/run", h.HandleRun)
}

type sourceView struct {
	SourceID  string             `json:"sourceId"`
	Schedule  *schedule.Schedule `json:"schedule,omitempty"`
	ActiveJob *job.Job           `json:"activeJob,omitempty"`
}

func (h *Handler) HandleList(c *fiber.Ctx) error {
	schedules := map[string]schedule.Schedule{}
	for _, s := range h.m.Schedules() {
		schedules[s.SourceID] = s
	}
	out := []sourceView{}
	for _, id := range h.m.Sources() {
		v := sourceView{SourceID: id}
		if s, ok := schedules[id]; ok {
			v.Schedule = &s
		}
		if j, ok := h.m.ledger.Active(id); ok {
			v.ActiveJob = &j
		}
		out = append(out, v)
	}
	return respond(c, fiber.StatusOK, out)
}

func (h *Handler) HandleRun(c *fiber.Ctx) error {
	j, err := h.m.Trigger(c.UserContext(), c.Params("source"))
	if err != nil {
		if errors.Is(err, ErrUnknownSource) {
			return respondError(c, fiber.StatusNotFound, err.Error())
		}
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
	return respond(c, fiber.StatusAccepted, j)
}

func (h *Handler) HandleJobs(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, h.m.Jobs())
}

func (h *Handler) HandleJob(c *fiber.Ctx) error {
	j, err := h.m.JobStatus(c.UserContext(), c.Params("jobId"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return respondError(c, fiber.StatusNotFound, "not_found")
		}
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
	return respond(c, fiber.StatusOK, j)
}

func (h *Handler) HandleSchedules(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, h.m.Schedules())
}

type scheduleRequest struct {
	CronExpression string `json:"cronExpression"`
	Enabled        *bool  `json:"enabled"`
}

func (h *Handler) HandleUpdateSchedule(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid body")
	}
	source := c.Params("source")
	enabled := true
	if cur, found := h.m.table.Get(source); found {
		enabled = cur.Enabled
	}
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	s, err := h.m.UpdateSchedule(source, req.CronExpression, enabled)
	switch {
	case errors.Is(err, ErrUnknownSource):
		return respondError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, schedule.ErrInvalidCron):
		return respondError(c, fiber.StatusBadRequest, err.Error())
	case err != nil:
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
	return respond(c, fiber.StatusOK, s)
}

func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()
	return respond(c, fiber.StatusOK, h.m.HealthCheckAll(ctx))
}

type statsQuery struct {
	Days int `form:"days,min=1"`
}

func (h *Handler) HandleStats(c *fiber.Ctx) error {
	var q statsQuery
	if err := parser.ParseQuery(c, &q); err != nil {
		return respondError(c, fiber.StatusBadRequest, "invalid query")
	}
	return respond(c, fiber.StatusOK, h.m.Stats(c.UserContext(), q.Days))
}
