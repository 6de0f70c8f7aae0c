package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/ticket-sync/internal/api/dto"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/observability"
	"github.com/spec-kit/ticket-sync/internal/service"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// SyncHandler exposes sync runs to operators.
type SyncHandler struct {
	runs    *service.RunService
	metrics *observability.Metrics
}

// NewSyncHandler constructs handler.
func NewSyncHandler(runs *service.RunService, metrics *observability.Metrics) *SyncHandler {
	return &SyncHandler{runs: runs, metrics: metrics}
}

// StartRun handles POST /sync/runs. The view sync continues after the response.
func (h *SyncHandler) StartRun(c *fiber.Ctx) error {
	var req dto.RunRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	mode := domain.SyncMode(req.Mode)
	if mode != domain.SyncModeAll && mode != domain.SyncModeRecent {
		return apperrors.NewValidationError("mode must be all or recent", map[string]any{"mode": req.Mode})
	}

	run, err := h.runs.Start(c.UserContext(), service.RunRequest{Mode: mode})
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": dto.NewRunResponse(run)})
}

// SyncTicket handles POST /sync/tickets/:id.
func (h *SyncHandler) SyncTicket(c *fiber.Ctx) error {
	ticketID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || ticketID <= 0 {
		return apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}

	run, err := h.runs.Run(c.UserContext(), service.RunRequest{Mode: domain.SyncModeTicket, TicketID: ticketID})
	if run == nil {
		return err
	}
	status := http.StatusOK
	if err != nil {
		status = apperrors.ToDomainError(err).HTTPStatus
		if status < http.StatusBadRequest || status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewRunResponse(run)})
}

// ListRuns handles GET /sync/runs.
func (h *SyncHandler) ListRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultRunsLimit)
	if limit <= 0 || limit > maxRunsLimit {
		return apperrors.NewValidationError("limit out of range", map[string]any{"limit": limit, "max": maxRunsLimit})
	}
	runs, err := h.runs.ListRuns(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRunResponses(runs)})
}

// GetRun handles GET /sync/runs/:id.
func (h *SyncHandler) GetRun(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFound("sync run", map[string]any{"run_id": id})
	}
	run, err := h.runs.GetRun(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRunResponse(run)})
}

// Metrics handles GET /sync/metrics.
func (h *SyncHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
