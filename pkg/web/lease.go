package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/flowboard/flowboard/pkg/sessionlock"
)

// LeaseRequest is the body of the lease endpoints.
type LeaseRequest struct {
	SessionID  string `json:"session_id" validate:"required"`
	TTLSeconds int    `json:"ttl_seconds,omitempty" validate:"omitempty,min=1,max=300"`
}

// LeaseResponse describes an acquired or renewed lease.
type LeaseResponse struct {
	WorkflowID string    `json:"workflow_id"`
	SessionID  string    `json:"session_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func leaseTTL(req LeaseRequest) time.Duration {
	if req.TTLSeconds > 0 {
		return time.Duration(req.TTLSeconds) * time.Second
	}

	return sessionlock.DefaultTTL
}

func leaseConflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("lease_held").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

// AcquireLease takes or renews the editing lease on a workflow.
func (h *APIHandlers) AcquireLease(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req LeaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	lease, err := h.locker.Acquire(c.Context(), id, req.SessionID, leaseTTL(req))
	if err != nil {
		if errors.Is(err, sessionlock.ErrLeaseHeld) {
			return leaseConflict(c, "Workflow is being edited by another session")
		}

		return internalError(c, err)
	}

	return c.JSON(LeaseResponse{
		WorkflowID: lease.WorkflowID,
		SessionID:  lease.SessionID,
		ExpiresAt:  lease.ExpiresAt,
	})
}

// RenewLease extends a held lease.
func (h *APIHandlers) RenewLease(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req LeaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	lease, err := h.locker.Renew(c.Context(), id, req.SessionID, leaseTTL(req))
	if err != nil {
		if errors.Is(err, sessionlock.ErrNotHolder) {
			return leaseConflict(c, "Session does not hold the lease")
		}

		return internalError(c, err)
	}

	return c.JSON(LeaseResponse{
		WorkflowID: lease.WorkflowID,
		SessionID:  lease.SessionID,
		ExpiresAt:  lease.ExpiresAt,
	})
}

// ReleaseLease gives the lease up.
func (h *APIHandlers) ReleaseLease(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req LeaseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.locker.Release(c.Context(), id, req.SessionID); err != nil {
		if errors.Is(err, sessionlock.ErrNotHolder) {
			return leaseConflict(c, "Session does not hold the lease")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetLease reports the current lease holder, empty when free.
func (h *APIHandlers) GetLease(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	holder, err := h.locker.Holder(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"holder": holder})
}
