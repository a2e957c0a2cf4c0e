package agent

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	agentsvc "scholarhub/service/agent"
	"scholarhub/service/workflow"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc agentsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// ApproveReq swagger:model ApproveReq
type ApproveReq struct {
	DeadlineDays int    `json:"deadline_days" validate:"omitempty,gte=1,lte=90"`
	Note         string `json:"note"`
}

// RejectReq swagger:model RejectReq
type RejectReq struct {
	Reason string `json:"reason" validate:"required"`
}

// RevisionReq swagger:model RevisionReq
type RevisionReq struct {
	Note string `json:"note" validate:"required"`
}

// POST /v1/agent/applications/:id/approve
func (h *Controller) Approve(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req ApproveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	app, err := h.Svc.Approve(c.Request().Context(), id, uid, req.DeadlineDays, req.Note)
	if err != nil {
		return h.mapErr(c, "agent approve", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": app})
}

// POST /v1/agent/applications/:id/reject
func (h *Controller) Reject(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req RejectReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	app, err := h.Svc.Reject(c.Request().Context(), id, uid, req.Reason)
	if err != nil {
		return h.mapErr(c, "agent reject", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": app})
}

// POST /v1/agent/applications/:id/letter/approve
func (h *Controller) ApproveLetter(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	credited, err := h.Svc.ApproveAdmissionLetter(c.Request().Context(), id, uid)
	if err != nil {
		return h.mapErr(c, "agent approve letter", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "admission letter approved", "credited": credited})
}

// POST /v1/agent/applications/:id/letter/revision
func (h *Controller) RequestLetterRevision(c echo.Context) error {
	return h.revision(c, "agent letter revision", h.Svc.RequestLetterRevision)
}

// POST /v1/agent/applications/:id/jw02/approve
func (h *Controller) ApproveJW02(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	released, err := h.Svc.ApproveJW02(c.Request().Context(), id, uid)
	if err != nil {
		return h.mapErr(c, "agent approve jw02", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "jw02 approved, application complete", "released": released})
}

// POST /v1/agent/applications/:id/jw02/revision
func (h *Controller) RequestJW02Revision(c echo.Context) error {
	return h.revision(c, "agent jw02 revision", h.Svc.RequestJW02Revision)
}

func (h *Controller) revision(c echo.Context, op string, fn func(ctx context.Context, appID, agentID int64, note string) error) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req RevisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	if err := fn(c.Request().Context(), id, uid, req.Note); err != nil {
		return h.mapErr(c, op, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "revision requested"})
}

func (h *Controller) mapErr(c echo.Context, op string, err error) error {
	switch agentsvc.Code(err) {
	case agentsvc.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": "application not found"})
	case agentsvc.ErrNotAssigned:
		return c.JSON(http.StatusForbidden, echo.Map{"message": "application is not assigned to you"})
	case agentsvc.ErrNoPendingDoc:
		return c.JSON(http.StatusConflict, echo.Map{"message": "no document pending verification"})
	case agentsvc.ErrReasonRequired:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "a reason is required"})
	}
	switch {
	case errors.Is(err, workflow.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, echo.Map{"message": "action not valid for current status"})
	case errors.Is(err, workflow.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"message": "application changed concurrently, retry"})
	}
	h.Log.Error(op, "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
