package hq

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	hqsvc "scholarhub/service/hq"
	"scholarhub/service/workflow"
	"strconv"

	"scholarhub/model"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc hqsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// UploadReq file_key is the storage key of the already-uploaded document.
// swagger:model UploadReq
type UploadReq struct {
	FileKey string `json:"file_key" validate:"required"`
}

// POST /v1/hq/applications/:id/applied
func (h *Controller) MarkApplied(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	app, err := h.Svc.MarkApplied(c.Request().Context(), id, uid)
	if err != nil {
		return h.mapErr(c, "hq mark applied", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": app})
}

// POST /v1/hq/applications/:id/letter
func (h *Controller) UploadLetter(c echo.Context) error {
	return h.upload(c, "hq upload letter", h.Svc.UploadAdmissionLetter)
}

// POST /v1/hq/applications/:id/jw02
func (h *Controller) UploadJW02(c echo.Context) error {
	return h.upload(c, "hq upload jw02", h.Svc.UploadJW02)
}

func (h *Controller) upload(c echo.Context, op string, fn func(ctx context.Context, appID, hqID int64, fileKey string) (*model.Application, error)) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req UploadReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	app, err := fn(c.Request().Context(), id, uid, req.FileKey)
	if err != nil {
		return h.mapErr(c, op, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": app})
}

func (h *Controller) mapErr(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, hqsvc.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "application not found"})
	case errors.Is(err, hqsvc.ErrNotAssigned):
		return c.JSON(http.StatusForbidden, echo.Map{"message": "application is not assigned to you"})
	case errors.Is(err, hqsvc.ErrFileKeyRequired):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "file key is required"})
	case errors.Is(err, workflow.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, echo.Map{"message": "action not valid for current status"})
	case errors.Is(err, workflow.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"message": "application changed concurrently, retry"})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
