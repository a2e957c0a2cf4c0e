package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"scholarhub/service/ledger"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Controller handles the admin withdrawal review queue.
type Controller struct {
	Svc ledger.Service
	V   *validator.Validate
	Log *slog.Logger
}

// RejectWithdrawalReq swagger:model RejectWithdrawalReq
type RejectWithdrawalReq struct {
	Reason string `json:"reason" validate:"required"`
}

// GET /v1/admin/withdrawals
func (h *Controller) PendingWithdrawals(c echo.Context) error {
	reqs, err := h.Svc.PendingWithdrawals(c.Request().Context())
	if err != nil {
		h.Log.Error("admin pending withdrawals", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": reqs})
}

// POST /v1/admin/withdrawals/:id/approve
func (h *Controller) Approve(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	wr, err := h.Svc.ApproveWithdrawal(c.Request().Context(), id, uid)
	if err != nil {
		return h.mapErr(c, "admin approve withdrawal", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": wr})
}

// POST /v1/admin/withdrawals/:id/reject
func (h *Controller) Reject(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req RejectWithdrawalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	wr, err := h.Svc.RejectWithdrawal(c.Request().Context(), id, uid, req.Reason)
	if err != nil {
		return h.mapErr(c, "admin reject withdrawal", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": wr})
}

func (h *Controller) mapErr(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"message": "withdrawal request is not pending"})
	case errors.Is(err, ledger.ErrRequestNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "withdrawal request not found"})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
