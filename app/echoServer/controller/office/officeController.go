package office

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	officesvc "scholarhub/service/office"
	"scholarhub/service/workflow"
	"strconv"

	"scholarhub/model"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type Controller struct {
	Svc officesvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// ForwardReq swagger:model ForwardReq
type ForwardReq struct {
	AgentID int64 `json:"agent_id" validate:"required,gt=0"`
}

// RecordPaymentReq swagger:model RecordPaymentReq
type RecordPaymentReq struct {
	Amount        string `json:"amount" validate:"required"`
	ReceiptKey    string `json:"receipt_key" validate:"required"`
	TransactionID string `json:"transaction_id"`
}

// ReviewPaymentReq swagger:model ReviewPaymentReq
type ReviewPaymentReq struct {
	Note string `json:"note"`
}

// POST /v1/office/applications/:id/start-review
func (h *Controller) StartReview(c echo.Context) error {
	return h.step(c, "office start review", h.Svc.StartReview)
}

// POST /v1/office/applications/:id/verify-documents
func (h *Controller) VerifyDocuments(c echo.Context) error {
	return h.step(c, "office verify documents", h.Svc.VerifyDocuments)
}

// POST /v1/office/applications/:id/verify-payment
func (h *Controller) VerifyPayment(c echo.Context) error {
	return h.step(c, "office verify payment", h.Svc.VerifyPayment)
}

// POST /v1/office/applications/:id/forward
func (h *Controller) Forward(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req ForwardReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	uid, _ := c.Get("user_id").(int64)

	app, err := h.Svc.ForwardToAgent(c.Request().Context(), id, req.AgentID, uid)
	if err != nil {
		if errors.Is(err, officesvc.ErrInvalidAgent) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid agent selected"})
		}
		return h.mapErr(c, "office forward", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": app})
}

// POST /v1/office/applications/:id/payments
func (h *Controller) RecordPayment(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req RecordPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid amount"})
	}
	var txnID *string
	if req.TransactionID != "" {
		txnID = &req.TransactionID
	}

	p, err := h.Svc.RecordPayment(c.Request().Context(), id, amount, req.ReceiptKey, txnID)
	if err != nil {
		if errors.Is(err, officesvc.ErrInvalidPayment) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid payment"})
		}
		return h.mapErr(c, "office record payment", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": p})
}

// GET /v1/office/applications/:id/payments
func (h *Controller) Payments(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	payments, err := h.Svc.Payments(c.Request().Context(), id)
	if err != nil {
		return h.mapErr(c, "office list payments", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": payments})
}

// POST /v1/office/payments/:id/approve
func (h *Controller) ApprovePayment(c echo.Context) error {
	return h.reviewPayment(c, "office approve payment", h.Svc.ApprovePayment)
}

// POST /v1/office/payments/:id/reject
func (h *Controller) RejectPayment(c echo.Context) error {
	return h.reviewPayment(c, "office reject payment", h.Svc.RejectPayment)
}

func (h *Controller) reviewPayment(c echo.Context, op string, fn func(ctx context.Context, paymentID, actorID int64, note string) (*model.Payment, error)) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req ReviewPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	uid, _ := c.Get("user_id").(int64)

	p, err := fn(c.Request().Context(), id, uid, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, officesvc.ErrPaymentNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"message": "payment not found"})
		case errors.Is(err, officesvc.ErrPaymentReviewed):
			return c.JSON(http.StatusConflict, echo.Map{"message": "payment already reviewed"})
		}
		return h.mapErr(c, op, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": p})
}

func (h *Controller) step(c echo.Context, op string, fn func(ctx context.Context, appID, actorID int64) (*model.Application, error)) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	app, err := fn(c.Request().Context(), id, uid)
	if err != nil {
		return h.mapErr(c, op, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": app})
}

func (h *Controller) mapErr(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "application not found"})
	case errors.Is(err, workflow.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, echo.Map{"message": "action not valid for current status"})
	case errors.Is(err, workflow.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"message": "application changed concurrently, retry"})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
