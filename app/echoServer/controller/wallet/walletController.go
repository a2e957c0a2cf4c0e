package wallet

import (
	"errors"
	"log/slog"
	"net/http"
	"scholarhub/service/ledger"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type Controller struct {
	Svc ledger.Service
	V   *validator.Validate
	Log *slog.Logger
}

// WithdrawReq amount is a decimal string, e.g. "150.00".
// swagger:model WithdrawReq
type WithdrawReq struct {
	Amount string `json:"amount" validate:"required"`
}

// GET /v1/wallet
func (h *Controller) Get(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	w, err := h.Svc.GetOrCreateWallet(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("wallet get", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": w})
}

// GET /v1/wallet/transactions
func (h *Controller) Transactions(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	txns, err := h.Svc.Transactions(c.Request().Context(), uid, limit)
	if err != nil {
		h.Log.Error("wallet transactions", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": txns})
}

// GET /v1/wallet/withdrawals
func (h *Controller) Withdrawals(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	reqs, err := h.Svc.Withdrawals(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("wallet withdrawals", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": reqs})
}

// POST /v1/wallet/withdrawals
func (h *Controller) RequestWithdrawal(c echo.Context) error {
	var req WithdrawReq
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
	uid, _ := c.Get("user_id").(int64)

	wr, err := h.Svc.RequestWithdrawal(c.Request().Context(), uid, amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrBelowMinimum):
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "amount is below the minimum withdrawal"})
		case errors.Is(err, ledger.ErrInvalidAmount):
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "amount must be positive"})
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"message": "insufficient balance"})
		}
		h.Log.Error("wallet request withdrawal", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": wr})
}
