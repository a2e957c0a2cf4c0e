package scholarship

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	scholarshipsvc "scholarhub/service/scholarship"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type Controller struct {
	Svc scholarshipsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// CreateScholarshipReq amounts travel as strings to keep cents exact.
// swagger:model CreateScholarshipReq
type CreateScholarshipReq struct {
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description"`
	City            string `json:"city"`
	Major           string `json:"major"`
	Degree          string `json:"degree"`
	Language        string `json:"language"`
	Semester        string `json:"semester"`
	Eligibility     string `json:"eligibility"`
	Deadline        string `json:"deadline"` // YYYY-MM-DD
	Price           string `json:"price" validate:"required"`
	AgentCommission string `json:"agent_commission" validate:"required"`
	HQCommission    string `json:"hq_commission" validate:"required"`
}

// POST /v1/scholarships (admin)
func (h *Controller) Create(c echo.Context) error {
	var req CreateScholarshipReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid price"})
	}
	agentComm, err := decimal.NewFromString(req.AgentCommission)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid agent_commission"})
	}
	hqComm, err := decimal.NewFromString(req.HQCommission)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid hq_commission"})
	}

	var deadline *time.Time
	if req.Deadline != "" {
		d, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid deadline, want YYYY-MM-DD"})
		}
		deadline = &d
	}

	sch, err := h.Svc.Create(c.Request().Context(), scholarshipsvc.CreateReq{
		Name:            req.Name,
		Description:     req.Description,
		City:            req.City,
		Major:           req.Major,
		Degree:          req.Degree,
		Language:        req.Language,
		Semester:        req.Semester,
		Eligibility:     req.Eligibility,
		Deadline:        deadline,
		Price:           price,
		AgentCommission: agentComm,
		HQCommission:    hqComm,
	})
	if err != nil {
		if errors.Is(err, scholarshipsvc.ErrBadInput) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "bad input"})
		}
		h.Log.Error("scholarship create", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": sch})
}

// GET /v1/scholarships
func (h *Controller) List(c echo.Context) error {
	rows, err := h.Svc.List(c.Request().Context())
	if err != nil {
		h.Log.Error("scholarship list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/scholarships/:id
func (h *Controller) Detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	sch, err := h.Svc.Detail(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "scholarship not found"})
		}
		h.Log.Error("scholarship detail", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": sch})
}
