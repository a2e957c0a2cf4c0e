package application

import (
	"errors"
	"log/slog"
	"net/http"
	officesvc "scholarhub/service/office"
	"scholarhub/service/workflow"
	"strconv"

	"scholarhub/model"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Controller serves the shared application reads plus creation/submission,
// which both students and office workers may perform.
type Controller struct {
	Office officesvc.Service
	Engine *workflow.Engine
	V      *validator.Validate
	Log    *slog.Logger
}

// CreateApplicationReq applicant_id is only honored for office workers;
// students always apply for themselves.
// swagger:model CreateApplicationReq
type CreateApplicationReq struct {
	ScholarshipID int64 `json:"scholarship_id" validate:"required,gt=0"`
	ApplicantID   int64 `json:"applicant_id"`
}

// POST /v1/applications
func (h *Controller) Create(c echo.Context) error {
	var req CreateApplicationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}

	uid, _ := c.Get("user_id").(int64)
	role, _ := c.Get("role").(string)
	applicantID := uid
	if role == string(model.RoleOffice) && req.ApplicantID > 0 {
		applicantID = req.ApplicantID
	}

	app, err := h.Office.CreateApplication(c.Request().Context(), req.ScholarshipID, applicantID)
	if err != nil {
		if errors.Is(err, officesvc.ErrScholarshipNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "scholarship not found"})
		}
		h.Log.Error("application create", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": app})
}

// POST /v1/applications/:id/submit
func (h *Controller) Submit(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	app, err := h.Office.Submit(c.Request().Context(), id, uid)
	if err != nil {
		if errors.Is(err, officesvc.ErrNotApplicant) {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "not your application"})
		}
		return mapWorkflowErr(c, h.Log, "application submit", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": app})
}

// GET /v1/applications/:id
func (h *Controller) Detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	app, err := h.Engine.Get(c.Request().Context(), id)
	if err != nil {
		return mapWorkflowErr(c, h.Log, "application detail", err)
	}
	if !mayRead(c, app) {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "application not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": app})
}

// GET /v1/applications/mine
func (h *Controller) Mine(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	apps, err := h.Engine.ListByApplicant(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("application list mine", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": apps})
}

// GET /v1/applications/:id/history
func (h *Controller) History(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	app, err := h.Engine.Get(c.Request().Context(), id)
	if err != nil {
		return mapWorkflowErr(c, h.Log, "application history", err)
	}
	if !mayRead(c, app) {
		return c.JSON(http.StatusNotFound, echo.Map{"message": "application not found"})
	}

	rows, err := h.Engine.History(c.Request().Context(), id)
	if err != nil {
		h.Log.Error("application history", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// mayRead hides other students' applications behind a 404; staff roles see all.
func mayRead(c echo.Context, app *model.Application) bool {
	role, _ := c.Get("role").(string)
	if role != string(model.RoleStudent) {
		return true
	}
	uid, _ := c.Get("user_id").(int64)
	return app.ApplicantID == uid
}

func mapWorkflowErr(c echo.Context, log *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "application not found"})
	case errors.Is(err, workflow.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, echo.Map{"message": "action not valid for current status"})
	case errors.Is(err, workflow.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"message": "application changed concurrently, retry"})
	default:
		log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
