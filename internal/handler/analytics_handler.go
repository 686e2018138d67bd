package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskflow/internal/service"
)

// AnalyticsHandler serves the productivity analytics endpoints.
type AnalyticsHandler struct {
	svc service.AnalyticsService
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(svc service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

func respond[T any](c echo.Context, result T, err error) error {
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, result)
}

// Dashboard godoc
// @Summary Analytics dashboard
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param period query string false "week (default), month, quarter or all"
// @Success 200 {object} service.Dashboard
// @Failure 400 {object} errors.ErrorResponse
// @Router /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c echo.Context) error {
	result, err := h.svc.Dashboard(c.Request().Context(), Requester(c), c.QueryParam("period"))
	return respond(c, result, err)
}

// Overview godoc
// @Summary Task counts and completion rate
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param period query string false "week (default), month, quarter or all"
// @Success 200 {object} service.Overview
// @Failure 400 {object} errors.ErrorResponse
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c echo.Context) error {
	result, err := h.svc.Overview(c.Request().Context(), Requester(c), c.QueryParam("period"))
	return respond(c, result, err)
}

// Productivity godoc
// @Summary Productivity score
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param period query string false "week (default), month, quarter or all"
// @Success 200 {object} service.Productivity
// @Failure 400 {object} errors.ErrorResponse
// @Router /analytics/productivity [get]
func (h *AnalyticsHandler) Productivity(c echo.Context) error {
	result, err := h.svc.Productivity(c.Request().Context(), Requester(c), c.QueryParam("period"))
	return respond(c, result, err)
}

// Trends godoc
// @Summary Completion trends
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param period query string false "week (default), month, quarter or all"
// @Success 200 {object} service.Trends
// @Failure 400 {object} errors.ErrorResponse
// @Router /analytics/trends [get]
func (h *AnalyticsHandler) Trends(c echo.Context) error {
	result, err := h.svc.Trends(c.Request().Context(), Requester(c), c.QueryParam("period"))
	return respond(c, result, err)
}

// Categories godoc
// @Summary Per-category breakdown
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param period query string false "week (default), month, quarter or all"
// @Success 200 {array} service.CategoryStats
// @Failure 403 {object} errors.ErrorResponse
// @Router /analytics/categories [get]
func (h *AnalyticsHandler) Categories(c echo.Context) error {
	result, err := h.svc.Categories(c.Request().Context(), Requester(c), c.QueryParam("period"))
	return respond(c, result, err)
}

// Patterns godoc
// @Summary Weekly and hourly patterns
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param period query string false "week (default), month, quarter or all"
// @Success 200 {object} service.Patterns
// @Failure 403 {object} errors.ErrorResponse
// @Router /analytics/patterns [get]
func (h *AnalyticsHandler) Patterns(c echo.Context) error {
	result, err := h.svc.Patterns(c.Request().Context(), Requester(c), c.QueryParam("period"))
	return respond(c, result, err)
}

// Streak godoc
// @Summary Completion streak
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Streak
// @Router /analytics/streak [get]
func (h *AnalyticsHandler) Streak(c echo.Context) error {
	result, err := h.svc.Streak(c.Request().Context(), Requester(c))
	return respond(c, result, err)
}

// Insights godoc
// @Summary Recommendations
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Param period query string false "week (default), month, quarter or all"
// @Success 200 {array} service.Insight
// @Failure 403 {object} errors.ErrorResponse
// @Router /analytics/insights [get]
func (h *AnalyticsHandler) Insights(c echo.Context) error {
	result, err := h.svc.Insights(c.Request().Context(), Requester(c), c.QueryParam("period"))
	return respond(c, result, err)
}
