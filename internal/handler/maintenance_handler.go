package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskflow/internal/service"
)

// MaintenanceHandler exposes the housekeeping jobs to admins.
type MaintenanceHandler struct {
	svc service.HousekeepingService
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(svc service.HousekeepingService) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

// Stats godoc
// @Summary Housekeeping stats
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.HousekeepingStats
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/maintenance/stats [get]
func (h *MaintenanceHandler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context(), Requester(c))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// RunJob godoc
// @Summary Run a housekeeping job now
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param job path string true "overdue, visibility or notifications"
// @Success 200 {object} service.JobResult
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/maintenance/{job} [post]
func (h *MaintenanceHandler) RunJob(c echo.Context) error {
	result, err := h.svc.RunJob(c.Request().Context(), Requester(c), c.Param("job"))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, result)
}
