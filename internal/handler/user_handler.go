package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskflow/internal/auth"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

// UserHandler serves the profile and user administration endpoints.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// MeResponse is the requester's profile together with their permissions.
type MeResponse struct {
	User        *model.User      `json:"user"`
	Permissions auth.Permissions `json:"permissions"`
}

// UpdateProfileRequest changes the requester's own profile. Omitted fields are kept.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Password  *string `json:"password" validate:"omitempty,min=8"`
}

// UpdateRoleRequest sets a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=common premium admin super_admin"`
}

// UpdateStatusRequest enables or disables a user.
type UpdateStatusRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} MeResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) Me(c echo.Context) error {
	user := Requester(c)
	return c.JSON(http.StatusOK, MeResponse{User: user, Permissions: auth.PermissionsFor(user.Role)})
}

// UpdateMe godoc
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /me [patch]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.svc.UpdateProfile(c.Request().Context(), Requester(c), service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Filter by role"
// @Param is_active query bool false "Filter by status"
// @Param search query string false "Email or name contains"
// @Param page query int false "Page (1-based)"
// @Param limit query int false "Page size"
// @Success 200 {object} service.Page[model.User]
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	active, err := queryBool(c, "is_active")
	if err != nil {
		return err
	}
	params, err := pageParams(c)
	if err != nil {
		return err
	}
	page, err := h.svc.ListUsers(c.Request().Context(), Requester(c), service.ListUsersInput{
		Role:       c.QueryParam("role"),
		IsActive:   active,
		Search:     c.QueryParam("search"),
		PageParams: params,
	})
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, page)
}

// GetUser godoc
// @Summary Get user by id
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Description Granting or revoking super_admin requires a super admin. The last active admin cannot be demoted.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body UpdateRoleRequest true "New role"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/users/{id}/role [patch]
func (h *UserHandler) UpdateRole(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.svc.UpdateRole(c.Request().Context(), Requester(c), id, model.Role(req.Role))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateStatus godoc
// @Summary Enable or disable a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body UpdateStatusRequest true "New status"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/users/{id}/status [patch]
func (h *UserHandler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user, err := h.svc.SetActive(c.Request().Context(), Requester(c), id, *req.IsActive)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, user)
}
