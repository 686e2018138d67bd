package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"taskflow/internal/auth"
	"taskflow/internal/errors"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

// Context keys set by the router middleware.
const (
	ClaimsKey    = "user"
	RequesterKey = "requester"
)

// Requester returns the authenticated, freshly loaded user of the request.
func Requester(c echo.Context) *model.User {
	user, _ := c.Get(RequesterKey).(*model.User)
	return user
}

// Claims returns the validated access token claims of the request.
func Claims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(ClaimsKey).(*auth.Claims)
	return claims
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		})
	}
	return nil
}

func serviceError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	if httpErr.StatusCode == http.StatusInternalServerError {
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid " + name,
			Code:  "INVALID_ID",
		})
	}
	return uint(id), nil
}

// pageParams reads ?page= and ?limit=. Missing or out-of-range values are
// normalized by the service; non-numeric ones are rejected.
func pageParams(c echo.Context) (service.PageParams, error) {
	page, err := queryInt(c, "page")
	if err != nil {
		return service.PageParams{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return service.PageParams{}, err
	}
	return service.PageParams{Page: page, Limit: limit}, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid " + name,
			Code:  "INVALID_QUERY",
		})
	}
	return v, nil
}

func queryUint(c echo.Context, name string) (*uint, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid " + name,
			Code:  "INVALID_QUERY",
		})
	}
	id := uint(v)
	return &id, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid " + name,
			Code:  "INVALID_QUERY",
		})
	}
	return &v, nil
}
