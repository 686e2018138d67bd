package router

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"taskflow/internal/auth"
	"taskflow/internal/errors"
	"taskflow/internal/handler"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

func unauthorized(message, code string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{Error: message, Code: code})
}

// jwtMiddleware accepts only access tokens that have not been revoked on logout.
func jwtMiddleware(jwtService *auth.JWTService, tokens auth.TokenStoreInterface) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.ClaimsKey,
		// The query fallback serves websocket clients, which cannot set headers.
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,query:token",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				return nil, err
			}
			revoked, err := tokens.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
			if err != nil {
				return nil, err
			}
			if revoked {
				return nil, auth.ErrInvalidToken
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized("invalid or missing access token", "UNAUTHORIZED")
		},
	})
}

// loadRequester resolves the token subject to a current user record, so role
// changes and deactivation apply before the token expires.
func loadRequester(users service.UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := handler.Claims(c)
			if claims == nil {
				return unauthorized("invalid or missing access token", "UNAUTHORIZED")
			}
			user, err := users.GetUser(c.Request().Context(), claims.UserID)
			if err != nil {
				if errors.IsNotFound(err) {
					return unauthorized("user no longer exists", "UNAUTHORIZED")
				}
				httpErr := errors.MapErrorToHTTP(err)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
			}
			if !user.IsActive {
				httpErr := errors.MapErrorToHTTP(errors.ErrUserInactive)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			c.Set(handler.RequesterKey, user)
			return next(c)
		}
	}
}

func requirePermission(allowed func(auth.Permissions) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if user := handler.Requester(c); user == nil || !allowed(permissionsOf(user)) {
				httpErr := errors.MapErrorToHTTP(errors.ErrPermissionDenied)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			return next(c)
		}
	}
}

func permissionsOf(user *model.User) auth.Permissions {
	if !user.IsActive {
		return auth.Permissions{}
	}
	return auth.PermissionsFor(user.Role)
}
