package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"taskflow/internal/auth"
	"taskflow/internal/handler"
	"taskflow/internal/service"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Task        *handler.TaskHandler
	Category    *handler.CategoryHandler
	Analytics   *handler.AnalyticsHandler
	Maintenance *handler.MaintenanceHandler
	// Realtime is optional; without it /api/ws is not served.
	Realtime *handler.RealtimeHandler
}

// Deps is what the middleware needs to authenticate requests.
type Deps struct {
	JWT        *auth.JWTService
	TokenStore auth.TokenStoreInterface
	Users      service.UserService
	// Health checks reported by /healthz, keyed by component name.
	Health map[string]func(ctx context.Context) error
	// AllowOrigins restricts CORS. Empty allows any origin.
	AllowOrigins []string
}

// Register wires routes and middleware.
func Register(e *echo.Echo, deps Deps, h Handlers) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: deps.AllowOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", healthz(deps.Health))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Secured routes (require a valid, non-revoked access token of an active user)
	secured := api.Group("", jwtMiddleware(deps.JWT, deps.TokenStore), loadRequester(deps.Users))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/me", h.User.Me)
	secured.PATCH("/me", h.User.UpdateMe)

	secured.GET("/tasks", h.Task.ListTasks)
	secured.POST("/tasks", h.Task.CreateTask)
	secured.GET("/tasks/history", h.Task.History)
	secured.GET("/tasks/:id", h.Task.GetTask)
	secured.PATCH("/tasks/:id", h.Task.UpdateTask)
	secured.DELETE("/tasks/:id", h.Task.DeleteTask)

	if h.Realtime != nil {
		secured.GET("/ws", h.Realtime.Stream)
	}

	secured.GET("/categories", h.Category.ListCategories)
	secured.GET("/categories/:id", h.Category.GetCategory)

	analytics := secured.Group("/analytics", requirePermission(func(p auth.Permissions) bool { return p.CanViewAnalytics }))
	analytics.GET("/dashboard", h.Analytics.Dashboard)
	analytics.GET("/overview", h.Analytics.Overview)
	analytics.GET("/productivity", h.Analytics.Productivity)
	analytics.GET("/trends", h.Analytics.Trends)
	analytics.GET("/categories", h.Analytics.Categories)
	analytics.GET("/patterns", h.Analytics.Patterns)
	analytics.GET("/streak", h.Analytics.Streak)
	analytics.GET("/insights", h.Analytics.Insights)

	// Admin routes. Services re-check the finer-grained permissions.
	admin := secured.Group("/admin", requirePermission(func(p auth.Permissions) bool {
		return p.CanManageUsers || p.CanViewAllTasks || p.CanManageCategories || p.CanRunMaintenance
	}))
	admin.GET("/users", h.User.ListUsers)
	admin.GET("/users/:id", h.User.GetUser, requirePermission(func(p auth.Permissions) bool { return p.CanManageUsers }))
	admin.PATCH("/users/:id/role", h.User.UpdateRole)
	admin.PATCH("/users/:id/status", h.User.UpdateStatus)

	admin.GET("/tasks", h.Task.ListAllTasks)
	admin.POST("/tasks/assign", h.Task.AssignTask)

	admin.POST("/categories", h.Category.CreateCategory)
	admin.PATCH("/categories/:id", h.Category.UpdateCategory)
	admin.DELETE("/categories/:id", h.Category.DeleteCategory)

	admin.GET("/maintenance/stats", h.Maintenance.Stats)
	admin.POST("/maintenance/:job", h.Maintenance.RunJob)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func healthz(checks map[string]func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report["status"] = "degraded"
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		return c.JSON(status, report)
	}
}
