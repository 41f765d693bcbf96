package handler

import (
	"net/http"

	"github.com/abdusco/shortly/internal/auth"
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the admin API and the redirect route on e.
// A nil authenticator leaves the admin API open.
func RegisterRoutes(e *echo.Echo, linkHandler *LinkHandler, authenticator *auth.Authenticator) {
	e.GET("/_health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/links")
	if authenticator != nil {
		authHandler := NewAuthHandler(authenticator)
		e.POST("/auth/login", authHandler.Login)
		e.GET("/auth/logout", authHandler.Logout)

		api.Use(authenticator.Middleware())
	}

	api.GET("", linkHandler.ListLinks)
	api.POST("", linkHandler.CreateLink)
	api.GET("/:code", linkHandler.GetLink)
	api.DELETE("/:code", linkHandler.DeleteLink)

	// Parameterized route (must be last)
	e.GET("/:code", linkHandler.Redirect)
}
