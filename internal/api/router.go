package api

import (
	"github.com/engelphi/metalink-downloader/internal/api/controllers"
	"github.com/engelphi/metalink-downloader/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	statusCtrl := &controllers.StatusController{App: app}

	// Live progress of the active run
	e.GET("/api/status", statusCtrl.HandleStatus)

	// Run history
	e.GET("/api/runs", statusCtrl.HandleListRuns)
	e.GET("/api/runs/:id", statusCtrl.HandleGetRun)
}
