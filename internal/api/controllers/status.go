package controllers

import (
	"net/http"
	"strconv"

	"github.com/engelphi/metalink-downloader/internal/app"
	"github.com/labstack/echo/v5"
)

type StatusController struct {
	App *app.Context
}

// HandleStatus reports the progress snapshot of the run in flight.
func (ctrl *StatusController) HandleStatus(c *echo.Context) error {
	tracker := ctrl.App.Tracker()
	if tracker == nil {
		return c.JSON(http.StatusOK, map[string]string{"state": "idle"})
	}
	return c.JSON(http.StatusOK, tracker.Snapshot())
}

// HandleListRuns returns the most recent runs from the history store.
func (ctrl *StatusController) HandleListRuns(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return c.String(http.StatusServiceUnavailable, "run history is disabled")
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.String(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	runs, err := ctrl.App.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, runs)
}

// HandleGetRun returns one run with its per-file outcomes.
func (ctrl *StatusController) HandleGetRun(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return c.String(http.StatusServiceUnavailable, "run history is disabled")
	}

	id := c.Param("id")
	if id == "" {
		return c.String(http.StatusBadRequest, "Missing ID")
	}

	run, err := ctrl.App.Store.GetRun(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if run == nil {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, run)
}
