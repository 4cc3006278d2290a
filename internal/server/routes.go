package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the relay's HTTP surface.
func (s *Server) RegisterRoutes() {
	s.E.GET("/ws", s.Bridge.Handler())

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
