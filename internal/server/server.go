// Package server exposes the board over HTTP: the three UI intents
// (view with filters, add, update) plus the candidate/close/export actions.
package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/mtakagi/taskboard/internal/board"
)

const userContextKey = "taskboard.user"

// Register wires up all routes on the provided Echo instance.
// users maps login name to token; an empty map disables authentication
// and attributes every change to "anonymous".
func Register(e *echo.Echo, b *board.Board, users map[string]string, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	e.Use(authMiddleware(users))

	h := &handler{board: b}

	e.GET("/healthz", h.healthz)
	e.GET("/api/tasks", h.listTasks)
	e.POST("/api/tasks", h.addTask)
	e.PATCH("/api/tasks/:id", h.updateTask)
	e.DELETE("/api/tasks/:id", h.deleteTask)
	e.POST("/api/tasks/close", h.closeTasks)
	e.GET("/api/owners", h.listOwners)
	e.GET("/api/candidates", h.listCandidates)
	e.GET("/api/summary", h.summary)
	e.GET("/api/export", h.export)
}

func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			logger.WithFields(log.Fields{
				"method": c.Request().Method,
				"path":   c.Request().URL.Path,
				"status": c.Response().Status,
			}).Debug("request")
			return err
		}
	}
}

// authMiddleware resolves the acting user from a static token table.
// Tokens travel as "Authorization: Bearer <token>".
func authMiddleware(users map[string]string) echo.MiddlewareFunc {
	byToken := make(map[string]string, len(users))
	for name, token := range users {
		byToken[token] = name
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(byToken) == 0 {
				c.Set(userContextKey, "anonymous")
				return next(c)
			}
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return c.String(http.StatusUnauthorized, "missing bearer token")
			}
			user, known := byToken[strings.TrimSpace(token)]
			if !known {
				return c.String(http.StatusUnauthorized, "unknown token")
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

func currentUser(c echo.Context) string {
	if u, ok := c.Get(userContextKey).(string); ok && u != "" {
		return u
	}
	return "anonymous"
}
