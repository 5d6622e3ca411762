package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mtakagi/taskboard/internal/board"
	"github.com/mtakagi/taskboard/internal/mirror"
	"github.com/mtakagi/taskboard/internal/model"
	"github.com/mtakagi/taskboard/internal/store"
)

type handler struct {
	board *board.Board
}

func (h *handler) healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// filterFromQuery builds the board filter out of query params:
// status, owner (repeatable), q, updated_after, updated_before.
func filterFromQuery(c echo.Context) (store.Filter, error) {
	var f store.Filter
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			return f, echo.NewHTTPError(http.StatusBadRequest, "unknown status "+raw)
		}
		f.Status = &status
	}
	f.Owners = c.QueryParams()["owner"]
	f.Keyword = c.QueryParam("q")
	for param, dst := range map[string]*time.Time{
		"updated_after":  &f.UpdatedAfter,
		"updated_before": &f.UpdatedBefore,
	} {
		raw := c.QueryParam(param)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "bad "+param+", want YYYY-MM-DD")
		}
		*dst = t
	}
	return f, nil
}

func (h *handler) listTasks(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	tasks := h.board.Tasks(f)
	if tasks == nil {
		tasks = []model.Task{}
	}
	return c.JSON(http.StatusOK, tasks)
}

type addRequest struct {
	Description string `json:"description"`
	Status      string `json:"status"`
	Owner       string `json:"owner"`
	NextAction  string `json:"next_action"`
	Notes       string `json:"notes"`
	Source      string `json:"source"`
}

func (h *handler) addTask(c echo.Context) error {
	var req addRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid request body")
	}
	status, ok := model.ParseStatus(req.Status)
	if !ok {
		return c.String(http.StatusBadRequest, "unknown status "+req.Status)
	}
	task, err := h.board.Add(c.Request().Context(), currentUser(c), store.AddInput{
		Description: req.Description,
		Status:      status,
		Owner:       req.Owner,
		NextAction:  req.NextAction,
		Notes:       req.Notes,
		Source:      req.Source,
	})
	if err != nil {
		return boardError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

type updateRequest struct {
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Owner       *string `json:"owner"`
	NextAction  *string `json:"next_action"`
	Notes       *string `json:"notes"`
	Source      *string `json:"source"`
}

func (h *handler) updateTask(c echo.Context) error {
	var req updateRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid request body")
	}
	ch := store.Changes{
		Description: req.Description,
		Owner:       req.Owner,
		NextAction:  req.NextAction,
		Notes:       req.Notes,
		Source:      req.Source,
	}
	if req.Status != nil {
		status, ok := model.ParseStatus(*req.Status)
		if !ok {
			return c.String(http.StatusBadRequest, "unknown status "+*req.Status)
		}
		ch.Status = &status
	}
	task, err := h.board.Update(c.Request().Context(), currentUser(c), c.Param("id"), ch)
	if err != nil {
		return boardError(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handler) deleteTask(c echo.Context) error {
	if err := h.board.Delete(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return boardError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type closeRequest struct {
	IDs []string `json:"ids"`
}

func (h *handler) closeTasks(c echo.Context) error {
	var req closeRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "invalid request body")
	}
	if len(req.IDs) == 0 {
		return c.String(http.StatusBadRequest, "ids is required")
	}
	closed, err := h.board.Close(c.Request().Context(), currentUser(c), req.IDs...)
	if err != nil {
		return boardError(c, err)
	}
	return c.JSON(http.StatusOK, closed)
}

func (h *handler) listOwners(c echo.Context) error {
	owners := h.board.Owners()
	if owners == nil {
		owners = []string{}
	}
	return c.JSON(http.StatusOK, owners)
}

func (h *handler) listCandidates(c echo.Context) error {
	candidates := h.board.Candidates(time.Now())
	if candidates == nil {
		candidates = []model.Task{}
	}
	return c.JSON(http.StatusOK, candidates)
}

func (h *handler) summary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.board.Summary())
}

func (h *handler) export(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	data, err := h.board.Export(f, format)
	if err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}
	contentType := map[string]string{
		"csv":  "text/csv",
		"json": echo.MIMEApplicationJSON,
		"pdf":  "application/pdf",
	}[format]
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tasks_filtered.`+format+`"`)
	return c.Blob(http.StatusOK, contentType, data)
}

// boardError maps store and mirror errors onto status codes.
func boardError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidValue):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, mirror.ErrConflict):
		return c.String(http.StatusConflict, err.Error())
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}
