package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/servers", h.CreateServer)
	api.GET("/servers", h.ListServers)
	api.GET("/servers/:id", h.GetServer)
	api.PUT("/servers/:id", h.UpdateServer)
	api.DELETE("/servers/:id", h.DeleteServer)
}

func (h *Handler) CreateServer(c echo.Context) error {
	var srv Server
	if err := c.Bind(&srv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateServer(c.Request().Context(), &srv); err != nil {
		switch {
		case errors.Is(err, ErrNameTaken):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, srv)
}

func (h *Handler) ListServers(c echo.Context) error {
	items, err := h.svc.ListServers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Server{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetServer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	srv, err := h.svc.GetServer(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, srv)
}

func (h *Handler) UpdateServer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var srv Server
	if err := c.Bind(&srv); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	srv.ID = id
	if err := h.svc.UpdateServer(c.Request().Context(), &srv); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrNameTaken):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusOK, srv)
}

func (h *Handler) DeleteServer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteServer(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
