package endpoint

import (
	"encoding/json"
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
	api.POST("/endpoints", h.CreateEndpoint)
	api.GET("/servers/:id/endpoints", h.ListServerEndpoints)
	api.GET("/endpoints/:id/fields", h.ListEndpointFields)
}

type createEndpointRequest struct {
	ServerID  uuid.UUID       `json:"server_id"`
	URL       string          `json:"url"`
	Protocol  string          `json:"protocol"`
	SampleMsg json.RawMessage `json:"sample_msg"`
}

func (h *Handler) CreateEndpoint(c echo.Context) error {
	var req createEndpointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.CreateEndpoint(c.Request().Context(), req.ServerID, req.URL, req.Protocol, req.SampleMsg)
	if err != nil {
		// Missing server and duplicate URL are both client mistakes on
		// this operation.
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListServerEndpoints(c echo.Context) error {
	serverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListByServer(c.Request().Context(), serverID)
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Endpoint{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListEndpointFields(c echo.Context) error {
	endpointID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListFields(c.Request().Context(), endpointID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Field{}
	}
	return c.JSON(http.StatusOK, items)
}
