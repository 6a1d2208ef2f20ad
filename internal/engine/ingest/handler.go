// Package ingest is the inbound gateway: it resolves the request URL to
// a registered endpoint, flattens the payload into path-keyed values,
// and fans one job out to every route fed by that endpoint. The request
// completes only after every route has reported its delivery outcome.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/interlink/engine/internal/domain/endpoint"
	"github.com/interlink/engine/internal/domain/route"
	"github.com/interlink/engine/internal/domain/server"
	"github.com/interlink/engine/internal/engine/message"
	"github.com/interlink/engine/internal/engine/runtime"
	"github.com/interlink/engine/internal/platform/middleware"
)

// EndpointResolver is the slice of the endpoint registry the gateway
// needs: URL resolution plus the field catalog.
type EndpointResolver interface {
	GetByURL(ctx context.Context, url string) (*endpoint.Endpoint, error)
	ListFields(ctx context.Context, endpointID uuid.UUID) ([]*endpoint.Field, error)
}

// ServerLookup resolves an endpoint's owning server for its protocol.
type ServerLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*server.Server, error)
}

// RouteLister lists the routes fed by a source endpoint.
type RouteLister interface {
	ListBySrcEndpoint(ctx context.Context, srcEndpointID uuid.UUID) ([]*route.Route, error)
}

// Dispatcher hands jobs to per-route workers.
type Dispatcher interface {
	Enqueue(ctx context.Context, routeID uuid.UUID, job *runtime.Job) bool
}

type Gateway struct {
	endpoints  EndpointResolver
	servers    ServerLookup
	routes     RouteLister
	dispatcher Dispatcher
	logger     zerolog.Logger
}

func NewGateway(endpoints EndpointResolver, servers ServerLookup, routes RouteLister, dispatcher Dispatcher, logger zerolog.Logger) *Gateway {
	return &Gateway{
		endpoints:  endpoints,
		servers:    servers,
		routes:     routes,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "ingest").Logger(),
	}
}

// RegisterRoutes mounts the catch-all ingest handler. Echo matches the
// registration API's static paths before this wildcard.
func (g *Gateway) RegisterRoutes(e *echo.Echo) {
	e.POST("/*", g.Ingest)
}

// routeFailure reports one route's delivery error back to the sender.
type routeFailure struct {
	RouteID uuid.UUID `json:"route_id"`
	Error   string    `json:"error"`
}

type ingestResponse struct {
	Status   string         `json:"status"`
	Routes   int            `json:"routes"`
	Failures []routeFailure `json:"failures,omitempty"`
}

// Ingest accepts a message POSTed to a registered endpoint URL. The
// payload is resolved against the endpoint's field catalog, dispatched
// to every route whose source is this endpoint, and the aggregated
// outcome is returned: 200 when every route delivered, 502 listing the
// failed routes otherwise.
func (g *Gateway) Ingest(c echo.Context) error {
	ctx := c.Request().Context()
	url := c.Request().URL.Path

	ep, err := g.endpoints.GetByURL(ctx, url)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no endpoint registered at %s", url))
	}
	c.Set(middleware.IngestEndpointKey, ep.ID.String())
	srv, err := g.servers.GetByID(ctx, ep.ServerID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "endpoint has no owning server")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	fields, err := g.endpoints.ListFields(ctx, ep.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	values, err := g.resolveValues(srv.Protocol, body, fields)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	for _, f := range fields {
		if _, ok := values[f.Path]; !ok {
			g.logger.Warn().Str("url", url).Str("path", f.Path).Msg("catalog field absent from payload")
		}
	}

	routes, err := g.routes.ListBySrcEndpoint(ctx, ep.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	dispatched := g.dispatch(ctx, routes, values)
	c.Set(middleware.IngestRoutesKey, len(dispatched))
	failures := g.await(ctx, dispatched)

	if len(failures) > 0 {
		return c.JSON(http.StatusBadGateway, ingestResponse{
			Status:   "partial_failure",
			Routes:   len(dispatched),
			Failures: failures,
		})
	}
	return c.JSON(http.StatusOK, ingestResponse{Status: "delivered", Routes: len(dispatched)})
}

// dispatch fans one job per route out to the workers. A route whose
// worker is not running yet is skipped with a warning; the manager will
// have it live by the next poll.
func (g *Gateway) dispatch(ctx context.Context, routes []*route.Route, values map[string]interface{}) map[uuid.UUID]*runtime.Job {
	dispatched := make(map[uuid.UUID]*runtime.Job, len(routes))
	for _, rt := range routes {
		job := runtime.NewJob(values)
		if !g.dispatcher.Enqueue(ctx, rt.ID, job) {
			g.logger.Warn().Str("route", rt.Name).Str("route_id", rt.ID.String()).
				Msg("route has no running worker, message skipped")
			continue
		}
		dispatched[rt.ID] = job
	}
	return dispatched
}

// await blocks until every dispatched job resolves, collecting failures.
func (g *Gateway) await(ctx context.Context, dispatched map[uuid.UUID]*runtime.Job) []routeFailure {
	var failures []routeFailure
	for routeID, job := range dispatched {
		select {
		case err := <-job.Done():
			if err != nil {
				failures = append(failures, routeFailure{RouteID: routeID, Error: err.Error()})
			}
		case <-ctx.Done():
			failures = append(failures, routeFailure{RouteID: routeID, Error: "request cancelled before delivery completed"})
		}
	}
	return failures
}

// resolveValues flattens the payload into catalog-path keyed values.
// Catalog fields the payload does not carry are simply absent from the
// result; only an unparsable payload is an error.
func (g *Gateway) resolveValues(protocol string, body []byte, fields []*endpoint.Field) (map[string]interface{}, error) {
	switch protocol {
	case server.ProtocolHL7:
		return resolveHL7(body, fields)
	default:
		return resolveFHIR(body, fields)
	}
}

func resolveFHIR(body []byte, fields []*endpoint.Field) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("body is not valid JSON: %w", err)
	}

	values := make(map[string]interface{})
	if resourceType, _ := doc["resourceType"].(string); resourceType == "Bundle" {
		byType := bundleResourcesByType(doc)
		for _, f := range fields {
			entryType, bare, found := strings.Cut(f.Path, ".")
			if !found {
				continue
			}
			for _, resource := range byType[entryType] {
				if v, ok := message.ResolveFHIRPath(resource, bare); ok {
					values[f.Path] = v
					break
				}
			}
		}
		return values, nil
	}

	for _, f := range fields {
		if v, ok := message.ResolveFHIRPath(doc, f.Path); ok {
			values[f.Path] = v
		}
	}
	return values, nil
}

// bundleResourcesByType indexes a Bundle's entry resources by their
// resource type, preserving entry order within a type.
func bundleResourcesByType(doc map[string]interface{}) map[string][]map[string]interface{} {
	byType := make(map[string][]map[string]interface{})
	entries, _ := doc["entry"].([]interface{})
	for _, raw := range entries {
		entry, _ := raw.(map[string]interface{})
		resource, _ := entry["resource"].(map[string]interface{})
		entryType, _ := resource["resourceType"].(string)
		if entryType == "" {
			continue
		}
		byType[entryType] = append(byType[entryType], resource)
	}
	return byType
}

func resolveHL7(body []byte, fields []*endpoint.Field) (map[string]interface{}, error) {
	// The message may arrive raw or as a JSON-encoded string.
	raw := string(body)
	var decoded string
	if err := json.Unmarshal(body, &decoded); err == nil {
		raw = decoded
	}
	if len(message.SegmentLines(raw)) == 0 {
		return nil, fmt.Errorf("message has no segments after the header")
	}

	paths := make([]string, 0, len(fields))
	for _, f := range fields {
		paths = append(paths, f.Path)
	}
	values := make(map[string]interface{})
	for path, v := range message.ResolveHL7Values(raw, paths) {
		values[path] = v
	}
	return values, nil
}
