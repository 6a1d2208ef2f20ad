package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/interlink/engine/internal/domain/server"
	"github.com/interlink/engine/internal/engine/message"
)

var (
	ErrNotFound       = errors.New("endpoint not found")
	ErrServerNotFound = errors.New("server does not exist")
	ErrURLTaken       = errors.New("url already exists for this server")
)

// ServerLookup is the slice of the server registry this package needs.
type ServerLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*server.Server, error)
}

type Service struct {
	endpoints EndpointRepository
	servers   ServerLookup
	logger    zerolog.Logger
}

func NewService(endpoints EndpointRepository, servers ServerLookup, logger zerolog.Logger) *Service {
	return &Service{endpoints: endpoints, servers: servers, logger: logger}
}

// CreateEndpoint registers a URL on a server and discovers its field
// catalog from the sample message. Discovered paths with no canonical
// name are logged and dropped; the endpoint and surviving fields are
// written atomically.
func (s *Service) CreateEndpoint(ctx context.Context, serverID uuid.UUID, url, protocol string, sample json.RawMessage) (*Endpoint, error) {
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if _, err := s.servers.GetByID(ctx, serverID); err != nil {
		return nil, ErrServerNotFound
	}
	if _, err := s.endpoints.GetByServerAndURL(ctx, serverID, url); err == nil {
		return nil, ErrURLTaken
	}

	var fields []*Field
	var err error
	switch protocol {
	case server.ProtocolFHIR:
		fields, err = s.discoverFHIRFields(sample)
	case server.ProtocolHL7:
		fields, err = s.discoverHL7Fields(sample)
	default:
		return nil, fmt.Errorf("invalid protocol: %s", protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("extract fields from sample message: %w", err)
	}

	e := &Endpoint{ServerID: serverID, URL: url}
	if err := s.endpoints.CreateWithFields(ctx, e, fields); err != nil {
		return nil, err
	}
	s.logger.Info().Str("url", url).Int("fields", len(fields)).Msg("endpoint registered")
	return e, nil
}

// discoverFHIRFields extracts the catalog from a FHIR sample. A Bundle
// is handled per entry, and entry paths are stored with the resource
// type prefixed so they line up with ingest keys; the canonical table
// is always consulted with the bare path.
func (s *Service) discoverFHIRFields(sample json.RawMessage) ([]*Field, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(sample, &doc); err != nil {
		return nil, fmt.Errorf("sample message is not valid JSON: %w", err)
	}
	resourceType, _ := doc["resourceType"].(string)
	if resourceType == "" {
		return nil, fmt.Errorf("sample message has no resourceType")
	}

	if resourceType != "Bundle" {
		return s.collectFields(resourceType, "", message.ExtractFHIRPaths(doc)), nil
	}

	entries, _ := doc["entry"].([]interface{})
	var fields []*Field
	for _, raw := range entries {
		entry, _ := raw.(map[string]interface{})
		resource, _ := entry["resource"].(map[string]interface{})
		entryType, _ := resource["resourceType"].(string)
		if entryType == "" {
			return nil, fmt.Errorf("bundle entry has no resourceType")
		}
		fields = append(fields, s.collectFields(entryType, entryType+".", message.ExtractFHIRPaths(resource))...)
	}
	return fields, nil
}

func (s *Service) discoverHL7Fields(sample json.RawMessage) ([]*Field, error) {
	// The sample arrives JSON-encoded; a raw HL7 body is accepted too.
	var raw string
	if err := json.Unmarshal(sample, &raw); err != nil {
		raw = string(sample)
	}
	segments := message.SegmentLines(raw)
	if len(segments) == 0 {
		return nil, fmt.Errorf("sample message has no segments after the header")
	}
	var fields []*Field
	for _, segment := range segments {
		segType, paths := message.ExtractHL7SegmentPaths(segment)
		fields = append(fields, s.collectFields(segType, "", paths)...)
	}
	return fields, nil
}

// collectFields matches extracted paths against the canonical table.
// Within one resource block a later path for the same canonical name
// replaces the earlier one.
func (s *Service) collectFields(resource, prefix string, paths []string) []*Field {
	byName := make(map[string]int)
	var out []*Field
	for _, path := range paths {
		name, ok := CanonicalName(path)
		if !ok {
			s.logger.Warn().Str("path", path).Msg("no canonical mapping for path, skipping")
			continue
		}
		if i, seen := byName[name]; seen {
			out[i].Path = prefix + path
			continue
		}
		byName[name] = len(out)
		out = append(out, &Field{Resource: resource, Path: prefix + path, Name: name})
	}
	return out
}

func (s *Service) GetEndpoint(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	e, err := s.endpoints.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return e, nil
}

// ListByServer returns all endpoints registered on a server.
func (s *Service) ListByServer(ctx context.Context, serverID uuid.UUID) ([]*Endpoint, error) {
	if _, err := s.servers.GetByID(ctx, serverID); err != nil {
		return nil, ErrServerNotFound
	}
	return s.endpoints.ListByServer(ctx, serverID)
}

// ListFields returns the discovered field catalog of an endpoint.
func (s *Service) ListFields(ctx context.Context, endpointID uuid.UUID) ([]*Field, error) {
	if _, err := s.endpoints.GetByID(ctx, endpointID); err != nil {
		return nil, ErrNotFound
	}
	return s.endpoints.ListFields(ctx, endpointID)
}
