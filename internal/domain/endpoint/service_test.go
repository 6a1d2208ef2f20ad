package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/interlink/engine/internal/domain/server"
)

// -- Mock Repository --

type mockEndpointRepo struct {
	endpoints map[uuid.UUID]*Endpoint
	fields    map[uuid.UUID][]*Field
}

func newMockEndpointRepo() *mockEndpointRepo {
	return &mockEndpointRepo{
		endpoints: make(map[uuid.UUID]*Endpoint),
		fields:    make(map[uuid.UUID][]*Field),
	}
}

func (m *mockEndpointRepo) CreateWithFields(_ context.Context, e *Endpoint, fields []*Field) error {
	e.ID = uuid.New()
	m.endpoints[e.ID] = e
	for _, f := range fields {
		f.ID = uuid.New()
		f.EndpointID = e.ID
	}
	m.fields[e.ID] = fields
	return nil
}

func (m *mockEndpointRepo) GetByID(_ context.Context, id uuid.UUID) (*Endpoint, error) {
	e, ok := m.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return e, nil
}

func (m *mockEndpointRepo) GetByURL(_ context.Context, url string) (*Endpoint, error) {
	for _, e := range m.endpoints {
		if e.URL == url {
			return e, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockEndpointRepo) GetByServerAndURL(_ context.Context, serverID uuid.UUID, url string) (*Endpoint, error) {
	for _, e := range m.endpoints {
		if e.ServerID == serverID && e.URL == url {
			return e, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockEndpointRepo) ListByServer(_ context.Context, serverID uuid.UUID) ([]*Endpoint, error) {
	var r []*Endpoint
	for _, e := range m.endpoints {
		if e.ServerID == serverID {
			r = append(r, e)
		}
	}
	return r, nil
}

func (m *mockEndpointRepo) ListFields(_ context.Context, endpointID uuid.UUID) ([]*Field, error) {
	return m.fields[endpointID], nil
}

type stubServerLookup struct {
	known map[uuid.UUID]*server.Server
}

func (s *stubServerLookup) GetByID(_ context.Context, id uuid.UUID) (*server.Server, error) {
	srv, ok := s.known[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return srv, nil
}

func newTestService() (*Service, *mockEndpointRepo, uuid.UUID) {
	repo := newMockEndpointRepo()
	serverID := uuid.New()
	servers := &stubServerLookup{known: map[uuid.UUID]*server.Server{
		serverID: {ID: serverID, Name: "ehr", Protocol: server.ProtocolFHIR},
	}}
	return NewService(repo, servers, zerolog.Nop()), repo, serverID
}

const fhirSample = `{
	"resourceType": "Patient",
	"gender": "male",
	"birthDate": "2004-10-06",
	"name": [{"text": "John Smith", "given": ["John", "Q"]}],
	"maritalStatus": {"text": "Married"}
}`

// -- Service Tests --

func TestCreateEndpoint_FHIRDiscovery(t *testing.T) {
	svc, repo, serverID := newTestService()

	e, err := svc.CreateEndpoint(context.Background(), serverID, "/patients", server.ProtocolFHIR, json.RawMessage(fhirSample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Fatal("expected endpoint id to be set")
	}

	fields, _ := repo.ListFields(context.Background(), e.ID)
	byName := make(map[string]*Field)
	for _, f := range fields {
		byName[f.Name] = f
	}
	for name, wantPath := range map[string]string{
		"gender":     "gender",
		"birth date": "birthDate",
		"fullname":   "name[0].text",
		"given name": "name[0].given",
	} {
		f, ok := byName[name]
		if !ok {
			t.Errorf("missing discovered field %q", name)
			continue
		}
		if f.Path != wantPath {
			t.Errorf("field %q path = %q, want %q", name, f.Path, wantPath)
		}
		if f.Resource != "Patient" {
			t.Errorf("field %q resource = %q, want Patient", name, f.Resource)
		}
	}
	// maritalStatus.text has no canonical name and must be dropped.
	if _, ok := byName["maritalStatus.text"]; ok {
		t.Error("uncatalogued path must not become a field")
	}
}

func TestCreateEndpoint_BundlePrefixesPaths(t *testing.T) {
	svc, repo, serverID := newTestService()
	bundle := `{
		"resourceType": "Bundle",
		"entry": [
			{"resource": {"resourceType": "Patient", "gender": "female"}}
		]
	}`

	e, err := svc.CreateEndpoint(context.Background(), serverID, "/bundles", server.ProtocolFHIR, json.RawMessage(bundle))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields, _ := repo.ListFields(context.Background(), e.ID)
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Path != "Patient.gender" {
		t.Errorf("bundle path = %q, want Patient.gender", fields[0].Path)
	}
}

func TestCreateEndpoint_HL7Discovery(t *testing.T) {
	svc, repo, serverID := newTestService()
	sample := "MSH|^~\\&|SND||RCV||20240101||ADT^A01|1|P|2.5\nPID|1||12345||Smith^John||20041006|M"
	encoded, _ := json.Marshal(sample)

	e, err := svc.CreateEndpoint(context.Background(), serverID, "/hl7/adt", server.ProtocolHL7, encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields, _ := repo.ListFields(context.Background(), e.ID)
	byPath := make(map[string]*Field)
	for _, f := range fields {
		byPath[f.Path] = f
	}
	for path, name := range map[string]string{
		"PID-3":   "mpi",
		"PID-5.1": "family name",
		"PID-5.2": "given name",
		"PID-7":   "birth date",
		"PID-8":   "gender",
	} {
		f, ok := byPath[path]
		if !ok {
			t.Errorf("missing discovered path %q", path)
			continue
		}
		if f.Name != name || f.Resource != "PID" {
			t.Errorf("path %q = (%q, %q), want (%q, PID)", path, f.Name, f.Resource, name)
		}
	}
	// PID-1 has no canonical mapping.
	if _, ok := byPath["PID-1"]; ok {
		t.Error("PID-1 must be dropped")
	}
}

func TestCreateEndpoint_ServerMissing(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateEndpoint(context.Background(), uuid.New(), "/x", server.ProtocolFHIR, json.RawMessage(fhirSample))
	if !errors.Is(err, ErrServerNotFound) {
		t.Fatalf("expected ErrServerNotFound, got %v", err)
	}
}

func TestCreateEndpoint_DuplicateURL(t *testing.T) {
	svc, _, serverID := newTestService()
	if _, err := svc.CreateEndpoint(context.Background(), serverID, "/patients", server.ProtocolFHIR, json.RawMessage(fhirSample)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.CreateEndpoint(context.Background(), serverID, "/patients", server.ProtocolFHIR, json.RawMessage(fhirSample))
	if !errors.Is(err, ErrURLTaken) {
		t.Fatalf("expected ErrURLTaken, got %v", err)
	}
}

func TestCreateEndpoint_BadSample(t *testing.T) {
	svc, _, serverID := newTestService()
	if _, err := svc.CreateEndpoint(context.Background(), serverID, "/x", server.ProtocolFHIR, json.RawMessage(`{"id": "no-resource-type"}`)); err == nil {
		t.Fatal("expected error for sample without resourceType")
	}
	if _, err := svc.CreateEndpoint(context.Background(), serverID, "/y", server.ProtocolFHIR, json.RawMessage(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON sample")
	}
}

func TestListFields_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.ListFields(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
