package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockServerRepo struct {
	mu    sync.Mutex
	store map[uuid.UUID]*Server
}

func newMockServerRepo() *mockServerRepo {
	return &mockServerRepo{store: make(map[uuid.UUID]*Server)}
}

func (m *mockServerRepo) Create(_ context.Context, s *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	copied := *s
	m.store[s.ID] = &copied
	return nil
}

func (m *mockServerRepo) GetByID(_ context.Context, id uuid.UUID) (*Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return s, nil
}

func (m *mockServerRepo) GetByName(_ context.Context, name string) (*Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("not found")
}

func (m *mockServerRepo) Update(_ context.Context, s *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.store[s.ID]
	if !ok {
		return fmt.Errorf("not found")
	}
	existing.Name, existing.IP, existing.Port, existing.Protocol = s.Name, s.IP, s.Port, s.Protocol
	return nil
}

func (m *mockServerRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	s.Status = status
	return nil
}

func (m *mockServerRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}

func (m *mockServerRepo) List(_ context.Context) ([]*Server, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []*Server
	for _, s := range m.store {
		r = append(r, s)
	}
	return r, nil
}

func (m *mockServerRepo) status(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[id].Status
}

// stubProber answers probes from a fixed set of healthy hosts.
type stubProber struct {
	mu      sync.Mutex
	healthy map[string]bool
}

func (p *stubProber) Healthy(_ context.Context, ip string, port int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy[fmt.Sprintf("%s:%d", ip, port)]
}

func (p *stubProber) set(ip string, port int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy == nil {
		p.healthy = make(map[string]bool)
	}
	p.healthy[fmt.Sprintf("%s:%d", ip, port)] = ok
}

func newTestService() (*Service, *mockServerRepo, *stubProber) {
	repo := newMockServerRepo()
	prober := &stubProber{}
	return NewService(repo, prober), repo, prober
}

// -- Service Tests --

func TestCreateServer_Success(t *testing.T) {
	svc, _, prober := newTestService()
	prober.set("10.0.0.1", 8001, true)

	s := &Server{Name: "ehr-main", IP: "10.0.0.1", Port: 8001, Protocol: ProtocolFHIR}
	if err := svc.CreateServer(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if s.Status != StatusActive {
		t.Errorf("status = %q, want %q", s.Status, StatusActive)
	}
}

func TestCreateServer_NameTaken(t *testing.T) {
	svc, _, prober := newTestService()
	prober.set("10.0.0.1", 8001, true)
	prober.set("10.0.0.2", 8002, true)

	if err := svc.CreateServer(context.Background(), &Server{Name: "ehr-main", IP: "10.0.0.1", Port: 8001, Protocol: ProtocolFHIR}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := svc.CreateServer(context.Background(), &Server{Name: "ehr-main", IP: "10.0.0.2", Port: 8002, Protocol: ProtocolHL7})
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestCreateServer_Unreachable(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.CreateServer(context.Background(), &Server{Name: "lis", IP: "10.0.0.9", Port: 8009, Protocol: ProtocolHL7})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestCreateServer_InvalidProtocol(t *testing.T) {
	svc, _, prober := newTestService()
	prober.set("10.0.0.1", 8001, true)
	err := svc.CreateServer(context.Background(), &Server{Name: "x", IP: "10.0.0.1", Port: 8001, Protocol: "DICOM"})
	if err == nil {
		t.Fatal("expected error for invalid protocol")
	}
}

func TestUpdateServer_NameCollision(t *testing.T) {
	svc, _, prober := newTestService()
	prober.set("10.0.0.1", 8001, true)
	prober.set("10.0.0.2", 8002, true)

	a := &Server{Name: "ehr", IP: "10.0.0.1", Port: 8001, Protocol: ProtocolFHIR}
	b := &Server{Name: "lis", IP: "10.0.0.2", Port: 8002, Protocol: ProtocolHL7}
	svc.CreateServer(context.Background(), a)
	svc.CreateServer(context.Background(), b)

	b.Name = "ehr"
	if err := svc.UpdateServer(context.Background(), b); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}

	// Keeping your own name is not a collision.
	a.IP = "10.0.0.3"
	if err := svc.UpdateServer(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateServer_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.UpdateServer(context.Background(), &Server{ID: uuid.New(), Name: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteServer_NotFound(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.DeleteServer(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// -- Monitor Tests --

func TestMonitor_FlipsStatus(t *testing.T) {
	repo := newMockServerRepo()
	prober := &stubProber{}
	prober.set("10.0.0.1", 8001, true)

	s := &Server{Name: "ehr", IP: "10.0.0.1", Port: 8001, Protocol: ProtocolFHIR, Status: StatusActive}
	repo.Create(context.Background(), s)

	monitor := NewMonitor(repo, prober, 10*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()
	defer func() { cancel(); <-done }()

	prober.set("10.0.0.1", 8001, false)
	waitForStatus(t, repo, s.ID, StatusInactive)

	prober.set("10.0.0.1", 8001, true)
	waitForStatus(t, repo, s.ID, StatusActive)
}

func waitForStatus(t *testing.T, repo *mockServerRepo, id uuid.UUID, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for repo.status(id) != want {
		select {
		case <-deadline:
			t.Fatalf("server never reached status %q (now %q)", want, repo.status(id))
		case <-time.After(5 * time.Millisecond):
		}
	}
}
