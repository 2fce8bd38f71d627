package server

import (
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	sessionhandler "pawplanner/backend/internal/session/handler"
)

// mockServiceRegistrar implements grpc.ServiceRegistrar for testing.
type mockServiceRegistrar struct {
	services []string
}

func (m *mockServiceRegistrar) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	m.services = append(m.services, desc.ServiceName)
}

func TestRegisterServices_All(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, GRPCDeps{
		Sessions: sessionhandler.NewGRPCServer(nil, testCookie),
		Health:   health.NewServer(),
	})
	if len(reg.services) != 2 {
		t.Fatalf("registered %v, want 2 services", reg.services)
	}
	if reg.services[0] != sessionhandler.ServiceName {
		t.Errorf("services[0] = %q, want %q", reg.services[0], sessionhandler.ServiceName)
	}
	if reg.services[1] != "grpc.health.v1.Health" {
		t.Errorf("services[1] = %q", reg.services[1])
	}
}

func TestRegisterServices_NilDependencies(t *testing.T) {
	reg := &mockServiceRegistrar{}
	RegisterServices(reg, GRPCDeps{})
	if len(reg.services) != 0 {
		t.Errorf("registered %v with no dependencies", reg.services)
	}
}

func TestNewGRPCServer_RegistersServices(t *testing.T) {
	f := newServerFixture(t)
	s := NewGRPCServer(GRPCDeps{
		Guard:    f.guard,
		Cookie:   testCookie,
		Sessions: sessionhandler.NewGRPCServer(f.sessionSvc, testCookie),
		Health:   health.NewServer(),
	})
	defer s.Stop()
	info := s.GetServiceInfo()
	if _, ok := info[sessionhandler.ServiceName]; !ok {
		t.Errorf("SessionService not registered: %v", info)
	}
	if _, ok := info["grpc.health.v1.Health"]; !ok {
		t.Errorf("health not registered: %v", info)
	}
}
