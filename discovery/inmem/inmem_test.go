package inmem

import (
	"context"
	"testing"
)

func TestRegisterDiscoverDeregister(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	if err := r.Register(ctx, "inventory-1", "inventory", "localhost:9100"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	addrs, err := r.Discover(ctx, "inventory")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(addrs) != 1 || addrs[0] != "localhost:9100" {
		t.Fatalf("Discover = %v, want [localhost:9100]", addrs)
	}

	if err := r.Deregister(ctx, "inventory-1", "inventory"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	if _, err := r.Discover(ctx, "inventory"); err == nil {
		t.Fatal("expected error discovering a deregistered service")
	}
}

func TestDiscoverUnknownService(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Discover(context.Background(), "nonexistent"); err == nil {
		t.Fatal("expected error for unregistered service")
	}
}

func TestHealthCheckRequiresPriorRegistration(t *testing.T) {
	r := NewRegistry()
	if err := r.HealthCheck("inventory-1", "inventory"); err == nil {
		t.Fatal("expected error health-checking an unregistered instance")
	}

	ctx := context.Background()
	if err := r.Register(ctx, "inventory-1", "inventory", "localhost:9100"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.HealthCheck("inventory-1", "inventory"); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestServiceAddressesFreshInstance(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	if err := r.Register(ctx, "inventory-1", "inventory", "localhost:9100"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	addrs, err := r.ServiceAddresses(ctx, "inventory")
	if err != nil {
		t.Fatalf("ServiceAddresses: %v", err)
	}
	if len(addrs) != 1 {
		t.Fatalf("ServiceAddresses = %v, want 1 fresh instance", addrs)
	}
}
