// Package discovery is ops visibility, not RPC lookup: every SPEC_FULL.md
// service talks to its peers only through the domain event bus, never by
// dialing another service's address directly. Registry exists so each
// long-running service (cmd/inventory, cmd/order, cmd/analytics,
// cmd/payments) self-registers with Consul and keeps a TTL health check
// alive. Discover stays on the interface for parity with the teacher's
// registry but has no caller in this repo.
package discovery

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Registry is implemented by consul.Registry (production) and
// inmem.Registry (tests / local dev without a Consul agent).
type Registry interface {
	Register(ctx context.Context, instanceID, serviceName, hostPort string) error
	Deregister(ctx context.Context, instanceID, serviceName string) error
	Discover(ctx context.Context, serviceName string) ([]string, error)
	HealthCheck(instanceID, serviceName string) error
}

// GenerateInstanceID builds a unique registration id for a service
// instance, e.g. "inventory-4821093756".
func GenerateInstanceID(serviceName string) string {
	return fmt.Sprintf("%s-%d", serviceName, rand.New(rand.NewSource(time.Now().UnixNano())).Int())
}
