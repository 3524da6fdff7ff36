package discovery

import (
	"strings"
	"testing"
)

func TestGenerateInstanceIDIsPrefixedAndUnique(t *testing.T) {
	a := GenerateInstanceID("inventory")
	b := GenerateInstanceID("inventory")

	if !strings.HasPrefix(a, "inventory-") || !strings.HasPrefix(b, "inventory-") {
		t.Fatalf("GenerateInstanceID outputs missing service prefix: %q, %q", a, b)
	}
	if a == b {
		t.Fatalf("GenerateInstanceID produced identical ids: %q", a)
	}
}
