package ports_test

import (
	"testing"

	"github.com/crestline/webstack/internal/adapters/memory"
	"github.com/crestline/webstack/internal/adapters/mockauth"
	mocks "github.com/crestline/webstack/internal/mocks/auth"
	mockports "github.com/crestline/webstack/internal/mocks/ports"
	"github.com/crestline/webstack/internal/ports"
)

// This test only verifies that our doubles and adapters conform to the ports
// at compile time.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.Driver = (*mocks.StubDriver)(nil)
	var _ ports.Driver = (*mockauth.Driver)(nil)
	var _ ports.SessionStore = (*mocks.MemorySessionStore)(nil)
	var _ ports.SessionStore = (*mockports.MockSessionStore)(nil)
	var _ ports.SessionStore = (*memory.SessionStore)(nil)
}
