package server

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain fails the package if a test leaves a handler or connection
// goroutine behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
