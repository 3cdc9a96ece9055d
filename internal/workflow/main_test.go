package workflow

import (
	"testing"

	"go.uber.org/goleak"
)

// The runtime owns no goroutines of its own; executions run entirely on the
// caller's goroutine. Verify no test leaks one anyway.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
