// Package testutil holds fixtures shared by the attendance-monitor tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds waits on asynchronous pipeline work in tests.
const DefaultTimeout = 5 * time.Second

// WaitFor blocks until ch delivers or closes, failing the test after timeout.
func WaitFor[T any](t *testing.T, ch <-chan T, timeout time.Duration, msg string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		require.FailNow(t, msg)
	}
	var zero T
	return zero
}
