package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("DISPENSARY_TEST_MODE", "1")
		if os.Getenv("FLOW_SHARED_SECRET") == "" {
			_ = os.Setenv("FLOW_SHARED_SECRET", "test-secret")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
