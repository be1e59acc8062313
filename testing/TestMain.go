package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// ensureTestMode flips the process into test mode and supplies the settings
// config loading insists on, so packages can build an app.Config without a real
// environment.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ACCOUNTS_TEST_MODE", "1")
		if os.Getenv("SESSION_SECRET") == "" {
			_ = os.Setenv("SESSION_SECRET", "test-secret-test-secret-test-secret!")
		}
		if os.Getenv("ADDRESS_LOOKUP_URL") == "" {
			_ = os.Setenv("ADDRESS_LOOKUP_URL", "http://127.0.0.1:0")
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
