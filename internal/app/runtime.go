package app

import (
	"os"
	"sync"
)

const testModeEnv = "ACCOUNTS_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode reports whether ACCOUNTS_TEST_MODE=1. Binaries return before touching
// PostgreSQL or Redis when it is set.
func InTestMode() bool {
	return testMode()
}
