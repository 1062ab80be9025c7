// Package testing is imported for its side effects by test packages: it
// switches the binaries into test mode and pins the local zone to UTC so
// fiscal year boundaries do not depend on the machine running the tests.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
	"time"
)

var once sync.Once

func setup() {
	once.Do(func() {
		_ = os.Setenv("LEDGER_TEST_MODE", "1")
		_ = os.Unsetenv("LEDGER_SETTINGS_FILE")
		time.Local = time.UTC
	})
}

func init() {
	setup()
}

// TestMain runs m after the shared setup.
func TestMain(m *stdtesting.M) {
	setup()
	os.Exit(m.Run())
}
