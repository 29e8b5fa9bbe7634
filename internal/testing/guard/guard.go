// Package guard switches the binaries into test mode when imported by a test,
// so calling main never dials Redis or the invoice source.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "INVOICE_INSIGHTS_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
