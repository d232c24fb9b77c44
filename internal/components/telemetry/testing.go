package telemetry

import (
	"context"
	"os"
	"sync"
	"testing"

	"whatson/internal/components/configutil"
)

var setupTestEnvironments sync.Map

// SetupForTesting enables debug logging and, when a telemetry.json5 can be
// found above the working directory, exports test traces to it. It is safe
// to call from every test in a package.
func SetupForTesting(t testing.TB, serviceName string) func() {
	if _, setupAlready := setupTestEnvironments.LoadOrStore(serviceName, true); setupAlready {
		return func() {}
	}
	InitSlog(true)

	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if os.IsNotExist(err) {
		return func() {}
	}
	if err != nil {
		t.Fatal(err)
	}
	tel, err := Setup(context.Background(), serviceName, config)
	if err != nil {
		t.Fatal(err)
	}
	return func() {
		err := tel.Shutdown(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}
}
