package repo_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pkordes/ridepost/testutil"
)

// TestMain brings the test database schema up to date once per binary.
// Without TEST_DATABASE_URL every test in the package skips itself.
func TestMain(m *testing.M) {
	if dsn := os.Getenv(testutil.EnvDSN); dsn != "" {
		if err := testutil.Migrate(context.Background(), dsn); err != nil {
			log.Fatalf("TestMain: %v", err)
		}
	}
	os.Exit(m.Run())
}
