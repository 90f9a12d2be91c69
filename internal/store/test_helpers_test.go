package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Alltagsbruecke/SignUp-APP/internal/testutil"
)

// createTestStore opens a fresh store in a temp directory with a
// deterministic clock.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clients.db")
	return openTestStore(t, path, opts...)
}

// openTestStore opens (or reopens) the store at path.
func openTestStore(t *testing.T, path string, opts ...Option) *Store {
	t.Helper()
	clock := testutil.NewStepClock(testutil.DefaultStart, time.Minute)
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
