// Package workspace threads the orchestrator's ambient dependencies —
// root path, clock, id generator — through every component constructor so
// tests can reproduce ids and timestamps instead of relying on globals.
package workspace

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock returns the current time. Production code uses RealClock; tests
// substitute a fixed or stepped clock.
type Clock interface {
	Now() time.Time
}

// RealClock wraps time.Now.
type RealClock struct{}

// Now returns the current wall-clock time.
func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant, useful for deterministic
// session-id and timestamp assertions in tests.
type FixedClock struct{ At time.Time }

// Now returns the fixed instant.
func (f FixedClock) Now() time.Time { return f.At }

// IDGen produces identifiers for leases and other non-deterministic ids.
// Session ids are derived from the clock instead (see archive package) so
// that only the lease token needs true randomness.
type IDGen interface {
	NewToken() string
}

// RealIDGen wraps uuid.New.
type RealIDGen struct{}

// NewToken returns a random UUID string.
func (RealIDGen) NewToken() string { return uuid.NewString() }

// SequentialIDGen returns deterministic, incrementing tokens for tests.
type SequentialIDGen struct{ next int }

// NewToken returns the next sequential token.
func (s *SequentialIDGen) NewToken() string {
	s.next++
	return "token-" + time.Duration(s.next).String()
}

// Workspace is the root handle passed to every kernel component. It never
// mutates global state (no process.cwd() reliance anywhere downstream).
type Workspace struct {
	Root   string
	Clock  Clock
	IDs    IDGen
	Logger *zap.Logger
}

// New creates a Workspace rooted at root with production defaults.
func New(root string, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		Root:   root,
		Clock:  RealClock{},
		IDs:    RealIDGen{},
		Logger: logger,
	}
}

// Path joins path elements onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.Root}, elem...)...)
}

// AutoDir returns the path to the hidden "auto/" workspace directory that
// holds queue state, archives, and recovery memory.
func (w *Workspace) AutoDir() string {
	return w.Path("auto")
}

// EnsureDir creates dir (and parents) if it does not already exist.
func (w *Workspace) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Now returns the workspace clock's current time.
func (w *Workspace) Now() time.Time {
	return w.Clock.Now()
}
