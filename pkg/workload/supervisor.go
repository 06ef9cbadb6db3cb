package workload

import "os"

// Service names inside the workload containers.
const (
	RedisService    = "redis"
	SentinelService = "sentinel"
)

// Supervisor drives one workload container's process supervisor. The
// reconciler owns two of these, one per container. Tests substitute fakes.
type Supervisor interface {
	// Ready reports whether the supervisor can be reached; until it can,
	// the pass is deferred in the waiting-for-container state.
	Ready() error

	// WriteFile places a file inside the container, creating directories.
	WriteFile(path string, data []byte, mode os.FileMode) error

	// Restart restarts the named services and waits for the change to
	// complete.
	Restart(services ...string) error

	// Running reports whether the named service is currently active.
	Running(service string) (bool, error)
}
