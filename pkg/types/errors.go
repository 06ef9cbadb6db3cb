package types

import "errors"

// Sentinel errors shared across packages. Callers match them with errors.Is;
// wrapped messages carry the detail.
var (
	// ErrNotConfigured marks an expected absence, such as no TLS resources
	// attached. It is not a failure.
	ErrNotConfigured = errors.New("not configured")

	// ErrInvalidTLSConfig marks a partial or inconsistent certificate bundle.
	ErrInvalidTLSConfig = errors.New("invalid TLS configuration")

	// ErrPeerUnreachable marks a peer that could not be queried. The unit is
	// reported with an unknown role and the pass continues.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrCommandTimeout marks an administrative command that exceeded its
	// deadline.
	ErrCommandTimeout = errors.New("admin command timed out")

	// ErrCommandFailed marks an administrative command rejected or failed by
	// the workload.
	ErrCommandFailed = errors.New("admin command failed")

	// ErrSecretStoreUnavailable marks a failure to reach the shared secret
	// store. The whole pass is deferred.
	ErrSecretStoreUnavailable = errors.New("secret store unavailable")

	// ErrNotYetAvailable is returned by actions invoked before the first
	// successful reconciliation.
	ErrNotYetAvailable = errors.New("not yet available")
)
