package storage

// Store is the application-scoped state storage shared by all units. It
// backs the secret store, the applied-configuration digests, and the
// relation databag.
type Store interface {
	// Secrets. Values are opaque bytes; encryption happens above this layer.
	PutSecret(key string, value []byte) error
	GetSecret(key string) ([]byte, error)

	// GetOrPutSecret returns the stored value for key, generating and
	// storing one inside the same transaction when absent. The boolean
	// reports whether a new value was created. Concurrent creators converge
	// on a single stored value.
	GetOrPutSecret(key string, gen func() ([]byte, error)) ([]byte, bool, error)

	// Unit state: applied digests, last role, status.
	PutState(key, value string) error
	GetState(key string) (string, error)

	// Relation databag entries published to consumer applications.
	PutDatabag(key string, value []byte) error
	GetDatabag(key string) ([]byte, error)

	Close() error
}
