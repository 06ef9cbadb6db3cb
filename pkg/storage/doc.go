/*
Package storage provides the application-scoped shared state store.

The Store interface is implemented by a BoltDB database on the attached
storage volume. Three buckets back the three concerns that outlive a single
reconciliation pass: secrets (encrypted above this layer), unit state such
as applied-configuration digests, and the relation databag published to
consumers.

GetOrPutSecret performs its read-modify-write inside one bolt transaction,
so units racing to create the same secret converge on a single stored value.
*/
package storage
