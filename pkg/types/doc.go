/*
Package types defines the shared data model for redkeeper.

It holds the discovered cluster topology (Unit, ClusterState), the
application-scoped Credentials, the optional TLSBundle, the reconciliation
state machine positions, and the sentinel errors used across packages.

All types here are plain data: they carry no behavior beyond small read-only
helpers, and no other package in the module is imported from here.
*/
package types
