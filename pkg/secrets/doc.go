/*
Package secrets implements the credential store for the deployment.

Two application-scoped secrets exist: the redis admin password and the
sentinel password. GetOrCreate generates a value on first request inside a
single storage transaction, so units racing to create the same key converge
on one winner. Values are AES-256-GCM encrypted before they reach the shared
store and are never rotated automatically.
*/
package secrets
