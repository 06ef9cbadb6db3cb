/*
Package security holds the cryptographic helpers of redkeeper.

SecretsManager encrypts secrets with AES-256-GCM before they reach the
shared store; the key is derived from the application identity so all units
of one application share it.

LoadBundle validates the user-supplied TLS material as an all-or-nothing
bundle: the key must match the certificate and the CA must verify it.
*/
package security
