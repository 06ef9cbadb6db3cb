/*
Package render produces the workload configuration files.

Render is a pure function from Input to the redis-server and sentinel
configuration: no hidden reads, no clock, no randomness. That makes the
output reproducible, so the reconciler can compare digests of rendered
configuration to decide whether a write and restart are needed at all.

A primary gets no replicaof directive; a replica points at the current
primary and authenticates with the admin credential. The sentinel
configuration always encodes the full peer list and the quorum,
floor(N/2)+1 with a minimum of 1.
*/
package render
