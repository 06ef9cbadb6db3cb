/*
Package admin speaks the workload's administrative protocol.

Both redis-server and sentinel answer RESP commands over authenticated TCP
connections; this package wraps go-redis behind small RedisConn and
SentinelConn interfaces so the reconciler and topology tracker can be tested
against fakes.

Errors are classified into the shared taxonomy: probe failures become
ErrPeerUnreachable (the pass continues without that peer), command failures
become ErrCommandFailed, and anything that exceeds its deadline becomes
ErrCommandTimeout.
*/
package admin
