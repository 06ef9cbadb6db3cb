/*
Package reconciler contains the reconciliation engine: one pass per
lifecycle event, each a full re-derivation of this unit's desired
configuration from the peer data, stored credentials and certificate
material.

A pass is idempotent. Configuration is written and services restarted only
when the rendered output's digest differs from the last successfully
applied one, so replaying any event against a converged unit does nothing.
*/
package reconciler
