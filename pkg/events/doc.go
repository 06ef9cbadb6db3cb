/*
Package events defines the lifecycle event kinds and the broker that feeds
them to the reconcile loop.

The platform shim publishes one Event per delivered hook; the daemon's
single consumer goroutine processes events strictly in order, which gives
the reconciler its one-pass-at-a-time execution model.
*/
package events
