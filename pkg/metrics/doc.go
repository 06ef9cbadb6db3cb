/*
Package metrics exposes Prometheus metrics and health endpoints for the
operator daemon.

Counters and gauges are package-level variables updated by the reconcile
loop; Handler serves them on the operator's metrics listener alongside
the /health, /ready and /alive endpoints.
*/
package metrics
