/*
Package workload drives the workload containers through Pebble.

Each container (redis, sentinel) runs its own Pebble; the Supervisor
interface covers the three operations the reconciler needs: a readiness
probe, placing configuration files, and restarting services. Restarts wait
for the Pebble change to complete so a failed restart surfaces in the same
pass rather than on a later health probe.
*/
package workload
