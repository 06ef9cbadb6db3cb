/*
Package config loads the two configuration surfaces of redkeeper.

Options is the user-facing option bag from the platform config store:
enable-tls plus the tuning options passed through verbatim to the rendered
redis configuration.

Operator is the static per-unit configuration: unit identity, data
locations, Pebble sockets for the two workload containers, and the attached
file resources.

Both are YAML; unknown option keys are rejected.
*/
package config
