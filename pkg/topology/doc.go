/*
Package topology derives the current cluster state.

The peer list comes from the platform-published peers file; which unit is
primary comes from asking each peer's sentinel. A peer that cannot be
reached is reported with an unknown role rather than failing discovery, and
when no sentinel has an opinion yet the lowest-ordinal ready unit is chosen
as the deterministic bootstrap primary.

Discovery is eventually consistent by design: it runs on every
reconciliation pass, so a stale answer is corrected on the next event.
*/
package topology
