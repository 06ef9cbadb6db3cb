package reconciler

import "github.com/cuemby/redkeeper/pkg/types"

// Outcome classifies one reconciliation pass.
type Outcome string

const (
	// OutcomeApplied means the pass completed and the unit converged.
	OutcomeApplied Outcome = "applied"

	// OutcomeDeferred means a collaborator is not ready yet; the pass did
	// nothing and the next event retries from scratch.
	OutcomeDeferred Outcome = "deferred"

	// OutcomeFailed means the pass hit an error that needs operator
	// attention or a later retry.
	OutcomeFailed Outcome = "failed"
)

// Result is the outcome of one reconciliation pass, surfaced to the daemon
// for status reporting.
type Result struct {
	Outcome Outcome
	Status  types.UnitState

	// Reason is a short human-readable explanation for deferred and failed
	// passes.
	Reason string
	Err    error

	// State is the discovered cluster state, when discovery ran.
	State *types.ClusterState
}

func applied(status types.UnitState, state *types.ClusterState) Result {
	return Result{Outcome: OutcomeApplied, Status: status, State: state}
}

func deferred(status types.UnitState, reason string) Result {
	return Result{Outcome: OutcomeDeferred, Status: status, Reason: reason}
}

func failed(status types.UnitState, reason string, err error) Result {
	return Result{Outcome: OutcomeFailed, Status: status, Reason: reason, Err: err}
}
