package topology

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cuemby/redkeeper/pkg/admin"
	"github.com/cuemby/redkeeper/pkg/log"
	"github.com/cuemby/redkeeper/pkg/types"
)

// Snapshot is one discovery result: the derived cluster state plus the
// platform leadership view that came with the peer data.
type Snapshot struct {
	State *types.ClusterState

	// LeaderOrdinal is the platform-elected leader unit, or -1.
	LeaderOrdinal int

	// SentinelsReachable counts the peers whose sentinel answered. Used for
	// the majority gate before quorum updates.
	SentinelsReachable int
}

// Leader reports whether the given unit holds platform leadership.
func (s *Snapshot) Leader(ordinal int) bool {
	return s.LeaderOrdinal >= 0 && s.LeaderOrdinal == ordinal
}

// Tracker derives the current cluster topology. Sentinel is the authority on
// who the primary is; when no sentinel has an opinion yet the lowest-ordinal
// ready unit is used as the deterministic bootstrap choice.
type Tracker struct {
	dial        admin.Dialer
	peersFile   string
	selfOrdinal int
	selfAddress string
	log         zerolog.Logger
}

// NewTracker creates a tracker for this unit.
func NewTracker(dial admin.Dialer, peersFile string, selfOrdinal int, selfAddress string) *Tracker {
	return &Tracker{
		dial:        dial,
		peersFile:   peersFile,
		selfOrdinal: selfOrdinal,
		selfAddress: selfAddress,
		log:         log.WithComponent("topology"),
	}
}

// Discover queries every known peer's sentinel for its view of the current
// primary and assembles the cluster state. A peer that cannot be reached is
// reported with role unknown; it never aborts discovery. The returned state
// has at most one primary.
func (t *Tracker) Discover(ctx context.Context) (*Snapshot, error) {
	membership, err := LoadMembership(t.peersFile)
	if err != nil {
		return nil, err
	}
	membership.ensureSelf(t.selfOrdinal, t.selfAddress)

	units := make([]*types.Unit, 0, len(membership.Units))
	reachable := make(map[int]bool, len(membership.Units))
	primaryAddr := ""

	for _, member := range membership.Units {
		unit := &types.Unit{
			Ordinal: member.Ordinal,
			Address: member.Address,
			Role:    types.RoleUnknown,
			Ready:   member.Ready,
		}
		units = append(units, unit)

		info, err := t.masterInfo(ctx, member.Address)
		if err != nil {
			t.log.Warn().Err(err).
				Int("ordinal", member.Ordinal).
				Str("address", member.Address).
				Msg("Peer sentinel unreachable")
			continue
		}
		reachable[member.Ordinal] = true

		// The first healthy opinion that maps to a known member wins; at
		// convergence all sentinels agree anyway.
		if primaryAddr == "" && info != nil && !info.Down() && info.IP != "" {
			if addressKnown(membership, info.IP) {
				primaryAddr = info.IP
			} else {
				t.log.Debug().Str("address", info.IP).
					Msg("Sentinel tracks a primary outside current membership, ignoring")
			}
		}
	}

	if primaryAddr == "" {
		primaryAddr = bootstrapPrimary(membership)
		if primaryAddr != "" {
			t.log.Info().Str("address", primaryAddr).
				Msg("No sentinel opinion, using lowest-ordinal ready unit as primary")
		}
	}

	state := &types.ClusterState{Units: units, PrimaryOrdinal: -1}
	for _, u := range units {
		if u.Address == primaryAddr && u.Ready {
			u.Role = types.RolePrimary
			state.PrimaryOrdinal = u.Ordinal
		} else if reachable[u.Ordinal] {
			u.Role = types.RoleReplica
		}
	}

	return &Snapshot{
		State:              state,
		LeaderOrdinal:      membership.Leader,
		SentinelsReachable: len(reachable),
	}, nil
}

// MasterInfo queries one peer's sentinel directly, used by the reconciler
// for failover-progress checks.
func (t *Tracker) MasterInfo(ctx context.Context, addr string) (*admin.MasterInfo, error) {
	return t.masterInfo(ctx, addr)
}

func (t *Tracker) masterInfo(ctx context.Context, addr string) (*admin.MasterInfo, error) {
	conn := t.dial.Sentinel(addr)
	defer conn.Close()
	return conn.MasterInfo(ctx)
}

func addressKnown(m *Membership, addr string) bool {
	for _, u := range m.Units {
		if u.Address == addr {
			return true
		}
	}
	return false
}

// bootstrapPrimary is the deterministic tie-break: the lowest-ordinal ready
// unit. Units are already sorted by ordinal.
func bootstrapPrimary(m *Membership) string {
	for _, u := range m.Units {
		if u.Ready {
			return u.Address
		}
	}
	return ""
}
