package types

import "sort"

// Role is the replication role a unit's redis-server currently holds.
type Role string

const (
	RolePrimary Role = "primary"
	RoleReplica Role = "replica"
	RoleUnknown Role = "unknown"
)

// Well-known workload ports.
const (
	RedisPort    = 6379
	SentinelPort = 26379
)

// Unit is one running redis-server + sentinel pair. Units are created and
// destroyed by the platform; redkeeper only observes them.
type Unit struct {
	Ordinal int
	Address string
	Role    Role
	Ready   bool
}

// ClusterState is the discovered view of the whole deployment. It is derived
// on every reconciliation pass and never persisted across restarts.
type ClusterState struct {
	Units []*Unit

	// PrimaryOrdinal is the ordinal of the unit currently elected primary,
	// or -1 while no primary is known (bootstrap or mid-failover).
	PrimaryOrdinal int
}

// PrimaryUnit returns the current primary, or nil when none is known.
func (cs *ClusterState) PrimaryUnit() *Unit {
	if cs.PrimaryOrdinal < 0 {
		return nil
	}
	return cs.Unit(cs.PrimaryOrdinal)
}

// Unit returns the unit with the given ordinal, or nil.
func (cs *ClusterState) Unit(ordinal int) *Unit {
	for _, u := range cs.Units {
		if u.Ordinal == ordinal {
			return u
		}
	}
	return nil
}

// Addresses returns all unit addresses ordered by ordinal.
func (cs *ClusterState) Addresses() []string {
	units := make([]*Unit, len(cs.Units))
	copy(units, cs.Units)
	sort.Slice(units, func(i, j int) bool { return units[i].Ordinal < units[j].Ordinal })

	addrs := make([]string, 0, len(units))
	for _, u := range units {
		addrs = append(addrs, u.Address)
	}
	return addrs
}

// Credentials holds the two application-scoped passwords. They are generated
// once on first reconciliation and never rotated automatically.
type Credentials struct {
	AdminPassword    string
	SentinelPassword string
}

// TLSBundle is the user-supplied certificate material. The bundle is valid
// only as a whole: all three parts present, or none.
type TLSBundle struct {
	CACert []byte
	Cert   []byte
	Key    []byte

	// Paths of the files inside the workload container, referenced by the
	// rendered configuration.
	CACertPath string
	CertPath   string
	KeyPath    string
}

// Complete reports whether all three parts of the bundle are present.
func (b *TLSBundle) Complete() bool {
	return b != nil && len(b.CACert) > 0 && len(b.Cert) > 0 && len(b.Key) > 0
}

// UnitState is the reconciliation state machine position for this unit.
type UnitState string

const (
	StateWaitingForContainer UnitState = "waiting-for-container"
	StateWaitingForPeers     UnitState = "waiting-for-peers"
	StateConfiguringPrimary  UnitState = "configuring-primary"
	StateConfiguringReplica  UnitState = "configuring-replica"
	StateReady               UnitState = "ready"
	StateDegraded            UnitState = "degraded"
)
