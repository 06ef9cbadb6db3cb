package topology

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/redkeeper/pkg/admin"
	"github.com/cuemby/redkeeper/pkg/log"
	"github.com/cuemby/redkeeper/pkg/types"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel})
}

type fakeSentinel struct {
	info *admin.MasterInfo
	err  error
}

func (f *fakeSentinel) Ping(ctx context.Context) error { return f.err }

func (f *fakeSentinel) MasterInfo(ctx context.Context) (*admin.MasterInfo, error) {
	return f.info, f.err
}

func (f *fakeSentinel) SetQuorum(ctx context.Context, quorum int) error { return f.err }
func (f *fakeSentinel) Reset(ctx context.Context) error                 { return f.err }
func (f *fakeSentinel) Failover(ctx context.Context) error              { return f.err }
func (f *fakeSentinel) Close() error                                    { return nil }

type fakeRedis struct{}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }
func (f *fakeRedis) Role(ctx context.Context) (types.Role, string, error) {
	return types.RoleUnknown, "", nil
}
func (f *fakeRedis) ServerVersion(ctx context.Context) (string, error)         { return "7.0.4", nil }
func (f *fakeRedis) ReplicaOf(ctx context.Context, host string, port int) error { return nil }
func (f *fakeRedis) ReplicaOfNoOne(ctx context.Context) error                   { return nil }
func (f *fakeRedis) Close() error                                               { return nil }

type fakeDialer struct {
	sentinels map[string]*fakeSentinel
}

func (d *fakeDialer) Redis(addr string) admin.RedisConn { return &fakeRedis{} }

func (d *fakeDialer) Sentinel(addr string) admin.SentinelConn {
	if s, ok := d.sentinels[addr]; ok {
		return s
	}
	return &fakeSentinel{err: fmt.Errorf("dial %s: %w", addr, types.ErrPeerUnreachable)}
}

func writePeers(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "peers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func masterAt(addr string) *fakeSentinel {
	return &fakeSentinel{info: &admin.MasterInfo{IP: addr, Port: "6379", Flags: []string{"master"}}}
}

func TestLoadMembership(t *testing.T) {
	t.Run("missing file is empty membership", func(t *testing.T) {
		m, err := LoadMembership(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Empty(t, m.Units)
		assert.Equal(t, -1, m.Leader)
	})

	t.Run("units sorted by ordinal", func(t *testing.T) {
		m, err := LoadMembership(writePeers(t, `
leader: 0
units:
  - ordinal: 2
    address: redis-2
    ready: true
  - ordinal: 0
    address: redis-0
    ready: true
`))
		require.NoError(t, err)
		require.Len(t, m.Units, 2)
		assert.Equal(t, 0, m.Units[0].Ordinal)
		assert.Equal(t, 2, m.Units[1].Ordinal)
		assert.Equal(t, 0, m.Leader)
	})

	t.Run("duplicate ordinal rejected", func(t *testing.T) {
		_, err := LoadMembership(writePeers(t, `
units:
  - ordinal: 0
    address: redis-0
  - ordinal: 0
    address: redis-0b
`))
		assert.Error(t, err)
	})

	t.Run("duplicate address rejected", func(t *testing.T) {
		_, err := LoadMembership(writePeers(t, `
units:
  - ordinal: 0
    address: redis-0
  - ordinal: 1
    address: redis-0
`))
		assert.Error(t, err)
	})

	t.Run("missing address rejected", func(t *testing.T) {
		_, err := LoadMembership(writePeers(t, `
units:
  - ordinal: 1
    ready: true
`))
		assert.Error(t, err)
	})
}

func TestDiscoverSingleUnitBootstrap(t *testing.T) {
	// Fresh single-unit deployment: no peers file, sentinel not up yet. The
	// unit itself is the lowest-ordinal ready unit, so it becomes primary.
	tracker := NewTracker(
		&fakeDialer{},
		filepath.Join(t.TempDir(), "absent.yaml"),
		0, "redis-0",
	)

	snap, err := tracker.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.State.Units, 1)
	assert.Equal(t, 0, snap.State.PrimaryOrdinal)
	assert.Equal(t, types.RolePrimary, snap.State.Units[0].Role)
	assert.Equal(t, -1, snap.LeaderOrdinal)
	assert.Equal(t, 0, snap.SentinelsReachable)
}

func TestDiscoverSentinelOpinionWins(t *testing.T) {
	peers := writePeers(t, `
leader: 0
units:
  - ordinal: 0
    address: redis-0
    ready: true
  - ordinal: 1
    address: redis-1
    ready: true
  - ordinal: 2
    address: redis-2
    ready: true
`)
	// All sentinels track redis-1, not the lowest ordinal.
	dial := &fakeDialer{sentinels: map[string]*fakeSentinel{
		"redis-0": masterAt("redis-1"),
		"redis-1": masterAt("redis-1"),
		"redis-2": masterAt("redis-1"),
	}}

	snap, err := NewTracker(dial, peers, 2, "redis-2").Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, snap.State.PrimaryOrdinal)
	assert.Equal(t, types.RoleReplica, snap.State.Unit(0).Role)
	assert.Equal(t, types.RolePrimary, snap.State.Unit(1).Role)
	assert.Equal(t, types.RoleReplica, snap.State.Unit(2).Role)
	assert.Equal(t, 3, snap.SentinelsReachable)
	assert.True(t, snap.Leader(0))
	assert.False(t, snap.Leader(2))
}

func TestDiscoverUnreachablePeerMarkedUnknown(t *testing.T) {
	peers := writePeers(t, `
units:
  - ordinal: 0
    address: redis-0
    ready: true
  - ordinal: 1
    address: redis-1
    ready: true
`)
	dial := &fakeDialer{sentinels: map[string]*fakeSentinel{
		"redis-1": masterAt("redis-1"),
	}}

	snap, err := NewTracker(dial, peers, 1, "redis-1").Discover(context.Background())
	require.NoError(t, err)

	// redis-0's sentinel is down: unknown role, but discovery completed.
	assert.Equal(t, types.RoleUnknown, snap.State.Unit(0).Role)
	assert.Equal(t, 1, snap.State.PrimaryOrdinal)
	assert.Equal(t, 1, snap.SentinelsReachable)
}

func TestDiscoverPrimaryRemovedPromotesByTieBreak(t *testing.T) {
	// The old primary redis-0 departed: it is gone from membership but a
	// stale sentinel still names it. The opinion must be ignored and the
	// lowest-ordinal ready survivor promoted.
	peers := writePeers(t, `
leader: 1
units:
  - ordinal: 1
    address: redis-1
    ready: true
  - ordinal: 2
    address: redis-2
    ready: true
`)
	dial := &fakeDialer{sentinels: map[string]*fakeSentinel{
		"redis-1": masterAt("redis-0"),
		"redis-2": masterAt("redis-0"),
	}}

	snap, err := NewTracker(dial, peers, 1, "redis-1").Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, snap.State.PrimaryOrdinal)
	assert.Equal(t, types.RolePrimary, snap.State.Unit(1).Role)
	assert.Equal(t, types.RoleReplica, snap.State.Unit(2).Role)
}

func TestDiscoverDownPrimaryIgnored(t *testing.T) {
	peers := writePeers(t, `
units:
  - ordinal: 0
    address: redis-0
    ready: true
  - ordinal: 1
    address: redis-1
    ready: true
`)
	// Sentinel still lists redis-1 as master but flags it down.
	downInfo := &fakeSentinel{info: &admin.MasterInfo{
		IP: "redis-1", Port: "6379", Flags: []string{"master", "s_down"},
	}}
	dial := &fakeDialer{sentinels: map[string]*fakeSentinel{
		"redis-0": downInfo,
		"redis-1": downInfo,
	}}

	snap, err := NewTracker(dial, peers, 0, "redis-0").Discover(context.Background())
	require.NoError(t, err)

	// Tie-break applies: lowest ordinal ready unit.
	assert.Equal(t, 0, snap.State.PrimaryOrdinal)
}

func TestDiscoverAtMostOnePrimary(t *testing.T) {
	peers := writePeers(t, `
units:
  - ordinal: 0
    address: redis-0
    ready: true
  - ordinal: 1
    address: redis-1
    ready: true
  - ordinal: 2
    address: redis-2
    ready: true
`)
	// Sentinels disagree mid-failover.
	dial := &fakeDialer{sentinels: map[string]*fakeSentinel{
		"redis-0": masterAt("redis-0"),
		"redis-1": masterAt("redis-1"),
		"redis-2": masterAt("redis-2"),
	}}

	snap, err := NewTracker(dial, peers, 0, "redis-0").Discover(context.Background())
	require.NoError(t, err)

	primaries := 0
	for _, u := range snap.State.Units {
		if u.Role == types.RolePrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
}
