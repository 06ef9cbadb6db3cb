package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/redkeeper/pkg/types"
)

func testCreds() types.Credentials {
	return types.Credentials{
		AdminPassword:    "adminpw",
		SentinelPassword: "sentinelpw",
	}
}

func completeBundle() *types.TLSBundle {
	return &types.TLSBundle{
		CACert:     []byte("ca"),
		Cert:       []byte("cert"),
		Key:        []byte("key"),
		CACertPath: "/var/lib/redis/certs/ca.crt",
		CertPath:   "/var/lib/redis/certs/redis.crt",
		KeyPath:    "/var/lib/redis/certs/redis.key",
	}
}

func TestQuorum(t *testing.T) {
	tests := []struct {
		peers int
		want  int
	}{
		{peers: 0, want: 1},
		{peers: 1, want: 1},
		{peers: 2, want: 2},
		{peers: 3, want: 2},
		{peers: 4, want: 3},
		{peers: 5, want: 3},
		{peers: 7, want: 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quorum(tt.peers), "Quorum(%d)", tt.peers)
	}
}

func TestRenderDeterministic(t *testing.T) {
	in := Input{
		MasterName:     "redis",
		UnitAddress:    "redis-1",
		Role:           types.RoleReplica,
		PrimaryAddress: "redis-0",
		PeerAddresses:  []string{"redis-0", "redis-1", "redis-2"},
		Credentials:    testCreds(),
		TLS:            completeBundle(),
		EnableTLS:      true,
		Tuning:         [][2]string{{"maxmemory", "256mb"}},
	}

	first := Render(in)
	second := Render(in)

	assert.Equal(t, first.Redis, second.Redis, "redis config must be byte-identical")
	assert.Equal(t, first.Sentinel, second.Sentinel, "sentinel config must be byte-identical")
	assert.Equal(t, Digest(first.Redis), Digest(second.Redis))
}

func TestRenderPrimary(t *testing.T) {
	cfg := Render(Input{
		MasterName:     "redis",
		UnitAddress:    "redis-0",
		Role:           types.RolePrimary,
		PrimaryAddress: "redis-0",
		PeerAddresses:  []string{"redis-0"},
		Credentials:    testCreds(),
	})

	redis := string(cfg.Redis)
	assert.NotContains(t, redis, "replicaof", "primary must get no replica directive")
	assert.Contains(t, redis, "requirepass adminpw")
	assert.Contains(t, redis, "masterauth adminpw")
	assert.Contains(t, redis, "replica-announce-ip redis-0")
	assert.Contains(t, redis, "appendonly yes")
	assert.NotContains(t, redis, "tls-", "TLS directives need an enabled complete bundle")

	sentinel := string(cfg.Sentinel)
	assert.Contains(t, sentinel, "sentinel monitor redis redis-0 6379 1")
	assert.Contains(t, sentinel, "sentinel auth-pass redis adminpw")
	assert.Contains(t, sentinel, "requirepass sentinelpw")
	assert.NotContains(t, sentinel, "known-sentinel", "single unit has no peers to seed")
}

func TestRenderReplica(t *testing.T) {
	cfg := Render(Input{
		MasterName:     "redis",
		UnitAddress:    "redis-2",
		Role:           types.RoleReplica,
		PrimaryAddress: "redis-0",
		PeerAddresses:  []string{"redis-0", "redis-1", "redis-2"},
		Credentials:    testCreds(),
	})

	redis := string(cfg.Redis)
	assert.Contains(t, redis, "replicaof redis-0 6379")
	assert.NotContains(t, redis, "tls-replication")

	sentinel := string(cfg.Sentinel)
	assert.Contains(t, sentinel, "sentinel monitor redis redis-0 6379 2", "three peers give quorum 2")
	assert.Contains(t, sentinel, "sentinel known-replica redis redis-1 6379")
	assert.Contains(t, sentinel, "sentinel known-replica redis redis-2 6379")
	assert.NotContains(t, sentinel, "known-replica redis redis-0", "primary is not a replica")
	assert.Contains(t, sentinel, "sentinel known-sentinel redis redis-0 26379")
	assert.Contains(t, sentinel, "sentinel known-sentinel redis redis-1 26379")
	assert.NotContains(t, sentinel, "known-sentinel redis redis-2", "own sentinel is not seeded")
}

func TestRenderTLS(t *testing.T) {
	in := Input{
		MasterName:     "redis",
		UnitAddress:    "redis-1",
		Role:           types.RoleReplica,
		PrimaryAddress: "redis-0",
		PeerAddresses:  []string{"redis-0", "redis-1"},
		Credentials:    testCreds(),
		TLS:            completeBundle(),
		EnableTLS:      true,
	}

	redis := string(Render(in).Redis)
	assert.Contains(t, redis, "port 0")
	assert.Contains(t, redis, "tls-port 6379")
	assert.Contains(t, redis, "tls-cert-file /var/lib/redis/certs/redis.crt")
	assert.Contains(t, redis, "tls-key-file /var/lib/redis/certs/redis.key")
	assert.Contains(t, redis, "tls-ca-cert-file /var/lib/redis/certs/ca.crt")
	assert.Contains(t, redis, "tls-replication yes")

	t.Run("flag set but bundle absent", func(t *testing.T) {
		in := in
		in.TLS = nil
		redis := string(Render(in).Redis)
		assert.NotContains(t, redis, "tls-")
	})

	t.Run("bundle present but flag unset", func(t *testing.T) {
		in := in
		in.EnableTLS = false
		redis := string(Render(in).Redis)
		assert.NotContains(t, redis, "tls-")
	})
}

func TestRenderTuningPassThrough(t *testing.T) {
	cfg := Render(Input{
		MasterName:     "redis",
		UnitAddress:    "redis-0",
		Role:           types.RolePrimary,
		PrimaryAddress: "redis-0",
		PeerAddresses:  []string{"redis-0"},
		Credentials:    testCreds(),
		Tuning: [][2]string{
			{"maxmemory", "512mb"},
			{"maxmemory-policy", "allkeys-lru"},
		},
	})

	redis := string(cfg.Redis)
	assert.Contains(t, redis, "maxmemory 512mb")
	assert.Contains(t, redis, "maxmemory-policy allkeys-lru")
}

func TestRenderLineOriented(t *testing.T) {
	cfg := Render(Input{
		MasterName:     "redis",
		UnitAddress:    "redis-0",
		Role:           types.RolePrimary,
		PrimaryAddress: "redis-0",
		PeerAddresses:  []string{"redis-0"},
		Credentials:    testCreds(),
	})

	for _, raw := range [][]byte{cfg.Redis, cfg.Sentinel} {
		text := string(raw)
		require.True(t, strings.HasSuffix(text, "\n"))
		for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
			parts := strings.SplitN(line, " ", 2)
			require.Len(t, parts, 2, "every line is a directive-value pair: %q", line)
		}
	}
}
