package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/redkeeper/pkg/config"
	"github.com/cuemby/redkeeper/pkg/types"
)

// Sentinel timing directives. Sentinel declares the master down after five
// seconds of silence and gives a failover thirty seconds to complete.
const (
	downAfterMillis   = 5000
	failoverTimeoutMS = 30000
)

// Input is everything the renderer needs. Render is a pure function of this
// struct: identical inputs yield byte-identical output.
type Input struct {
	// MasterName is the sentinel master-group name (the application name).
	MasterName string

	// UnitAddress is this unit's announced address.
	UnitAddress string

	// Role decides the replication directives. PrimaryAddress must be set
	// and refers to this unit's own address when it is the primary.
	Role           types.Role
	PrimaryAddress string

	// PeerAddresses is the full peer list ordered by ordinal, including
	// this unit.
	PeerAddresses []string

	Credentials types.Credentials

	// TLS directives are emitted only when the bundle is complete and
	// EnableTLS is set.
	TLS       *types.TLSBundle
	EnableTLS bool

	// Tuning options passed through verbatim, already ordered.
	Tuning [][2]string

	WorkingDir string
	LogFile    string
}

func (in *Input) tlsActive() bool {
	return in.EnableTLS && in.TLS.Complete()
}

func (in *Input) workingDir() string {
	if in.WorkingDir == "" {
		return config.DefaultWorkingDir
	}
	return in.WorkingDir
}

func (in *Input) logFile() string {
	if in.LogFile == "" {
		return config.DefaultLogFile
	}
	return in.LogFile
}

// RenderedConfig is the pair of configuration files for one unit.
type RenderedConfig struct {
	Redis    []byte
	Sentinel []byte
}

// Render produces the redis-server and sentinel configuration for one unit.
func Render(in Input) RenderedConfig {
	return RenderedConfig{
		Redis:    renderRedis(in),
		Sentinel: renderSentinel(in),
	}
}

// Quorum is the number of sentinels that must agree before a failover:
// floor(N/2)+1 for N peers, with a minimum of 1 for single-unit deployments.
func Quorum(n int) int {
	if n <= 1 {
		return 1
	}
	return n/2 + 1
}

func renderRedis(in Input) []byte {
	f := newConfFile()

	f.add("bind", "0.0.0.0")
	f.add("requirepass", in.Credentials.AdminPassword)
	f.add("masterauth", in.Credentials.AdminPassword)
	f.add("replica-announce-ip", in.UnitAddress)
	f.add("logfile", in.logFile())
	f.add("appendonly", "yes")
	f.add("dir", in.workingDir())

	for _, d := range in.Tuning {
		f.add(d[0], d[1])
	}

	if in.tlsActive() {
		f.add("port", "0")
		f.add("tls-port", strconv.Itoa(types.RedisPort))
		f.add("tls-auth-clients", "optional")
		f.add("tls-cert-file", in.TLS.CertPath)
		f.add("tls-key-file", in.TLS.KeyPath)
		f.add("tls-ca-cert-file", in.TLS.CACertPath)
	}

	if in.Role == types.RoleReplica {
		f.add("replicaof", fmt.Sprintf("%s %d", in.PrimaryAddress, types.RedisPort))
		if in.tlsActive() {
			f.add("tls-replication", "yes")
		}
	}

	return f.bytes()
}

func renderSentinel(in Input) []byte {
	f := newConfFile()
	name := in.MasterName
	quorum := Quorum(len(in.PeerAddresses))

	f.add("port", strconv.Itoa(types.SentinelPort))
	f.add("dir", "/tmp")
	f.add("requirepass", in.Credentials.SentinelPassword)
	f.add("sentinel", fmt.Sprintf("monitor %s %s %d %d", name, in.PrimaryAddress, types.RedisPort, quorum))
	f.add("sentinel", fmt.Sprintf("auth-pass %s %s", name, in.Credentials.AdminPassword))
	f.add("sentinel", fmt.Sprintf("down-after-milliseconds %s %d", name, downAfterMillis))
	f.add("sentinel", fmt.Sprintf("failover-timeout %s %d", name, failoverTimeoutMS))
	f.add("sentinel", "resolve-hostnames yes")
	f.add("sentinel", "announce-hostnames yes")
	f.add("sentinel", fmt.Sprintf("announce-ip %s", in.UnitAddress))

	// Seed sentinel with the full peer view so a restarted process does not
	// depend on gossip to find the others.
	for _, addr := range in.PeerAddresses {
		if addr != in.PrimaryAddress {
			f.add("sentinel", fmt.Sprintf("known-replica %s %s %d", name, addr, types.RedisPort))
		}
		if addr != in.UnitAddress {
			f.add("sentinel", fmt.Sprintf("known-sentinel %s %s %d", name, addr, types.SentinelPort))
		}
	}

	return f.bytes()
}

// confFile accumulates line-oriented "directive value" pairs.
type confFile struct {
	lines []string
}

func newConfFile() *confFile {
	return &confFile{}
}

func (f *confFile) add(directive, value string) {
	f.lines = append(f.lines, directive+" "+value)
}

func (f *confFile) bytes() []byte {
	return []byte(strings.Join(f.lines, "\n") + "\n")
}
