package admin

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cuemby/redkeeper/pkg/types"
)

// DefaultTimeout bounds every administrative command. A command that does
// not answer within this window fails the pass; the next event retries.
const DefaultTimeout = 5 * time.Second

// RedisConn is an authenticated admin connection to one redis-server.
type RedisConn interface {
	Ping(ctx context.Context) error
	Role(ctx context.Context) (types.Role, string, error)
	ServerVersion(ctx context.Context) (string, error)
	ReplicaOf(ctx context.Context, host string, port int) error
	ReplicaOfNoOne(ctx context.Context) error
	Close() error
}

// SentinelConn is an authenticated admin connection to one sentinel.
type SentinelConn interface {
	Ping(ctx context.Context) error
	MasterInfo(ctx context.Context) (*MasterInfo, error)
	SetQuorum(ctx context.Context, quorum int) error
	Reset(ctx context.Context) error
	Failover(ctx context.Context) error
	Close() error
}

// Dialer creates admin connections to peers. Tests substitute fakes.
type Dialer interface {
	Redis(addr string) RedisConn
	Sentinel(addr string) SentinelConn
}

// NetDialer dials real workload processes over TCP.
type NetDialer struct {
	// MasterName is the sentinel master-group name, conventionally the
	// application name.
	MasterName string

	AdminPassword    string
	SentinelPassword string

	// TLS enables encrypted connections to redis when set. Sentinel
	// connections stay plaintext, matching the workload deployment.
	TLS *tls.Config

	Timeout time.Duration
}

func (d *NetDialer) timeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultTimeout
	}
	return d.Timeout
}

// Redis returns a connection to the redis-server at addr (host only, the
// well-known port is appended).
func (d *NetDialer) Redis(addr string) RedisConn {
	return &redisConn{
		rdb: redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(addr, strconv.Itoa(types.RedisPort)),
			Password:     d.AdminPassword,
			DialTimeout:  d.timeout(),
			ReadTimeout:  d.timeout(),
			WriteTimeout: d.timeout(),
			TLSConfig:    d.TLS,
		}),
	}
}

// Sentinel returns a connection to the sentinel at addr.
func (d *NetDialer) Sentinel(addr string) SentinelConn {
	return &sentinelConn{
		sc: redis.NewSentinelClient(&redis.Options{
			Addr:         net.JoinHostPort(addr, strconv.Itoa(types.SentinelPort)),
			Password:     d.SentinelPassword,
			DialTimeout:  d.timeout(),
			ReadTimeout:  d.timeout(),
			WriteTimeout: d.timeout(),
		}),
		master: d.MasterName,
	}
}

// ClientTLS builds the client TLS configuration from a complete bundle.
func ClientTLS(bundle *types.TLSBundle) (*tls.Config, error) {
	if !bundle.Complete() {
		return nil, fmt.Errorf("bundle incomplete: %w", types.ErrInvalidTLSConfig)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(bundle.CACert) {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", types.ErrInvalidTLSConfig)
	}
	return &tls.Config{RootCAs: pool}, nil
}

type redisConn struct {
	rdb *redis.Client
}

func (c *redisConn) Ping(ctx context.Context) error {
	return probeErr(c.rdb.Ping(ctx).Err())
}

// Role queries INFO replication and returns the role plus, for replicas, the
// primary host currently replicated from.
func (c *redisConn) Role(ctx context.Context) (types.Role, string, error) {
	info, err := c.rdb.Info(ctx, "replication").Result()
	if err != nil {
		return types.RoleUnknown, "", probeErr(err)
	}

	switch infoField(info, "role") {
	case "master":
		return types.RolePrimary, "", nil
	case "slave":
		return types.RoleReplica, infoField(info, "master_host"), nil
	}
	return types.RoleUnknown, "", nil
}

func (c *redisConn) ServerVersion(ctx context.Context) (string, error) {
	info, err := c.rdb.Info(ctx, "server").Result()
	if err != nil {
		return "", probeErr(err)
	}
	return infoField(info, "redis_version"), nil
}

func (c *redisConn) ReplicaOf(ctx context.Context, host string, port int) error {
	return commandErr(c.rdb.Do(ctx, "REPLICAOF", host, strconv.Itoa(port)).Err())
}

func (c *redisConn) ReplicaOfNoOne(ctx context.Context) error {
	return commandErr(c.rdb.Do(ctx, "REPLICAOF", "NO", "ONE").Err())
}

func (c *redisConn) Close() error {
	return c.rdb.Close()
}

type sentinelConn struct {
	sc     *redis.SentinelClient
	master string
}

func (c *sentinelConn) Ping(ctx context.Context) error {
	return probeErr(c.sc.Ping(ctx).Err())
}

func (c *sentinelConn) MasterInfo(ctx context.Context) (*MasterInfo, error) {
	m, err := c.sc.Master(ctx, c.master).Result()
	if err != nil {
		return nil, probeErr(err)
	}
	return masterInfoFromMap(m), nil
}

func (c *sentinelConn) SetQuorum(ctx context.Context, quorum int) error {
	return commandErr(c.sc.Set(ctx, c.master, "quorum", strconv.Itoa(quorum)).Err())
}

func (c *sentinelConn) Reset(ctx context.Context) error {
	return commandErr(c.sc.Reset(ctx, c.master).Err())
}

func (c *sentinelConn) Failover(ctx context.Context) error {
	return commandErr(c.sc.Failover(ctx, c.master).Err())
}

func (c *sentinelConn) Close() error {
	return c.sc.Close()
}

// probeErr classifies errors from read-only queries: the peer is treated as
// unreachable and the pass continues without it.
func probeErr(err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", types.ErrCommandTimeout, err)
	}
	return fmt.Errorf("%w: %v", types.ErrPeerUnreachable, err)
}

// commandErr classifies errors from state-changing commands.
func commandErr(err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", types.ErrCommandTimeout, err)
	}
	return fmt.Errorf("%w: %v", types.ErrCommandFailed, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
