package reconciler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/rs/zerolog"

	"github.com/cuemby/redkeeper/pkg/admin"
	"github.com/cuemby/redkeeper/pkg/config"
	"github.com/cuemby/redkeeper/pkg/events"
	"github.com/cuemby/redkeeper/pkg/log"
	"github.com/cuemby/redkeeper/pkg/metrics"
	"github.com/cuemby/redkeeper/pkg/relation"
	"github.com/cuemby/redkeeper/pkg/render"
	"github.com/cuemby/redkeeper/pkg/secrets"
	"github.com/cuemby/redkeeper/pkg/security"
	"github.com/cuemby/redkeeper/pkg/storage"
	"github.com/cuemby/redkeeper/pkg/topology"
	"github.com/cuemby/redkeeper/pkg/types"
	"github.com/cuemby/redkeeper/pkg/workload"
)

// Persistent state keys.
const (
	stateDigestRedis     = "digest-redis"
	stateDigestSentinel  = "digest-sentinel"
	stateLastRole        = "last-role"
	stateReconciled      = "reconciled"
	stateWorkloadVersion = "workload-version"
)

// Failover settle gate: after a unit departs, sentinel gets four chances
// fifteen seconds apart to finish electing a new primary.
const (
	failoverAttempts = 4
	failoverDelay    = 15 * time.Second
)

const configFileMode = 0o600

// DialerFactory builds an admin dialer for the credentials discovered during
// a pass. Tests substitute a factory returning fakes.
type DialerFactory func(masterName string, creds types.Credentials, tlsConf *tls.Config) admin.Dialer

// NetDialerFactory returns the production dialer over TCP.
func NetDialerFactory(masterName string, creds types.Credentials, tlsConf *tls.Config) admin.Dialer {
	return &admin.NetDialer{
		MasterName:       masterName,
		AdminPassword:    creds.AdminPassword,
		SentinelPassword: creds.SentinelPassword,
		TLS:              tlsConf,
	}
}

// Engine runs reconciliation passes. One pass is a full re-derivation: no
// state is carried between passes except what lives in storage, so any event
// can be handled from scratch after a process restart.
type Engine struct {
	cfg       *config.Operator
	db        storage.Store
	secrets   *secrets.Store
	redis     workload.Supervisor
	sentinel  workload.Supervisor
	newDialer DialerFactory
	publisher *relation.Publisher
	clock     clock.Clock
	log       zerolog.Logger
}

// New creates a reconciliation engine.
func New(cfg *config.Operator, db storage.Store, sec *secrets.Store,
	redis, sentinel workload.Supervisor, newDialer DialerFactory,
	publisher *relation.Publisher, clk clock.Clock) *Engine {

	if clk == nil {
		clk = clock.WallClock
	}
	return &Engine{
		cfg:       cfg,
		db:        db,
		secrets:   sec,
		redis:     redis,
		sentinel:  sentinel,
		newDialer: newDialer,
		publisher: publisher,
		clock:     clk,
		log:       log.WithComponent("reconciler"),
	}
}

// Reconcile handles one event. Every pass follows the same shape: check the
// containers, load credentials and certificates, discover the topology, run
// the event-specific gates, render, apply what changed, probe, publish.
func (e *Engine) Reconcile(ctx context.Context, ev *events.Event) Result {
	timer := metrics.NewTimer()
	res := e.reconcile(ctx, ev)
	timer.ObserveDuration(metrics.ReconcileDuration)
	metrics.ReconcilePassesTotal.WithLabelValues(string(ev.Kind), string(res.Outcome)).Inc()

	evlog := log.WithEvent(string(ev.Kind), ev.ID)
	switch res.Outcome {
	case OutcomeApplied:
		evlog.Info().Str("status", string(res.Status)).Msg("Reconcile pass applied")
	case OutcomeDeferred:
		evlog.Info().Str("reason", res.Reason).Msg("Reconcile pass deferred")
	case OutcomeFailed:
		evlog.Error().Err(res.Err).Str("reason", res.Reason).Msg("Reconcile pass failed")
	}
	return res
}

func (e *Engine) reconcile(ctx context.Context, ev *events.Event) Result {
	// 1. Both workload containers must answer before anything else.
	if err := e.redis.Ready(); err != nil {
		return deferred(types.StateWaitingForContainer, "redis container not ready")
	}
	if err := e.sentinel.Ready(); err != nil {
		return deferred(types.StateWaitingForContainer, "sentinel container not ready")
	}

	// 2. User-facing options.
	opts, err := config.LoadOptions(e.cfg.OptionsFile)
	if err != nil {
		return failed(types.StateDegraded, "invalid options", err)
	}

	// 3. Application credentials, generated on the first pass.
	creds, err := e.secrets.Credentials()
	if err != nil {
		if errors.Is(err, types.ErrSecretStoreUnavailable) {
			return deferred(types.StateWaitingForPeers, "secret storage unavailable")
		}
		return failed(types.StateDegraded, "credentials", err)
	}

	// 4. Certificate material. An incomplete bundle always blocks; a missing
	// one blocks only when the user asked for TLS.
	res := e.cfg.Resources
	bundle, err := security.LoadBundle(res.CACertFile, res.CertFile, res.KeyFile, config.DefaultCertDir)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrNotConfigured):
		bundle = nil
		if opts.EnableTLS {
			return failed(types.StateDegraded, "not enough certificates found", err)
		}
	case errors.Is(err, types.ErrInvalidTLSConfig):
		return failed(types.StateDegraded, "invalid certificate bundle", err)
	default:
		return failed(types.StateDegraded, "certificate bundle", err)
	}

	tlsActive := opts.EnableTLS && bundle.Complete()
	var clientTLS *tls.Config
	if tlsActive {
		clientTLS, err = admin.ClientTLS(bundle)
		if err != nil {
			return failed(types.StateDegraded, "client TLS", err)
		}
	}

	dial := e.newDialer(e.cfg.AppName, creds, clientTLS)
	tracker := topology.NewTracker(dial, e.cfg.PeersFile, e.cfg.UnitOrdinal, e.cfg.UnitAddress)

	// 5. Topology discovery.
	snap, err := tracker.Discover(ctx)
	if err != nil {
		return failed(types.StateDegraded, "topology discovery", err)
	}

	// 6. Event-specific gates. A departure may re-discover after the
	// failover settles.
	if ev.Kind == events.KindPeerDeparted {
		snap, err = e.handleDeparture(ctx, ev, dial, tracker, snap)
		if err != nil {
			if errors.Is(err, types.ErrNotYetAvailable) ||
				retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
				return deferred(types.StateDegraded, "failover still in progress")
			}
			return failed(types.StateDegraded, "departure handling", err)
		}
	}

	e.observeTopology(snap)

	primary := snap.State.PrimaryUnit()
	if primary == nil {
		return deferred(types.StateWaitingForPeers, "no primary known yet")
	}

	if snap.Leader(e.cfg.UnitOrdinal) {
		e.leaderDuties(ctx, dial, snap)
	}

	// 7. Render and apply.
	role := types.RoleReplica
	status := types.StateConfiguringReplica
	if primary.Ordinal == e.cfg.UnitOrdinal {
		role = types.RolePrimary
		status = types.StateConfiguringPrimary
	}
	e.log.Debug().Str("state", string(status)).Int("primary", primary.Ordinal).
		Msg("Applying configuration")

	rendered := render.Render(render.Input{
		MasterName:     e.cfg.AppName,
		UnitAddress:    e.cfg.UnitAddress,
		Role:           role,
		PrimaryAddress: primary.Address,
		PeerAddresses:  snap.State.Addresses(),
		Credentials:    creds,
		TLS:            bundle,
		EnableTLS:      opts.EnableTLS,
		Tuning:         opts.TuningDirectives(),
	})

	if err := e.applyRedis(rendered.Redis, bundle, tlsActive); err != nil {
		return failed(types.StateDegraded, "apply redis configuration", err)
	}
	if err := e.applySentinel(rendered.Sentinel); err != nil {
		return failed(types.StateDegraded, "apply sentinel configuration", err)
	}

	// 8. A role change on a running server takes effect immediately, not
	// just on the next restart.
	if err := e.applyRole(ctx, dial, role, primary.Address); err != nil {
		return failed(types.StateDegraded, "apply replication role", err)
	}

	// 9. Probe both services and capture the workload version.
	if err := e.probe(ctx, dial); err != nil {
		return failed(types.StateDegraded, "workload probe", err)
	}

	if err := e.db.PutState(stateReconciled, "true"); err != nil {
		return failed(types.StateDegraded, "record reconciled", err)
	}

	// 10. Consumers always see the current primary.
	ep := relation.Endpoint{Host: primary.Address, Port: types.RedisPort}
	if tlsActive {
		ep.TLSCA = string(bundle.CACert)
	}
	if err := e.publisher.Publish(ep); err != nil {
		return failed(types.StateDegraded, "publish endpoint", err)
	}

	return applied(types.StateReady, snap.State)
}

// handleDeparture settles a unit removal. When the departed unit was the
// tracked primary the leader asks sentinel for a failover; every unit then
// waits until sentinel reports the failover finished before reconfiguring.
func (e *Engine) handleDeparture(ctx context.Context, ev *events.Event,
	dial admin.Dialer, tracker *topology.Tracker, snap *topology.Snapshot) (*topology.Snapshot, error) {

	departed := ev.DepartingAddress
	if departed == "" {
		return snap, nil
	}

	if snap.Leader(e.cfg.UnitOrdinal) {
		info, err := tracker.MasterInfo(ctx, e.cfg.UnitAddress)
		if err == nil && info.IP == departed && !info.FailoverInProgress() {
			e.log.Info().Str("departed", departed).Msg("Departed unit was primary, requesting failover")
			conn := dial.Sentinel(e.cfg.UnitAddress)
			err := conn.Failover(ctx)
			conn.Close()
			observeCommand("failover", err)
			if err != nil {
				return nil, fmt.Errorf("failed to request failover: %w", err)
			}
		}
	}

	if err := e.waitFailoverSettled(ctx, tracker, departed); err != nil {
		return nil, err
	}

	// Topology may have changed while the failover ran.
	snap, err := tracker.Discover(ctx)
	if err != nil {
		return nil, err
	}

	// Sentinels keep counting departed instances until reset. The leader
	// broadcasts the reset once the dust settles.
	if snap.Leader(e.cfg.UnitOrdinal) {
		for _, u := range snap.State.Units {
			conn := dial.Sentinel(u.Address)
			err := conn.Reset(ctx)
			conn.Close()
			observeCommand("reset", err)
			if err != nil {
				e.log.Warn().Err(err).Str("address", u.Address).Msg("Sentinel reset failed")
			}
		}
	}

	return snap, nil
}

// waitFailoverSettled polls this unit's sentinel until it stops reporting a
// failover in progress and no longer tracks the departed address as primary.
func (e *Engine) waitFailoverSettled(ctx context.Context, tracker *topology.Tracker, departed string) error {
	check := func() error {
		info, err := tracker.MasterInfo(ctx, e.cfg.UnitAddress)
		if err != nil {
			return err
		}
		if info.FailoverInProgress() {
			return fmt.Errorf("failover in progress: %w", types.ErrNotYetAvailable)
		}
		if info.IP == departed {
			return fmt.Errorf("sentinel still tracks departed primary %s: %w",
				departed, types.ErrNotYetAvailable)
		}
		return nil
	}

	return retry.Call(retry.CallArgs{
		Func:     check,
		Attempts: failoverAttempts,
		Delay:    failoverDelay,
		Clock:    e.clock,
		IsFatalError: func(err error) bool {
			return !errors.Is(err, types.ErrNotYetAvailable)
		},
		NotifyFunc: func(err error, attempt int) {
			e.log.Info().Int("attempt", attempt).Err(err).Msg("Waiting for failover to settle")
		},
		Stop: ctx.Done(),
	})
}

// leaderDuties keeps the quorum requirement in step with the peer count. The
// broadcast waits until a majority of sentinels answer: pushing a quorum to a
// minority risks split decisions during partitions.
func (e *Engine) leaderDuties(ctx context.Context, dial admin.Dialer, snap *topology.Snapshot) {
	n := len(snap.State.Units)
	quorum := render.Quorum(n)
	if snap.SentinelsReachable < quorum {
		e.log.Info().Int("reachable", snap.SentinelsReachable).Int("quorum", quorum).
			Msg("Not enough sentinels reachable, postponing quorum update")
		return
	}

	for _, u := range snap.State.Units {
		conn := dial.Sentinel(u.Address)
		err := conn.SetQuorum(ctx, quorum)
		conn.Close()
		observeCommand("set-quorum", err)
		if err != nil {
			e.log.Warn().Err(err).Str("address", u.Address).Msg("Quorum update failed")
		}
	}
}

// applyRedis pushes the redis configuration and certificate material, then
// restarts the service. Unchanged configuration is a no-op.
func (e *Engine) applyRedis(conf []byte, bundle *types.TLSBundle, tlsActive bool) error {
	digest := render.Digest(conf)
	stored, err := e.db.GetState(stateDigestRedis)
	if err != nil {
		return fmt.Errorf("failed to read redis digest: %w", err)
	}
	if stored == digest {
		return nil
	}

	if tlsActive {
		material := []struct {
			path string
			data []byte
		}{
			{bundle.CACertPath, bundle.CACert},
			{bundle.CertPath, bundle.Cert},
			{bundle.KeyPath, bundle.Key},
		}
		for _, m := range material {
			if err := e.redis.WriteFile(m.path, m.data, configFileMode); err != nil {
				return fmt.Errorf("failed to write certificate material: %w", err)
			}
		}
	}

	if err := e.redis.WriteFile(config.DefaultRedisConfigPath, conf, configFileMode); err != nil {
		return fmt.Errorf("failed to write redis configuration: %w", err)
	}
	metrics.ConfigWritesTotal.WithLabelValues(workload.RedisService).Inc()

	if err := e.redis.Restart(workload.RedisService); err != nil {
		return fmt.Errorf("failed to restart redis: %w", err)
	}
	metrics.ServiceRestartsTotal.WithLabelValues(workload.RedisService).Inc()

	// The digest is recorded only after a successful restart so a failed
	// apply is retried by the next event.
	if err := e.db.PutState(stateDigestRedis, digest); err != nil {
		return fmt.Errorf("failed to record redis digest: %w", err)
	}
	e.log.Info().Str("digest", digest[:12]).Msg("Applied redis configuration")
	return nil
}

func (e *Engine) applySentinel(conf []byte) error {
	digest := render.Digest(conf)
	stored, err := e.db.GetState(stateDigestSentinel)
	if err != nil {
		return fmt.Errorf("failed to read sentinel digest: %w", err)
	}
	if stored == digest {
		return nil
	}

	if err := e.sentinel.WriteFile(config.DefaultSentinelConfigPath, conf, configFileMode); err != nil {
		return fmt.Errorf("failed to write sentinel configuration: %w", err)
	}
	metrics.ConfigWritesTotal.WithLabelValues(workload.SentinelService).Inc()

	if err := e.sentinel.Restart(workload.SentinelService); err != nil {
		return fmt.Errorf("failed to restart sentinel: %w", err)
	}
	metrics.ServiceRestartsTotal.WithLabelValues(workload.SentinelService).Inc()

	if err := e.db.PutState(stateDigestSentinel, digest); err != nil {
		return fmt.Errorf("failed to record sentinel digest: %w", err)
	}
	e.log.Info().Str("digest", digest[:12]).Msg("Applied sentinel configuration")
	return nil
}

// applyRole issues an explicit REPLICAOF when the unit's role changed since
// the last pass, so a running server follows the topology without waiting
// for a restart to pick up the rendered directive.
func (e *Engine) applyRole(ctx context.Context, dial admin.Dialer, role types.Role, primaryAddr string) error {
	prev, err := e.db.GetState(stateLastRole)
	if err != nil {
		return fmt.Errorf("failed to read last role: %w", err)
	}

	if prev != string(role) && prev != "" {
		conn := dial.Redis(e.cfg.UnitAddress)
		defer conn.Close()

		switch role {
		case types.RolePrimary:
			err = conn.ReplicaOfNoOne(ctx)
			observeCommand("replicaof-no-one", err)
		case types.RoleReplica:
			err = conn.ReplicaOf(ctx, primaryAddr, types.RedisPort)
			observeCommand("replicaof", err)
		}
		if err != nil {
			return err
		}
		e.log.Info().Str("from", prev).Str("to", string(role)).Msg("Replication role changed")
	}

	return e.db.PutState(stateLastRole, string(role))
}

// probe checks both services are active in their supervisors and answer
// authenticated pings, and records the served version.
func (e *Engine) probe(ctx context.Context, dial admin.Dialer) error {
	if err := e.checkRunning(e.redis, workload.RedisService); err != nil {
		return err
	}
	if err := e.checkRunning(e.sentinel, workload.SentinelService); err != nil {
		return err
	}

	rconn := dial.Redis(e.cfg.UnitAddress)
	defer rconn.Close()

	if err := rconn.Ping(ctx); err != nil {
		metrics.UpdateComponent(workload.RedisService, false, err.Error())
		return fmt.Errorf("redis ping: %w", err)
	}
	metrics.UpdateComponent(workload.RedisService, true, "")

	if version, err := rconn.ServerVersion(ctx); err == nil && version != "" {
		if err := e.db.PutState(stateWorkloadVersion, version); err != nil {
			e.log.Warn().Err(err).Msg("Failed to record workload version")
		}
	}

	sconn := dial.Sentinel(e.cfg.UnitAddress)
	defer sconn.Close()

	if err := sconn.Ping(ctx); err != nil {
		metrics.UpdateComponent(workload.SentinelService, false, err.Error())
		return fmt.Errorf("sentinel ping: %w", err)
	}
	metrics.UpdateComponent(workload.SentinelService, true, "")
	return nil
}

func (e *Engine) checkRunning(sup workload.Supervisor, service string) error {
	running, err := sup.Running(service)
	if err != nil {
		metrics.UpdateComponent(service, false, err.Error())
		return fmt.Errorf("query %s service: %w", service, err)
	}
	if !running {
		metrics.UpdateComponent(service, false, "service not active")
		return fmt.Errorf("%s service not active: %w", service, types.ErrCommandFailed)
	}
	return nil
}

func (e *Engine) observeTopology(snap *topology.Snapshot) {
	n := len(snap.State.Units)
	metrics.PeersTotal.Set(float64(n))
	metrics.PeersUnreachable.Set(float64(n - snap.SentinelsReachable))

	if snap.State.PrimaryOrdinal == e.cfg.UnitOrdinal {
		metrics.UnitPrimary.Set(1)
	} else {
		metrics.UnitPrimary.Set(0)
	}
}

func observeCommand(command string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.AdminCommandsTotal.WithLabelValues(command, status).Inc()
}

// WorkloadVersion returns the last recorded redis-server version, or "".
func (e *Engine) WorkloadVersion() string {
	v, err := e.db.GetState(stateWorkloadVersion)
	if err != nil {
		return ""
	}
	return v
}

// Reconciled reports whether at least one pass has fully applied since the
// application was deployed. Actions that expose credentials are gated on it.
func Reconciled(db storage.Store) (bool, error) {
	v, err := db.GetState(stateReconciled)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}
