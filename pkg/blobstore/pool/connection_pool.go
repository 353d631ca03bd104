package pool

import (
	"context"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/random"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/util"

	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	connectionPoolConnectionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolchain",
			Subsystem: "blobstore",
			Name:      "connection_pool_connections_created_total",
			Help:      "Total number of connections dialed by connection pools.",
		},
		[]string{"name", "endpoint"})
	connectionPoolConnectionsDiscardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolchain",
			Subsystem: "blobstore",
			Name:      "connection_pool_connections_discarded_total",
			Help:      "Total number of leased connections discarded due to transport errors.",
		},
		[]string{"name", "endpoint"})
	connectionPoolAcquireDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolchain",
			Subsystem: "blobstore",
			Name:      "connection_pool_acquire_duration_seconds",
			Help:      "Amount of time spent acquiring a connection from the pool, in seconds.",
			Buckets:   util.DecimalExponentialBuckets(-3, 6, 2),
		},
		[]string{"name"})
)

func init() {
	prometheus.MustRegister(connectionPoolConnectionsCreatedTotal)
	prometheus.MustRegister(connectionPoolConnectionsDiscardedTotal)
	prometheus.MustRegister(connectionPoolAcquireDurationSeconds)
}

// Dialer establishes a single connection to one endpoint of the remote
// key-value service. It is injectable, both to support alternative
// transports and to allow unit tests to substitute failing or
// instrumented connections.
type Dialer func(ctx context.Context, endpoint string) (redis.Conn, error)

// DialEndpoint is the default Dialer. It establishes a plain TCP
// connection to the provided endpoint.
func DialEndpoint(ctx context.Context, endpoint string) (redis.Conn, error) {
	return redis.DialContext(ctx, "tcp", endpoint)
}

type pooledConnection struct {
	conn     redis.Conn
	endpoint string
}

// ConnectionPool hands out reusable connections to the remote key-value
// service backing the blob store. The pool is bounded: at most the
// configured number of connections exist at any point in time, whether
// idle or leased. Connections are created lazily and are load balanced
// across the configured endpoints in round-robin order.
//
// A connection is owned exclusively by the pool while idle and
// exclusively by a single caller while leased. Connections that
// surface a transport error while leased are discarded on release; a
// replacement is dialed lazily by a later Acquire().
type ConnectionPool struct {
	name           string
	endpoints      []string
	dialer         Dialer
	acquireTimeout time.Duration

	// Bounds the total number of live connections. A semaphore is
	// used instead of a plain channel so that acquisition can be
	// interrupted by context cancelation.
	semaphore *semaphore.Weighted

	lock         sync.Mutex
	idle         []*pooledConnection
	nextEndpoint int
	closed       bool

	connectionsCreated   *prometheus.CounterVec
	connectionsDiscarded *prometheus.CounterVec
	acquireDuration      prometheus.Observer
}

// NewConnectionPool creates a connection pool for a named backend with
// a fixed set of endpoints and a connection ceiling. The name and
// endpoint of a connection are reported for observability purposes
// only; they play no role in addressing.
func NewConnectionPool(name string, endpoints []string, dialer Dialer, ceiling int64, acquireTimeout time.Duration, randomGenerator random.ThreadSafeGenerator) (*ConnectionPool, error) {
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "Connection pool requires a backend name")
	}
	if len(endpoints) == 0 {
		return nil, status.Error(codes.InvalidArgument, "Connection pool requires at least one endpoint")
	}
	if ceiling < 1 {
		return nil, status.Errorf(codes.InvalidArgument, "Connection pool ceiling must be positive, not %d", ceiling)
	}
	if acquireTimeout <= 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Connection pool acquisition timeout must be positive, not %s", acquireTimeout)
	}
	return &ConnectionPool{
		name:           name,
		endpoints:      endpoints,
		dialer:         dialer,
		acquireTimeout: acquireTimeout,
		semaphore:      semaphore.NewWeighted(ceiling),
		// Start round-robin placement at a random endpoint, so
		// that multiple processes sharing the same
		// configuration don't all converge on the first one.
		nextEndpoint: randomGenerator.IntN(len(endpoints)),

		connectionsCreated:   connectionPoolConnectionsCreatedTotal,
		connectionsDiscarded: connectionPoolConnectionsDiscardedTotal,
		acquireDuration:      connectionPoolAcquireDurationSeconds.WithLabelValues(name),
	}, nil
}

// Name returns the backend name under which all of the pool's
// connections are attributed.
func (cp *ConnectionPool) Name() string {
	return cp.name
}

// Acquire leases a connection from the pool. If all connections are in
// use, the call suspends until one is released or until either the
// caller's deadline or the pool's configured acquisition timeout
// expires. Exhaustion is reported as an UNAVAILABLE infrastructure
// error, leaving the retry decision to the caller.
//
// The returned lease must be released on every exit path, typically by
// deferring Lease.Release() immediately after acquisition.
func (cp *ConnectionPool) Acquire(ctx context.Context) (*Lease, error) {
	timeStart := time.Now()
	defer func() {
		cp.acquireDuration.Observe(time.Since(timeStart).Seconds())
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, cp.acquireTimeout)
	defer cancel()
	if err := util.AcquireSemaphore(timeoutCtx, cp.semaphore, 1); err != nil {
		if ctx.Err() != nil {
			// The caller's own deadline expired; report it
			// as such instead of as pool exhaustion.
			return nil, util.StatusWrapf(util.StatusFromContext(ctx), "Failed to acquire connection to %#v", cp.name)
		}
		return nil, status.Errorf(codes.Unavailable, "Connection pool for %#v exhausted after %s", cp.name, cp.acquireTimeout)
	}

	pc, err := cp.getIdleOrDial(timeoutCtx)
	if err != nil {
		cp.semaphore.Release(1)
		return nil, err
	}
	return &Lease{
		pool:       cp,
		connection: pc,
	}, nil
}

func (cp *ConnectionPool) getIdleOrDial(ctx context.Context) (*pooledConnection, error) {
	cp.lock.Lock()
	if cp.closed {
		cp.lock.Unlock()
		return nil, status.Errorf(codes.Unavailable, "Connection pool for %#v is closed", cp.name)
	}
	if n := len(cp.idle); n > 0 {
		pc := cp.idle[n-1]
		cp.idle = cp.idle[:n-1]
		cp.lock.Unlock()
		return pc, nil
	}
	endpoint := cp.endpoints[cp.nextEndpoint]
	cp.nextEndpoint = (cp.nextEndpoint + 1) % len(cp.endpoints)
	cp.lock.Unlock()

	// Dial without holding the lock, so that a slow or unreachable
	// endpoint does not stall unrelated acquisitions.
	conn, err := cp.dialer(ctx, endpoint)
	if err != nil {
		return nil, util.StatusWrapfWithCode(err, codes.Unavailable, "Failed to connect to %#v endpoint %#v", cp.name, endpoint)
	}
	cp.connectionsCreated.WithLabelValues(cp.name, endpoint).Inc()
	return &pooledConnection{
		conn:     conn,
		endpoint: endpoint,
	}, nil
}

func (cp *ConnectionPool) release(pc *pooledConnection) {
	defer cp.semaphore.Release(1)

	// Connections that observed a transport error are permanently
	// broken and must not be handed to another caller. The redigo
	// client latches fatal errors on the connection object itself.
	if pc.conn.Err() != nil {
		cp.connectionsDiscarded.WithLabelValues(cp.name, pc.endpoint).Inc()
		pc.conn.Close()
		return
	}

	cp.lock.Lock()
	defer cp.lock.Unlock()
	if cp.closed {
		pc.conn.Close()
		return
	}
	cp.idle = append(cp.idle, pc)
}

// Close terminates all idle connections and marks the pool as closed.
// Connections that are currently leased are closed when their lease is
// released. Acquire() calls issued after Close() fail immediately.
func (cp *ConnectionPool) Close() {
	cp.lock.Lock()
	idle := cp.idle
	cp.idle = nil
	cp.closed = true
	cp.lock.Unlock()

	for _, pc := range idle {
		pc.conn.Close()
	}
}

// Lease provides exclusive, time-bounded ownership of one pooled
// connection. The caller that holds a lease is the only user of the
// underlying connection until Release() is called.
type Lease struct {
	pool       *ConnectionPool
	connection *pooledConnection
}

// Connection returns the underlying connection to the key-value
// service. The caller must not retain the connection beyond the
// lifetime of the lease.
func (l *Lease) Connection() redis.Conn {
	return l.connection.conn
}

// Endpoint returns the address of the endpoint this lease's connection
// is established to. It is intended for logging and metrics
// attribution, never for routing decisions.
func (l *Lease) Endpoint() string {
	return l.connection.endpoint
}

// Release returns the connection to the pool. Releasing is idempotent,
// so that it can safely be deferred on all exit paths, including error
// and cancelation paths. Connections that failed while leased are
// discarded instead of being returned.
func (l *Lease) Release() {
	if l.connection == nil {
		return
	}
	pc := l.connection
	l.connection = nil
	l.pool.release(pc)
}
