package pool_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/require"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore/pool"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/random"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/testutil"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestPool(t *testing.T, server *miniredis.Miniredis, ceiling int64, acquireTimeout time.Duration) *pool.ConnectionPool {
	t.Helper()
	connectionPool, err := pool.NewConnectionPool(
		"kv-primary",
		[]string{server.Addr()},
		pool.DialEndpoint,
		ceiling,
		acquireTimeout,
		random.FastThreadSafeGenerator)
	require.NoError(t, err)
	t.Cleanup(connectionPool.Close)
	return connectionPool
}

func TestNewConnectionPoolConfigurationErrors(t *testing.T) {
	t.Run("MissingName", func(t *testing.T) {
		_, err := pool.NewConnectionPool("", []string{"localhost:6379"}, pool.DialEndpoint, 1, time.Minute, random.FastThreadSafeGenerator)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Connection pool requires a backend name"), err)
	})

	t.Run("MissingEndpoints", func(t *testing.T) {
		_, err := pool.NewConnectionPool("kv-primary", nil, pool.DialEndpoint, 1, time.Minute, random.FastThreadSafeGenerator)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Connection pool requires at least one endpoint"), err)
	})

	t.Run("InvalidCeiling", func(t *testing.T) {
		_, err := pool.NewConnectionPool("kv-primary", []string{"localhost:6379"}, pool.DialEndpoint, 0, time.Minute, random.FastThreadSafeGenerator)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Connection pool ceiling must be positive, not 0"), err)
	})

	t.Run("InvalidAcquireTimeout", func(t *testing.T) {
		_, err := pool.NewConnectionPool("kv-primary", []string{"localhost:6379"}, pool.DialEndpoint, 1, 0, random.FastThreadSafeGenerator)
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Connection pool acquisition timeout must be positive, not 0s"), err)
	})
}

func TestConnectionPoolAcquireRelease(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	connectionPool := newTestPool(t, server, 2, time.Minute)

	lease, err := connectionPool.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, server.Addr(), lease.Endpoint())

	// The leased connection must be functional.
	_, err = lease.Connection().Do("PING")
	require.NoError(t, err)
	lease.Release()

	// Releasing twice must be safe, so that callers can
	// unconditionally defer Release() on all exit paths.
	lease.Release()
}

func TestConnectionPoolExhaustion(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	connectionPool := newTestPool(t, server, 2, 100*time.Millisecond)

	// Drain the pool.
	lease1, err := connectionPool.Acquire(ctx)
	require.NoError(t, err)
	lease2, err := connectionPool.Acquire(ctx)
	require.NoError(t, err)

	// With the ceiling reached, an additional acquisition must
	// fail with an exhaustion error after the configured timeout
	// instead of deadlocking.
	_, err = connectionPool.Acquire(ctx)
	testutil.RequireEqualStatus(t, status.Error(codes.Unavailable, "Connection pool for \"kv-primary\" exhausted after 100ms"), err)

	// Releasing a connection must unblock a waiting acquisition.
	acquired := make(chan error, 1)
	go func() {
		lease, err := connectionPool.Acquire(ctx)
		if err == nil {
			lease.Release()
		}
		acquired <- err
	}()
	lease1.Release()
	require.NoError(t, <-acquired)

	lease2.Release()
}

func TestConnectionPoolCallerDeadline(t *testing.T) {
	server := miniredis.RunT(t)
	connectionPool := newTestPool(t, server, 1, time.Minute)

	lease, err := connectionPool.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	// When the caller's own context is canceled while waiting, the
	// failure must be classified as cancelation, not exhaustion.
	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = connectionPool.Acquire(canceledCtx)
	testutil.RequireEqualStatus(t, status.Error(codes.Canceled, "Failed to acquire connection to \"kv-primary\": context canceled"), err)
}

func TestConnectionPoolDiscardsBrokenConnections(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	connectionPool := newTestPool(t, server, 1, time.Minute)

	// Break the connection while it is leased. Releasing it must
	// discard it instead of returning it to the idle set.
	lease, err := connectionPool.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, lease.Connection().Close())
	lease.Release()

	// The next acquisition must transparently dial a replacement.
	lease, err = connectionPool.Acquire(ctx)
	require.NoError(t, err)
	defer lease.Release()
	_, err = lease.Connection().Do("PING")
	require.NoError(t, err)
}

func TestConnectionPoolDialFailure(t *testing.T) {
	ctx := context.Background()
	connectionPool, err := pool.NewConnectionPool(
		"kv-primary",
		[]string{"unreachable.invalid:6379"},
		func(ctx context.Context, endpoint string) (redis.Conn, error) {
			return nil, status.Error(codes.Unknown, "Connection refused")
		},
		1,
		time.Minute,
		random.FastThreadSafeGenerator)
	require.NoError(t, err)
	t.Cleanup(connectionPool.Close)

	// A dial failure must not consume pool capacity: both calls
	// observe the failure instead of the second one hanging.
	_, err = connectionPool.Acquire(ctx)
	testutil.RequireEqualStatus(t, status.Error(codes.Unavailable, "Failed to connect to \"kv-primary\" endpoint \"unreachable.invalid:6379\": Connection refused"), err)
	_, err = connectionPool.Acquire(ctx)
	testutil.RequireEqualStatus(t, status.Error(codes.Unavailable, "Failed to connect to \"kv-primary\" endpoint \"unreachable.invalid:6379\": Connection refused"), err)
}

func TestConnectionPoolRoundRobinEndpoints(t *testing.T) {
	ctx := context.Background()
	server1 := miniredis.RunT(t)
	server2 := miniredis.RunT(t)
	connectionPool, err := pool.NewConnectionPool(
		"kv-primary",
		[]string{server1.Addr(), server2.Addr()},
		pool.DialEndpoint,
		2,
		time.Minute,
		random.FastThreadSafeGenerator)
	require.NoError(t, err)
	t.Cleanup(connectionPool.Close)

	// Two freshly dialed connections must land on distinct
	// endpoints.
	lease1, err := connectionPool.Acquire(ctx)
	require.NoError(t, err)
	defer lease1.Release()
	lease2, err := connectionPool.Acquire(ctx)
	require.NoError(t, err)
	defer lease2.Release()
	require.ElementsMatch(
		t,
		[]string{server1.Addr(), server2.Addr()},
		[]string{lease1.Endpoint(), lease2.Endpoint()})
}

func TestConnectionPoolClose(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	connectionPool, err := pool.NewConnectionPool(
		"kv-primary",
		[]string{server.Addr()},
		pool.DialEndpoint,
		1,
		time.Minute,
		random.FastThreadSafeGenerator)
	require.NoError(t, err)

	lease, err := connectionPool.Acquire(ctx)
	require.NoError(t, err)
	lease.Release()

	connectionPool.Close()

	_, err = connectionPool.Acquire(ctx)
	testutil.RequireEqualStatus(t, status.Error(codes.Unavailable, "Connection pool for \"kv-primary\" is closed"), err)
}
