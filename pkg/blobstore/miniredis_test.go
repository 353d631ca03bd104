package blobstore_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore/keyvalue"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore/pool"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/random"
)

// newMiniredisStore spawns an in-process key-value service and returns
// a Store that reaches it through a freshly created connection pool.
func newMiniredisStore(t *testing.T) (keyvalue.Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	connectionPool, err := pool.NewConnectionPool(
		"test-backend",
		[]string{server.Addr()},
		pool.DialEndpoint,
		10,
		10*time.Second,
		random.FastThreadSafeGenerator)
	require.NoError(t, err)
	t.Cleanup(connectionPool.Close)
	return keyvalue.NewPooledStore(connectionPool), server
}
