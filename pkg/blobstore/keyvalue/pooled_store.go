package keyvalue

import (
	"context"

	"github.com/gomodule/redigo/redis"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore/pool"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type pooledStore struct {
	pool *pool.ConnectionPool
}

// NewPooledStore creates a Store that performs every operation on a
// connection leased from a ConnectionPool. Leases are scoped to a
// single operation and are released on all exit paths, so a failing
// operation can never leak its connection.
//
// The client library is not aware of context handles. Each operation
// therefore checks for cancelation before touching the transport, so
// that a larger piece of code that calls into the store multiple times
// has cancelation points.
func NewPooledStore(connectionPool *pool.ConnectionPool) Store {
	return &pooledStore{
		pool: connectionPool,
	}
}

func (s *pooledStore) Get(ctx context.Context, key string) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, util.StatusFromContext(ctx)
	}
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	value, err := redis.Bytes(lease.Connection().Do("GET", key))
	if err != nil {
		if err == redis.ErrNil {
			return nil, status.Errorf(codes.NotFound, "Key %#v does not exist", key)
		}
		return nil, util.StatusWrapfWithCode(err, codes.Unavailable, "Failed to get key %#v from %#v", key, s.pool.Name())
	}
	return value, nil
}

func (s *pooledStore) Set(ctx context.Context, key string, value []byte) error {
	if ctx.Err() != nil {
		return util.StatusFromContext(ctx)
	}
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if _, err := lease.Connection().Do("SET", key, value); err != nil {
		return util.StatusWrapfWithCode(err, codes.Unavailable, "Failed to set key %#v in %#v", key, s.pool.Name())
	}
	return nil
}

func (s *pooledStore) Exists(ctx context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, util.StatusFromContext(ctx)
	}
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	// Execute "EXISTS" requests all in a single pipeline.
	conn := lease.Connection()
	for _, key := range keys {
		if err := conn.Send("EXISTS", key); err != nil {
			return nil, util.StatusWrapfWithCode(err, codes.Unavailable, "Failed to check existence of key %#v in %#v", key, s.pool.Name())
		}
	}
	if err := conn.Flush(); err != nil {
		return nil, util.StatusWrapfWithCode(err, codes.Unavailable, "Failed to check existence of keys in %#v", s.pool.Name())
	}
	present := make([]bool, 0, len(keys))
	for i, key := range keys {
		count, err := redis.Int64(conn.Receive())
		if err != nil {
			// Server-side reply errors do not latch the
			// connection's error state. The remaining pipelined
			// replies must be consumed before the lease is
			// released, as a later command on this connection
			// would otherwise read them as its own.
			for j := i + 1; j < len(keys); j++ {
				if _, err := conn.Receive(); err != nil && conn.Err() != nil {
					break
				}
			}
			return nil, util.StatusWrapfWithCode(err, codes.Unavailable, "Failed to check existence of key %#v in %#v", key, s.pool.Name())
		}
		present = append(present, count != 0)
	}
	return present, nil
}

func (s *pooledStore) Rename(ctx context.Context, oldKey, newKey string) error {
	if ctx.Err() != nil {
		return util.StatusFromContext(ctx)
	}
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if _, err := lease.Connection().Do("RENAME", oldKey, newKey); err != nil {
		return util.StatusWrapfWithCode(err, codes.Unavailable, "Failed to rename key %#v to %#v in %#v", oldKey, newKey, s.pool.Name())
	}
	return nil
}
