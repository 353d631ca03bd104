package configuration

import (
	"time"

	"github.com/google/uuid"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore/keyvalue"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore/pool"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/capabilities"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/random"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BackendConfiguration selects and parameterizes one storage backend.
// All values are supplied by the process configuration layer; this
// package only validates and assembles them.
type BackendConfiguration struct {
	// Which backend variant to instantiate: "null", "error",
	// "direct" or "chunked".
	Backend string
	// Endpoints of the remote key-value service. Required for the
	// "direct" and "chunked" backends.
	Endpoints []string
	// Maximum number of concurrent connections to the key-value
	// service.
	ConnectionPoolCeiling int64
	// How long a single operation may wait for a pooled connection
	// before failing with an exhaustion error.
	ConnectionAcquireTimeout time.Duration
	// Size of individual chunk entries written by the "chunked"
	// backend.
	ChunkSizeBytes int64
	// Maximum total size of a batched request, reported to clients
	// through the capabilities surface.
	MaxBatchTotalSizeBytes int64
	// Whether clients may store new cache entries.
	ActionCacheUpdateEnabled bool
	// Whether storage keys incorporate the instance name. Backends
	// that serve multiple instances must set this to keep the
	// instances from colliding on the same digest.
	KeyFormat digest.KeyFormat
}

// NewBlobAccessFromConfiguration creates a BlobAccess and its
// accompanying capabilities provider based on a configuration. The
// name is used for metrics and connection attribution.
//
// Malformed configurations are rejected with INVALID_ARGUMENT before
// any connection is established; configuration errors are fatal to
// initialization and are never produced per-request.
func NewBlobAccessFromConfiguration(name string, conf *BackendConfiguration) (blobstore.BlobAccess, capabilities.Provider, error) {
	if conf == nil {
		return nil, nil, status.Error(codes.InvalidArgument, "Backend configuration not specified")
	}

	var blobAccess blobstore.BlobAccess
	switch conf.Backend {
	case "null":
		blobAccess = blobstore.NewNullBlobAccess()
	case "error":
		blobAccess = blobstore.NewErrorBlobAccess(status.Error(codes.Unavailable, "Backend explicitly configured to fail"))
	case "direct", "chunked":
		store, err := newKeyValueStore(name, conf)
		if err != nil {
			return nil, nil, err
		}
		if conf.Backend == "direct" {
			blobAccess = blobstore.NewDirectBlobAccess(store, conf.KeyFormat)
		} else {
			blobAccess, err = blobstore.NewChunkedBlobAccess(store, conf.KeyFormat, conf.ChunkSizeBytes, uuid.NewRandom)
			if err != nil {
				return nil, nil, util.StatusWrap(err, "Failed to create chunked backend")
			}
		}
	default:
		return nil, nil, status.Errorf(codes.InvalidArgument, "Unknown backend type %#v", conf.Backend)
	}

	if conf.MaxBatchTotalSizeBytes < 1 {
		return nil, nil, status.Errorf(codes.InvalidArgument, "Maximum batch size must be positive, not %d", conf.MaxBatchTotalSizeBytes)
	}
	capabilitiesProvider := capabilities.NewStaticProvider(capabilities.ServerCapabilities{
		DigestFunction:           capabilities.DigestFunctionSHA256,
		MaxBatchTotalSizeBytes:   conf.MaxBatchTotalSizeBytes,
		ActionCacheUpdateEnabled: conf.ActionCacheUpdateEnabled,
	})
	return blobstore.NewMetricsBlobAccess(blobAccess, name), capabilitiesProvider, nil
}

func newKeyValueStore(name string, conf *BackendConfiguration) (keyvalue.Store, error) {
	connectionPool, err := pool.NewConnectionPool(
		name,
		conf.Endpoints,
		pool.DialEndpoint,
		conf.ConnectionPoolCeiling,
		conf.ConnectionAcquireTimeout,
		random.FastThreadSafeGenerator)
	if err != nil {
		return nil, util.StatusWrap(err, "Failed to create connection pool")
	}
	return keyvalue.NewPooledStore(connectionPool), nil
}
