package capabilities

import (
	"context"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
)

// DigestFunctionSHA256 is the only digest function this storage
// implementation supports.
const DigestFunctionSHA256 = "SHA256"

// ServerCapabilities reports the limits of the active storage
// configuration, so that clients can size their batched requests
// correctly before issuing them.
type ServerCapabilities struct {
	// Name of the digest function used to address blobs.
	DigestFunction string
	// Maximum total number of bytes a single batched request may
	// carry. Sourced from the active backend configuration.
	MaxBatchTotalSizeBytes int64
	// Whether clients are permitted to store new cache entries.
	ActionCacheUpdateEnabled bool
}

// Provider of capabilities.
//
// This interface is implemented by subsystems that want to report
// parts of the server's capabilities, with values scoped to a single
// instance name. No request-content validation is performed by
// providers; they are pure configuration reflection.
type Provider interface {
	GetCapabilities(ctx context.Context, instanceName digest.InstanceName) (*ServerCapabilities, error)
}
