package blobstore

import (
	"context"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
)

// BlobAccess is an abstraction for a data store that holds a Content
// Addressable Storage (CAS). Blobs are immutable and are addressed
// solely by their digest.
//
// Implementations must allow Put() to be called concurrently for the
// same digest from multiple callers: all concurrent writers either
// succeed or the last-completing write leaves a complete, valid blob.
// A Get() racing a Put() of the same digest either reports the blob as
// absent or returns the complete new contents, never a torn read.
type BlobAccess interface {
	// Get returns the contents of the blob associated with the
	// digest. If the blob is absent, an error with code NOT_FOUND
	// is returned. Absence is a normal outcome for callers, not an
	// infrastructure failure.
	Get(ctx context.Context, blobDigest digest.Digest) ([]byte, error)
	// Put stores the contents of a blob under its digest. Writes
	// of an already present digest are idempotent.
	Put(ctx context.Context, blobDigest digest.Digest, data []byte) error
	// FindMissing returns the subset of digests that are not
	// currently retrievable from the data store. The operation has
	// no side effects and never yields duplicate results.
	FindMissing(ctx context.Context, digests digest.Set) (digest.Set, error)
}
