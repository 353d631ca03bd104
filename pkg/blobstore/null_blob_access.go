package blobstore

import (
	"context"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type nullBlobAccess struct{}

// NewNullBlobAccess creates a BlobAccess that accepts all writes
// without persisting them and reports every digest as absent. It is
// used for configurations where storage is intentionally disabled.
func NewNullBlobAccess() BlobAccess {
	return nullBlobAccess{}
}

func (nullBlobAccess) Get(ctx context.Context, blobDigest digest.Digest) ([]byte, error) {
	return nil, status.Errorf(codes.NotFound, "Blob %#v not found", blobDigest.String())
}

func (nullBlobAccess) Put(ctx context.Context, blobDigest digest.Digest, data []byte) error {
	return nil
}

func (nullBlobAccess) FindMissing(ctx context.Context, digests digest.Set) (digest.Set, error) {
	return digests, nil
}
