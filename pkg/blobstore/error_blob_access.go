package blobstore

import (
	"context"
	"log"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
)

type errorBlobAccess struct {
	err error
}

// NewErrorBlobAccess creates a BlobAccess that returns a fixed error
// response. Such an implementation is useful for adding explicit
// rejection of oversized requests, or for testing that calling code
// propagates infrastructure failures correctly.
func NewErrorBlobAccess(err error) BlobAccess {
	if err == nil {
		log.Fatal("Attempted to create error blob access with nil error")
	}
	return &errorBlobAccess{
		err: err,
	}
}

func (ba *errorBlobAccess) Get(ctx context.Context, blobDigest digest.Digest) ([]byte, error) {
	return nil, ba.err
}

func (ba *errorBlobAccess) Put(ctx context.Context, blobDigest digest.Digest, data []byte) error {
	return ba.err
}

func (ba *errorBlobAccess) FindMissing(ctx context.Context, digests digest.Set) (digest.Set, error) {
	return digest.EmptySet, ba.err
}
