package blobstore

import (
	"context"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore/keyvalue"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type directBlobAccess struct {
	store         keyvalue.Store
	blobKeyFormat digest.KeyFormat
}

// NewDirectBlobAccess creates a BlobAccess that stores every blob as a
// single entry in the remote key-value store. This backend is only
// appropriate for deployments where blob sizes are known to stay below
// the practical size limit of a single key-value entry; enforcing that
// limit is up to the capabilities reported to clients and to the
// frontend, not to this backend.
func NewDirectBlobAccess(store keyvalue.Store, blobKeyFormat digest.KeyFormat) BlobAccess {
	return &directBlobAccess{
		store:         store,
		blobKeyFormat: blobKeyFormat,
	}
}

func (ba *directBlobAccess) Get(ctx context.Context, blobDigest digest.Digest) ([]byte, error) {
	data, err := ba.store.Get(ctx, blobDigest.GetKey(ba.blobKeyFormat))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, status.Errorf(codes.NotFound, "Blob %#v not found", blobDigest.String())
		}
		return nil, util.StatusWrap(err, "Failed to get blob")
	}
	return data, nil
}

func (ba *directBlobAccess) Put(ctx context.Context, blobDigest digest.Digest, data []byte) error {
	if err := ba.store.Set(ctx, blobDigest.GetKey(ba.blobKeyFormat), data); err != nil {
		return util.StatusWrap(err, "Failed to put blob")
	}
	return nil
}

func (ba *directBlobAccess) FindMissing(ctx context.Context, digests digest.Set) (digest.Set, error) {
	items := digests.Items()
	if len(items) == 0 {
		return digest.EmptySet, nil
	}
	keys := make([]string, 0, len(items))
	for _, blobDigest := range items {
		keys = append(keys, blobDigest.GetKey(ba.blobKeyFormat))
	}
	present, err := ba.store.Exists(ctx, keys)
	if err != nil {
		return digest.EmptySet, util.StatusWrap(err, "Failed to find missing blobs")
	}
	missing := digest.NewSetBuilder()
	for i, blobDigest := range items {
		if !present[i] {
			missing.Add(blobDigest)
		}
	}
	return missing.Build(), nil
}
