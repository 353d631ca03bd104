package blobstore

import (
	"context"
	"strconv"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore/keyvalue"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/util"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Number of chunk transfers that a single Get() or Put() call may have
// in flight at once. Chunk entries of the same blob are independent, so
// transferring them concurrently only trades connection pool pressure
// against latency.
const chunkedBlobAccessConcurrency = 4

type chunkedBlobAccess struct {
	store          keyvalue.Store
	blobKeyFormat  digest.KeyFormat
	chunkSizeBytes int64
	uuidGenerator  util.UUIDGenerator
}

// NewChunkedBlobAccess creates a BlobAccess that splits blobs into
// fixed-size chunks, with each chunk stored as a separate entry in the
// remote key-value store. This allows blobs of arbitrary size to be
// stored in services that place a practical limit on the size of a
// single entry.
//
// A manifest entry, stored under the blob's own key, describes the
// chunk layout. The manifest is only written after every chunk entry is
// durably present, and it is published through an atomic rename of a
// staging entry. Readers therefore either observe no manifest (blob
// absent) or a manifest whose full chunk set exists; a half-written
// blob is never visible.
func NewChunkedBlobAccess(store keyvalue.Store, blobKeyFormat digest.KeyFormat, chunkSizeBytes int64, uuidGenerator util.UUIDGenerator) (BlobAccess, error) {
	if chunkSizeBytes < 1 {
		return nil, status.Errorf(codes.InvalidArgument, "Chunk size must be positive, not %d", chunkSizeBytes)
	}
	return &chunkedBlobAccess{
		store:          store,
		blobKeyFormat:  blobKeyFormat,
		chunkSizeBytes: chunkSizeBytes,
		uuidGenerator:  uuidGenerator,
	}, nil
}

func (ba *chunkedBlobAccess) getChunkKey(manifestKey string, index uint64) string {
	return manifestKey + "/chunks/" + strconv.FormatUint(index, 10)
}

func (ba *chunkedBlobAccess) Get(ctx context.Context, blobDigest digest.Digest) ([]byte, error) {
	manifestKey := blobDigest.GetKey(ba.blobKeyFormat)
	record, err := ba.store.Get(ctx, manifestKey)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, status.Errorf(codes.NotFound, "Blob %#v not found", blobDigest.String())
		}
		return nil, util.StatusWrap(err, "Failed to get chunk manifest")
	}
	manifest, err := unmarshalChunkManifest(record)
	if err != nil {
		return nil, util.StatusWrapf(err, "Blob %#v has a corrupted chunk manifest", blobDigest.String())
	}
	if expected := uint64(blobDigest.GetSizeBytes()); manifest.totalSizeBytes != expected {
		return nil, status.Errorf(codes.DataLoss, "Chunk manifest of blob %#v declares a total size of %d bytes, while the digest declares %d bytes", blobDigest.String(), manifest.totalSizeBytes, expected)
	}

	// Fetch all chunks concurrently. Every chunk owns a disjoint
	// region of the output buffer, so no locking is needed.
	data := make([]byte, manifest.totalSizeBytes)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(chunkedBlobAccessConcurrency)
	for index := uint64(0); index < manifest.chunkCount; index++ {
		group.Go(func() error {
			chunk, err := ba.store.Get(groupCtx, ba.getChunkKey(manifestKey, index))
			if err != nil {
				if status.Code(err) == codes.NotFound {
					// The write protocol guarantees that chunks are
					// durable before the manifest is published, so
					// an absent chunk means backend state was
					// corrupted externally.
					return status.Errorf(codes.DataLoss, "Chunk manifest of blob %#v references chunk %d, which does not exist", blobDigest.String(), index)
				}
				return util.StatusWrapf(err, "Failed to get chunk %d of blob %#v", index, blobDigest.String())
			}
			expectedLength := manifest.chunkLengthBytes(index)
			if uint64(len(chunk)) != expectedLength {
				return status.Errorf(codes.DataLoss, "Chunk %d of blob %#v is %d bytes in size, while %d bytes were expected", index, blobDigest.String(), len(chunk), expectedLength)
			}
			copy(data[index*manifest.chunkSizeBytes:], chunk)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func (ba *chunkedBlobAccess) Put(ctx context.Context, blobDigest digest.Digest, data []byte) error {
	manifestKey := blobDigest.GetKey(ba.blobKeyFormat)
	manifest := newChunkManifest(int64(len(data)), ba.chunkSizeBytes)

	// Phase one: write all chunk entries. These writes may proceed
	// in any order, as the blob remains unobservable until the
	// manifest is published. Concurrent writers of the same digest
	// overwrite each other's chunks with identical contents.
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(chunkedBlobAccessConcurrency)
	for index := uint64(0); index < manifest.chunkCount; index++ {
		group.Go(func() error {
			start := index * manifest.chunkSizeBytes
			end := start + manifest.chunkLengthBytes(index)
			if err := ba.store.Set(groupCtx, ba.getChunkKey(manifestKey, index), data[start:end]); err != nil {
				return util.StatusWrapf(err, "Failed to put chunk %d of blob %#v", index, blobDigest.String())
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		// No manifest was published, so readers treat the blob
		// as absent. Any chunks written so far are garbage that
		// a later write of the same digest overwrites.
		return err
	}

	// Phase two: publish the manifest. The record is written to a
	// staging key first and then moved in place atomically, so a
	// reader can never observe a partially written manifest record.
	stagingID, err := ba.uuidGenerator()
	if err != nil {
		return util.StatusWrap(err, "Failed to generate staging identifier")
	}
	stagingKey := manifestKey + "/uploads/" + stagingID.String()
	if err := ba.store.Set(ctx, stagingKey, manifest.MarshalBinary()); err != nil {
		return util.StatusWrapf(err, "Failed to stage chunk manifest of blob %#v", blobDigest.String())
	}
	if err := ba.store.Rename(ctx, stagingKey, manifestKey); err != nil {
		return util.StatusWrapf(err, "Failed to publish chunk manifest of blob %#v", blobDigest.String())
	}
	return nil
}

func (ba *chunkedBlobAccess) FindMissing(ctx context.Context, digests digest.Set) (digest.Set, error) {
	items := digests.Items()
	if len(items) == 0 {
		return digest.EmptySet, nil
	}
	// Manifest presence is the sole completeness signal, so there
	// is no need to check the existence of individual chunks.
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
