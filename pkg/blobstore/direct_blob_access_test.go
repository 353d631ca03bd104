package blobstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/blobstore"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestDirectBlobAccessRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t)
	blobAccess := blobstore.NewDirectBlobAccess(store, digest.KeyWithInstance)

	data := []byte("Hello world")
	blobDigest := mustNewSHA256Digest(t, "example", data)

	// A fresh digest must be reported as missing and absent.
	missing, err := blobAccess.FindMissing(ctx, blobDigest.ToSingletonSet())
	require.NoError(t, err)
	require.Equal(t, blobDigest.ToSingletonSet(), missing)

	_, err = blobAccess.Get(ctx, blobDigest)
	require.Equal(t, codes.NotFound, status.Code(err))

	// After writing, reads must return the original contents and
	// FindMissing must no longer report the digest.
	require.NoError(t, blobAccess.Put(ctx, blobDigest, data))

	roundTripped, err := blobAccess.Get(ctx, blobDigest)
	require.NoError(t, err)
	require.Equal(t, data, roundTripped)

	missing, err = blobAccess.FindMissing(ctx, blobDigest.ToSingletonSet())
	require.NoError(t, err)
	require.True(t, missing.Empty())
}

func TestDirectBlobAccessIdempotentPut(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t)
	blobAccess := blobstore.NewDirectBlobAccess(store, digest.KeyWithInstance)

	data := []byte("Hello world")
	blobDigest := mustNewSHA256Digest(t, "example", data)

	require.NoError(t, blobAccess.Put(ctx, blobDigest, data))
	require.NoError(t, blobAccess.Put(ctx, blobDigest, data))

	roundTripped, err := blobAccess.Get(ctx, blobDigest)
	require.NoError(t, err)
	require.Equal(t, data, roundTripped)
}

func TestDirectBlobAccessInstanceIsolation(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t)
	blobAccess := blobstore.NewDirectBlobAccess(store, digest.KeyWithInstance)

	data := []byte("Hello world")
	writtenDigest := mustNewSHA256Digest(t, "fedora31", data)
	otherInstanceDigest := mustNewSHA256Digest(t, "ubuntu1804", data)

	// Two instances must never collide on the same digest.
	require.NoError(t, blobAccess.Put(ctx, writtenDigest, data))

	_, err := blobAccess.Get(ctx, otherInstanceDigest)
	require.Equal(t, codes.NotFound, status.Code(err))

	missing, err := blobAccess.FindMissing(
		ctx,
		digest.NewSetBuilder().Add(writtenDigest).Add(otherInstanceDigest).Build())
	require.NoError(t, err)
	require.Equal(t, otherInstanceDigest.ToSingletonSet(), missing)
}

func TestDirectBlobAccessFindMissingDeduplicates(t *testing.T) {
	ctx := context.Background()
	store, _ := newMiniredisStore(t)
	blobAccess := blobstore.NewDirectBlobAccess(store, digest.KeyWithInstance)

	blobDigest := mustNewSHA256Digest(t, "example", []byte("Hello"))
	missing, err := blobAccess.FindMissing(
		ctx,
		digest.NewSetBuilder().Add(blobDigest).Add(blobDigest).Build())
	require.NoError(t, err)
	require.Equal(t, 1, missing.Length())
}

func TestDirectBlobAccessInfrastructureFailure(t *testing.T) {
	ctx := context.Background()
	store, server := newMiniredisStore(t)
	blobAccess := blobstore.NewDirectBlobAccess(store, digest.KeyWithInstance)

	data := []byte("Hello world")
	blobDigest := mustNewSHA256Digest(t, "example", data)
	require.NoError(t, blobAccess.Put(ctx, blobDigest, data))

	// Once the backend becomes unreachable, operations must fail
	// with a retryable infrastructure error instead of reporting
	// blobs as absent.
	server.Close()

	_, err := blobAccess.Get(ctx, blobDigest)
	require.Equal(t, codes.Unavailable, status.Code(err))

	err = blobAccess.Put(ctx, blobDigest, data)
	require.Equal(t, codes.Unavailable, status.Code(err))

	_, err = blobAccess.FindMissing(ctx, blobDigest.ToSingletonSet())
	require.Equal(t, codes.Unavailable, status.Code(err))
}
