package blobstore

import (
	"bytes"
	"encoding/hex"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ByteConsolidator merges a sequence of byte fragments, as received
// from a streaming transport, into one contiguous buffer. Frontends use
// it to reassemble uploads before handing them to BlobAccess.Put(),
// which needs the full contents for chunk slicing and digest
// validation.
type ByteConsolidator struct {
	buffer bytes.Buffer
}

// NewByteConsolidator creates a ByteConsolidator that contains no data.
func NewByteConsolidator() *ByteConsolidator {
	return &ByteConsolidator{}
}

// Append adds one fragment to the end of the consolidated buffer.
func (bc *ByteConsolidator) Append(fragment []byte) {
	// bytes.Buffer.Write() is documented to never return an error.
	bc.buffer.Write(fragment)
}

// GetSizeBytes returns the total number of bytes consolidated so far.
func (bc *ByteConsolidator) GetSizeBytes() int64 {
	return int64(bc.buffer.Len())
}

// GetBytes returns the consolidated contents as one contiguous slice.
// The returned slice is only valid until the next call to Append().
func (bc *ByteConsolidator) GetBytes() []byte {
	return bc.buffer.Bytes()
}

// ToValidatedBytes returns the consolidated contents, after checking
// them against the digest the client declared for the upload. Contents
// that do not match the digest are rejected, so that a corrupted or
// truncated upload can never be stored under a valid address.
func (bc *ByteConsolidator) ToValidatedBytes(blobDigest digest.Digest) ([]byte, error) {
	data := bc.buffer.Bytes()
	if int64(len(data)) != blobDigest.GetSizeBytes() {
		return nil, status.Errorf(codes.InvalidArgument, "Buffer is %d bytes in size, while %d bytes were expected", len(data), blobDigest.GetSizeBytes())
	}
	hasher := blobDigest.NewHasher()
	hasher.Write(data)
	if hash := hex.EncodeToString(hasher.Sum(nil)); hash != blobDigest.GetHashString() {
		return nil, status.Errorf(codes.InvalidArgument, "Buffer has checksum %s, while %s was expected", hash, blobDigest.GetHashString())
	}
	return data, nil
}

// ConsolidateByteSlices merges a list of fragments into one contiguous
// buffer in a single allocation.
func ConsolidateByteSlices(fragments [][]byte) []byte {
	totalSizeBytes := 0
	for _, fragment := range fragments {
		totalSizeBytes += len(fragment)
	}
	data := make([]byte, 0, totalSizeBytes)
	for _, fragment := range fragments {
		data = append(data, fragment...)
	}
	return data
}
