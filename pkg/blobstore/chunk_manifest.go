package blobstore

import (
	"encoding/binary"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// chunkManifest describes how the contents of a chunked blob are laid
// out across key-value entries. The manifest is written only after all
// of the chunk entries it references are durably stored, which makes
// its presence the sole signal that the blob exists.
type chunkManifest struct {
	chunkCount     uint64
	chunkSizeBytes uint64
	totalSizeBytes uint64
}

// chunkManifestSizeBytes is the size of the fixed-layout manifest
// record: three big-endian 64-bit integers.
const chunkManifestSizeBytes = 24

func newChunkManifest(totalSizeBytes, chunkSizeBytes int64) chunkManifest {
	chunkCount := uint64(totalSizeBytes+chunkSizeBytes-1) / uint64(chunkSizeBytes)
	return chunkManifest{
		chunkCount:     chunkCount,
		chunkSizeBytes: uint64(chunkSizeBytes),
		totalSizeBytes: uint64(totalSizeBytes),
	}
}

func (m chunkManifest) MarshalBinary() []byte {
	record := make([]byte, chunkManifestSizeBytes)
	binary.BigEndian.PutUint64(record[0:], m.chunkCount)
	binary.BigEndian.PutUint64(record[8:], m.chunkSizeBytes)
	binary.BigEndian.PutUint64(record[16:], m.totalSizeBytes)
	return record
}

// unmarshalChunkManifest decodes and validates a manifest record. A
// record that cannot be decoded, or whose fields are not mutually
// consistent, indicates corruption of backend state and is reported
// with code DATA_LOSS.
func unmarshalChunkManifest(record []byte) (chunkManifest, error) {
	if len(record) != chunkManifestSizeBytes {
		return chunkManifest{}, status.Errorf(codes.DataLoss, "Chunk manifest is %d bytes in size, while %d bytes were expected", len(record), chunkManifestSizeBytes)
	}
	m := chunkManifest{
		chunkCount:     binary.BigEndian.Uint64(record[0:]),
		chunkSizeBytes: binary.BigEndian.Uint64(record[8:]),
		totalSizeBytes: binary.BigEndian.Uint64(record[16:]),
	}
	if m.chunkSizeBytes == 0 {
		return chunkManifest{}, status.Error(codes.DataLoss, "Chunk manifest declares a zero chunk size")
	}
	if expected := (m.totalSizeBytes + m.chunkSizeBytes - 1) / m.chunkSizeBytes; m.chunkCount != expected {
		return chunkManifest{}, status.Errorf(codes.DataLoss, "Chunk manifest declares %d chunks, while %d were expected for a %d byte blob with %d byte chunks", m.chunkCount, expected, m.totalSizeBytes, m.chunkSizeBytes)
	}
	return m, nil
}

// chunkLengthBytes returns the expected length of the chunk at a given
// index. All chunks have the configured chunk size, except for the
// final chunk, which may be shorter.
func (m chunkManifest) chunkLengthBytes(index uint64) uint64 {
	if index == m.chunkCount-1 {
		if remainder := m.totalSizeBytes % m.chunkSizeBytes; remainder != 0 {
			return remainder
		}
	}
	return m.chunkSizeBytes
}
