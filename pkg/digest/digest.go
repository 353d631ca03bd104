package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strconv"
)

// Digest holds the identification of a blob stored in the Content
// Addressable Storage (CAS). It combines a SHA-256 hash, the size of
// the blob in bytes and the instance name that scopes the blob.
//
// Because Digest objects are frequently used as keys (as part of
// caching data structures or to construct sets without duplicate
// values), this implementation immediately constructs a key
// representation upon creation. All functions that extract individual
// components (e.g., GetInstanceName(), GetHash*() and GetSizeBytes())
// operate directly on the key format.
type Digest struct {
	value string
}

// BadDigest is a default instance of Digest. It can, for example, be
// used as a function return value for error cases.
var BadDigest Digest

// Unpack the individual hash, size and instance name fields from the
// string representation stored inside the Digest object.
func (d Digest) unpack() (int, int64, int) {
	// The leading hash has a fixed length.
	hashEnd := sha256.Size * 2

	// Extract the size stored in the middle.
	sizeBytes := int64(0)
	sizeBytesEnd := hashEnd + 1
	for sizeBytesEnd < len(d.value) && d.value[sizeBytesEnd] != '-' {
		sizeBytes = sizeBytes*10 + int64(d.value[sizeBytesEnd]-'0')
		sizeBytesEnd++
	}

	return hashEnd, sizeBytes, sizeBytesEnd
}

// MustNewDigest constructs a Digest similar to InstanceName.NewDigest,
// but never returns an error. Instead, execution will abort if the
// resulting instance would be degenerate. Useful for unit testing.
func MustNewDigest(instanceName, hash string, sizeBytes int64) Digest {
	in, err := NewInstanceName(instanceName)
	if err != nil {
		panic(err)
	}
	d, err := in.NewDigest(hash, sizeBytes)
	if err != nil {
		panic(err)
	}
	return d
}

// GetInstanceName returns the instance name that scopes the blob.
func (d Digest) GetInstanceName() InstanceName {
	_, _, sizeBytesEnd := d.unpack()
	if sizeBytesEnd == len(d.value) {
		return EmptyInstanceName
	}
	return InstanceName{
		value: d.value[sizeBytesEnd+1:],
	}
}

// GetHashBytes returns the hash of the blob as a slice of bytes.
func (d Digest) GetHashBytes() []byte {
	hash, err := hex.DecodeString(d.GetHashString())
	if err != nil {
		panic("Failed to decode digest hash, even though its contents have already been validated")
	}
	return hash
}

// GetHashString returns the hash of the blob as a string.
func (d Digest) GetHashString() string {
	hashEnd, _, _ := d.unpack()
	return d.value[:hashEnd]
}

// GetSizeBytes returns the size of the blob, in bytes.
func (d Digest) GetSizeBytes() int64 {
	_, sizeBytes, _ := d.unpack()
	return sizeBytes
}

// KeyFormat is an enumeration type that determines the format of blob
// keys returned by Digest.GetKey().
type KeyFormat int

const (
	// KeyWithoutInstance lets Digest.GetKey() return a key that
	// does not include the name of the instance; only the hash and
	// the size.
	KeyWithoutInstance KeyFormat = iota
	// KeyWithInstance lets Digest.GetKey() return a key that
	// includes the hash, size and instance name.
	KeyWithInstance
)

// Combine two KeyFormats into one, picking the format that contains the
// most information. This is used when a single storage backend is
// shared by multiple frontends that have different instance isolation
// requirements.
func (kf KeyFormat) Combine(other KeyFormat) KeyFormat {
	if kf == KeyWithInstance {
		return KeyWithInstance
	}
	return other
}

// GetKey generates a string representation of the digest object that
// may be used as keys in hash tables or as backend storage keys.
func (d Digest) GetKey(format KeyFormat) string {
	switch format {
	case KeyWithoutInstance:
		_, _, sizeBytesEnd := d.unpack()
		return d.value[:sizeBytesEnd]
	case KeyWithInstance:
		return d.value
	default:
		panic("Invalid digest key format")
	}
}

func (d Digest) String() string {
	return d.GetKey(KeyWithInstance)
}

// ToSingletonSet creates a Set that contains a single element that
// corresponds to the Digest.
func (d Digest) ToSingletonSet() Set {
	return Set{
		digests: []Digest{d},
	}
}

// NewHasher creates a standard hash.Hash object that may be used to
// compute a checksum of data. The hash.Hash object uses the same
// algorithm as the one that was used to create the digest, making it
// possible to validate data against a digest.
func (d Digest) NewHasher() hash.Hash {
	return sha256.New()
}

func formatDigestValue(instanceName InstanceName, hash string, sizeBytes int64) string {
	value := hash + "-" + strconv.FormatInt(sizeBytes, 10)
	if instanceName.value != "" {
		value += "-" + instanceName.value
	}
	return value
}
