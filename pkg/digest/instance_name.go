package digest

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Keywords that are not permitted to be placed inside instance names.
// Instance names are embedded in storage keys together with other
// pathname-like components, and permitting these would make derived
// keys ambiguous.
var reservedInstanceNameKeywords = map[string]bool{
	"blobs":        true,
	"chunks":       true,
	"uploads":      true,
	"capabilities": true,
}

// InstanceName is a simple container around instance name strings. An
// instance name is an opaque namespace that scopes all storage
// operations, so that two instances never collide on the same digest.
// Because instance names are embedded in storage keys, some
// restrictions are placed on which instance names are valid. This type
// can only be instantiated for values that are valid.
type InstanceName struct {
	value string
}

// EmptyInstanceName corresponds to the instance name "". It is mainly
// declared to be used in places where the instance name doesn't matter
// (e.g., return values of functions in error cases).
var EmptyInstanceName InstanceName

func validateInstanceNameComponents(components []string) error {
	for _, component := range components {
		if component == "" {
			panic("Attempted to create an instance name with an empty component")
		}
		if _, ok := reservedInstanceNameKeywords[component]; ok {
			return status.Errorf(codes.InvalidArgument, "Instance name contains reserved keyword %#v", component)
		}
	}
	return nil
}

// NewInstanceName creates a new InstanceName object that can be used to
// construct digests.
func NewInstanceName(value string) (InstanceName, error) {
	if strings.HasPrefix(value, "/") || strings.HasSuffix(value, "/") || strings.Contains(value, "//") {
		return InstanceName{}, status.Error(codes.InvalidArgument, "Instance name contains redundant slashes")
	}
	components := strings.FieldsFunc(value, func(r rune) bool { return r == '/' })
	if err := validateInstanceNameComponents(components); err != nil {
		return InstanceName{}, err
	}
	return InstanceName{
		value: value,
	}, nil
}

// MustNewInstanceName is identical to NewInstanceName, except that it
// panics in case the instance name is invalid. This function can be
// used as part of unit tests.
func MustNewInstanceName(value string) InstanceName {
	instanceName, err := NewInstanceName(value)
	if err != nil {
		panic(err)
	}
	return instanceName
}

// NewDigest constructs a Digest object from a hash and an object size,
// scoped to the instance name. Digests are validated upon creation:
// the hash must be a lowercase hexadecimal SHA-256 sum and the size
// must be non-negative.
func (in InstanceName) NewDigest(hash string, sizeBytes int64) (Digest, error) {
	if len(hash) != sha256HexLength {
		return BadDigest, status.Errorf(codes.InvalidArgument, "Hash has length %d, while %d characters were expected", len(hash), sha256HexLength)
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return BadDigest, status.Errorf(codes.InvalidArgument, "Non-hexadecimal character in digest hash: %#U", c)
		}
	}
	if sizeBytes < 0 {
		return BadDigest, status.Errorf(codes.InvalidArgument, "Invalid blob size: %d", sizeBytes)
	}
	return Digest{
		value: formatDigestValue(in, hash, sizeBytes),
	}, nil
}

func (in InstanceName) String() string {
	return in.value
}

const sha256HexLength = 64
