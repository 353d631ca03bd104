package capabilities_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/capabilities"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
)

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	provider := capabilities.NewStaticProvider(capabilities.ServerCapabilities{
		DigestFunction:         capabilities.DigestFunctionSHA256,
		MaxBatchTotalSizeBytes: 4 << 20,
	})

	// The same response must be returned for every instance name,
	// and callers must receive their own copy.
	for _, instanceName := range []string{"", "example", "hello/world"} {
		serverCapabilities, err := provider.GetCapabilities(ctx, digest.MustNewInstanceName(instanceName))
		require.NoError(t, err)
		require.Equal(t, &capabilities.ServerCapabilities{
			DigestFunction:         capabilities.DigestFunctionSHA256,
			MaxBatchTotalSizeBytes: 4 << 20,
		}, serverCapabilities)
		serverCapabilities.MaxBatchTotalSizeBytes = 0
	}
}
