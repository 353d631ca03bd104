package capabilities

import (
	"context"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
)

type staticProvider struct {
	capabilities ServerCapabilities
}

// NewStaticProvider creates a capabilities provider that returns a
// fixed response for every instance name. This is used to declare the
// capabilities of a single configured storage backend.
func NewStaticProvider(capabilities ServerCapabilities) Provider {
	return &staticProvider{
		capabilities: capabilities,
	}
}

func (p *staticProvider) GetCapabilities(ctx context.Context, instanceName digest.InstanceName) (*ServerCapabilities, error) {
	capabilities := p.capabilities
	return &capabilities, nil
}
