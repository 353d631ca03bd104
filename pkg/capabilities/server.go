package capabilities

import (
	"context"

	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/digest"
	"github.com/toolchainlabs/toolchain-oss-sub001/pkg/util"
)

type server struct {
	provider Provider
}

// Server responds to capabilities requests issued by clients against a
// raw instance name string, as received from the frontend.
type Server interface {
	GetCapabilities(ctx context.Context, instanceName string) (*ServerCapabilities, error)
}

// NewServer creates a Server that validates the instance name of
// incoming requests and forwards them to a Provider.
func NewServer(provider Provider) Server {
	return &server{
		provider: provider,
	}
}

func (s *server) GetCapabilities(ctx context.Context, instanceName string) (*ServerCapabilities, error) {
	parsedInstanceName, err := digest.NewInstanceName(instanceName)
	if err != nil {
		return nil, util.StatusWrapf(err, "Invalid instance name %#v", instanceName)
	}
	return s.provider.GetCapabilities(ctx, parsedInstanceName)
}
