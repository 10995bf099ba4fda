// Package registry constructs the provider adapters named in the cloud
// configuration and hands the server and CLI a ready dispatcher.
package registry

import (
	"context"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
	"github.com/Riley94/multi-cloud-manager/internal/cloud/aws"
	"github.com/Riley94/multi-cloud-manager/internal/cloud/gcp"
	"github.com/Riley94/multi-cloud-manager/internal/cloud/mock"
	"github.com/Riley94/multi-cloud-manager/internal/config"
	"github.com/Riley94/multi-cloud-manager/internal/logging"
)

// Build instantiates one adapter per configured provider. A provider that
// fails to construct is skipped with a logged error rather than aborting
// startup, so one bad credential set does not take down the others.
func Build(ctx context.Context, cc *config.CloudConfig, logger logging.Logger) map[cloud.Provider]cloud.ComputeService {
	services := map[cloud.Provider]cloud.ComputeService{}
	if cc.AWS != nil {
		c, err := aws.New(ctx, cc.AWS)
		if err != nil {
			logger.Error("aws adapter unavailable", "error", err)
		} else {
			services[cloud.ProviderAWS] = c
		}
	}
	if cc.GCP != nil {
		c, err := gcp.New(ctx, cc.GCP)
		if err != nil {
			logger.Error("gcp adapter unavailable", "error", err)
		} else {
			services[cloud.ProviderGCP] = c
		}
	}
	if cc.Mock != nil {
		services[cloud.ProviderMock] = mock.New()
	}
	return services
}

// Dispatcher builds the adapters and wires them to the region inventory.
func Dispatcher(ctx context.Context, cc *config.CloudConfig, logger logging.Logger) *cloud.Dispatcher {
	return cloud.NewDispatcher(Build(ctx, cc, logger), cc, logger)
}
