// Package openstack implements the cloud capability interfaces on top of
// gophercloud. Authentication uses the standard OS_* environment variables.
package openstack

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gophercloud/gophercloud/v2"
	"github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/joho/godotenv"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// Options configures the connection to one cloud
type Options struct {
	Region  string
	EnvFile string
}

// Connect authenticates from the environment and builds a cloud.Set. ctx
// bounds authentication; every later call takes its own context.
func Connect(ctx context.Context, opts Options) (cloud.Set, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return cloud.Set{}, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}
	region := opts.Region
	if region == "" {
		region = os.Getenv("OS_REGION_NAME")
	}

	authOpts, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return cloud.Set{}, fmt.Errorf("failed to read OpenStack credentials: %w", err)
	}
	authOpts.AllowReauth = true

	provider, err := openstack.AuthenticatedClient(ctx, authOpts)
	if err != nil {
		return cloud.Set{}, fmt.Errorf("failed to authenticate: %w", err)
	}

	endpoint := gophercloud.EndpointOpts{Region: region}

	compute, err := openstack.NewComputeV2(provider, endpoint)
	if err != nil {
		return cloud.Set{}, fmt.Errorf("failed to create compute client: %w", err)
	}
	blockStorage, err := openstack.NewBlockStorageV3(provider, endpoint)
	if err != nil {
		return cloud.Set{}, fmt.Errorf("failed to create block storage client: %w", err)
	}
	image, err := openstack.NewImageV2(provider, endpoint)
	if err != nil {
		return cloud.Set{}, fmt.Errorf("failed to create image client: %w", err)
	}
	identity, err := openstack.NewIdentityV3(provider, endpoint)
	if err != nil {
		return cloud.Set{}, fmt.Errorf("failed to create identity client: %w", err)
	}
	network, err := openstack.NewNetworkV2(provider, endpoint)
	if err != nil {
		return cloud.Set{}, fmt.Errorf("failed to create network client: %w", err)
	}

	return cloud.Set{
		Instances:      &Instances{compute: compute},
		Volumes:        &Volumes{storage: blockStorage, compute: compute},
		Images:         &Images{client: image},
		Tenants:        &Tenants{client: identity},
		Users:          &Users{client: identity},
		SecurityGroups: &SecurityGroups{client: network},
	}, nil
}

// translate maps SDK 404s onto cloud.ErrNotFound and adds context
func translate(kind types.Kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %v", cloud.NotFound(kind, id), err)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}
