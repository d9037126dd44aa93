// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package imageregistry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/platform-engineering-labs/azext/pkg/logging"
)

// TypeUniversalRegistry is the registry type of any OCI distribution registry.
const TypeUniversalRegistry = "UniversalRegistry"

func init() {
	Register(TypeUniversalRegistry, func(host string, opts *Options) Registry {
		return NewUniversalRegistry(host, opts)
	})
}

// UniversalRegistry looks images up with a manifest HEAD request against
// the registry's distribution API.
type UniversalRegistry struct {
	base
	remoteOptions []remote.Option
}

// NewUniversalRegistry creates a registry for host. Without RemoteOptions
// credentials come from the local docker config.
func NewUniversalRegistry(host string, opts *Options) *UniversalRegistry {
	remoteOptions := []remote.Option{remote.WithAuthFromKeychain(authn.DefaultKeychain)}
	if opts != nil && len(opts.RemoteOptions) > 0 {
		remoteOptions = slices.Clone(opts.RemoteOptions)
	}
	return &UniversalRegistry{
		base:          base{registryType: TypeUniversalRegistry, name: host},
		remoteOptions: remoteOptions,
	}
}

// FindImage looks for the tag version of image in each namespace.
func (r *UniversalRegistry) FindImage(ctx context.Context, image, version string) (bool, string, error) {
	log := logging.LoggerFromContext(ctx)
	opts := append(slices.Clone(r.remoteOptions), remote.WithContext(ctx))

	for _, namespace := range r.searchNamespaces() {
		refString := fmt.Sprintf("%s/%s:%s", r.name, repository(namespace, image), version)
		ref, err := name.ParseReference(refString)
		if err != nil {
			return false, "", fmt.Errorf("invalid image reference %q: %w", refString, err)
		}
		desc, err := remote.Head(ref, opts...)
		if err == nil {
			log.V(1).Info("Image found", "reference", refString, "digest", desc.Digest.String())
			return true, namespace, nil
		}
		var terr *transport.Error
		if errors.As(err, &terr) && terr.StatusCode == http.StatusNotFound {
			log.V(1).Info("Image not found", "reference", refString)
			continue
		}
		return false, "", fmt.Errorf("failed to look up %s: %w", refString, err)
	}
	return false, "", nil
}
