// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package imageregistry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/containers/azcontainerregistry"
	"github.com/platform-engineering-labs/azext/pkg/logging"
)

// TypeAzureContainerRegistry is the registry type of Azure Container Registries.
const TypeAzureContainerRegistry = "AzureContainerRegistry"

const acrHostSuffix = ".azurecr.io"

func init() {
	Register(TypeAzureContainerRegistry, func(name string, opts *Options) Registry {
		return NewAzureContainerRegistry(name, opts)
	})
}

// IsACRHost reports whether host is an Azure Container Registry login server.
func IsACRHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), acrHostSuffix)
}

// tagClient is the part of azcontainerregistry.Client used for lookups.
type tagClient interface {
	GetTagProperties(ctx context.Context, name string, tag string, options *azcontainerregistry.ClientGetTagPropertiesOptions) (azcontainerregistry.ClientGetTagPropertiesResponse, error)
}

var _ tagClient = (*azcontainerregistry.Client)(nil)

// AzureContainerRegistry looks images up through the ACR data plane API.
type AzureContainerRegistry struct {
	base
	credential    azcore.TokenCredential
	clientOptions *azcontainerregistry.ClientOptions

	once      sync.Once
	client    tagClient
	clientErr error
}

// NewAzureContainerRegistry creates an ACR registry for the login server name.
func NewAzureContainerRegistry(name string, opts *Options) *AzureContainerRegistry {
	if opts == nil {
		opts = &Options{}
	}
	return &AzureContainerRegistry{
		base:          base{registryType: TypeAzureContainerRegistry, name: name},
		credential:    opts.Credential,
		clientOptions: opts.ACRClientOptions,
	}
}

func (r *AzureContainerRegistry) tags() (tagClient, error) {
	r.once.Do(func() {
		if r.client != nil {
			return
		}
		client, err := azcontainerregistry.NewClient("https://"+r.name, r.credential, r.clientOptions)
		if err != nil {
			r.clientErr = fmt.Errorf("failed to create ACR client for %s: %w", r.name, err)
			return
		}
		r.client = client
	})
	return r.client, r.clientErr
}

// FindImage looks for the tag version of image in each namespace.
func (r *AzureContainerRegistry) FindImage(ctx context.Context, image, version string) (bool, string, error) {
	log := logging.LoggerFromContext(ctx)
	client, err := r.tags()
	if err != nil {
		return false, "", err
	}
	for _, namespace := range r.searchNamespaces() {
		repo := repository(namespace, image)
		_, err := client.GetTagProperties(ctx, repo, version, nil)
		if err == nil {
			log.V(1).Info("Image found", "registry", r.name, "repository", repo, "tag", version)
			return true, namespace, nil
		}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			log.V(1).Info("Image not found", "registry", r.name, "repository", repo, "tag", version)
			continue
		}
		return false, "", fmt.Errorf("failed to look up %s:%s in %s: %w", repo, version, r.name, err)
	}
	return false, "", nil
}
