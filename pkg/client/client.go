// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/subscription/armsubscription"
	"github.com/platform-engineering-labs/azext/pkg/config"
	"github.com/platform-engineering-labs/azext/pkg/lro"
)

const (
	// Module name and version for ARM client (used for telemetry)
	moduleName    = "github.com/platform-engineering-labs/azext"
	moduleVersion = "v0.1.0"
)

// Client wraps the Azure SDK clients used by the extension commands.
//
// Typed SDK clients serve the probes (provider registration, cluster lookup,
// subscription locations). Operations that have no typed SDK client go through
// the lro package, which shares the armClient pipeline so both paths get the
// same authentication, retry and telemetry policies.
type Client struct {
	Config                *config.Config
	ProvidersClient       *armresources.ProvidersClient
	ManagedClustersClient *armcontainerservice.ManagedClustersClient
	SubscriptionsClient   *armsubscription.SubscriptionsClient
	credential            azcore.TokenCredential
	clientOptions         *arm.ClientOptions
	armClient             *arm.Client
}

// NewClient creates a new Azure client wrapper. The configuration must name a
// subscription.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := cfg.RequireSubscription(); err != nil {
		return nil, err
	}
	cred, err := cfg.ToAzureCredential(ctx)
	if err != nil {
		return nil, err
	}
	return NewClientWithCredential(cfg, cred)
}

// NewClientWithCredential is NewClient with a caller-supplied credential.
func NewClientWithCredential(cfg *config.Config, cred azcore.TokenCredential) (*Client, error) {
	clientOptions := cfg.ClientOptions()

	providersClient, err := armresources.NewProvidersClient(cfg.SubscriptionID, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	managedClustersClient, err := armcontainerservice.NewManagedClustersClient(cfg.SubscriptionID, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	subscriptionsClient, err := armsubscription.NewSubscriptionsClient(cred, clientOptions)
	if err != nil {
		return nil, err
	}

	armClient, err := arm.NewClient(moduleName, moduleVersion, cred, clientOptions)
	if err != nil {
		return nil, err
	}

	return &Client{
		Config:                cfg,
		ProvidersClient:       providersClient,
		ManagedClustersClient: managedClustersClient,
		SubscriptionsClient:   subscriptionsClient,
		credential:            cred,
		clientOptions:         clientOptions,
		armClient:             armClient,
	}, nil
}

// Credential returns the credential the SDK clients were built with.
func (c *Client) Credential() azcore.TokenCredential {
	return c.credential
}

// ManagedClusters returns a managed clusters client for subscriptionID. The
// configured subscription reuses ManagedClustersClient.
func (c *Client) ManagedClusters(subscriptionID string) (*armcontainerservice.ManagedClustersClient, error) {
	if subscriptionID == "" || strings.EqualFold(subscriptionID, c.Config.SubscriptionID) {
		return c.ManagedClustersClient, nil
	}
	return armcontainerservice.NewManagedClustersClient(subscriptionID, c.credential, c.clientOptions)
}

// LRO returns a long-running operation client over the ARM pipeline, rooted
// at the configured resource manager endpoint. apiVersion is the default for
// requests that do not carry one.
func (c *Client) LRO(apiVersion string) (*lro.Client, error) {
	return lro.NewClient(lro.NewPipelineTransport(c.armClient.Pipeline()), &lro.Options{
		Endpoint:     c.Config.Endpoint(),
		APIVersion:   apiVersion,
		PollInterval: c.Config.PollInterval,
	})
}

// ListLocations returns the lowercase names of the locations available to the
// configured subscription.
func (c *Client) ListLocations(ctx context.Context) ([]string, error) {
	var locations []string
	pager := c.SubscriptionsClient.NewListLocationsPager(c.Config.SubscriptionID, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list locations for subscription %s: %w", c.Config.SubscriptionID, err)
		}
		for _, loc := range page.Value {
			if loc != nil && loc.Name != nil {
				locations = append(locations, strings.ToLower(*loc.Name))
			}
		}
	}
	return locations, nil
}
