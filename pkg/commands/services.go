// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/platform-engineering-labs/azext/pkg/client"
	"github.com/platform-engineering-labs/azext/pkg/config"
	"github.com/platform-engineering-labs/azext/pkg/lro"
	"github.com/platform-engineering-labs/azext/pkg/monitor"
)

// Services is what the commands need from Azure.
type Services interface {
	SubscriptionID() string
	Providers() monitor.ProvidersAPI
	ManagedClusters(subscriptionID string) (monitor.ManagedClustersAPI, error)
	LRO(apiVersion string) (lro.LROClient, error)
	ListLocations(ctx context.Context) ([]string, error)
}

// ServicesFactory builds Services for a configuration.
type ServicesFactory func(ctx context.Context, cfg *config.Config) (Services, error)

// CredentialFactory builds the credential used for registry lookups.
type CredentialFactory func(ctx context.Context, cfg *config.Config) (azcore.TokenCredential, error)

func newAzureServices(ctx context.Context, cfg *config.Config) (Services, error) {
	c, err := client.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &azureServices{client: c}, nil
}

func newAzureCredential(ctx context.Context, cfg *config.Config) (azcore.TokenCredential, error) {
	return cfg.ToAzureCredential(ctx)
}

// azureServices adapts *client.Client to Services.
type azureServices struct {
	client *client.Client
}

func (s *azureServices) SubscriptionID() string {
	return s.client.Config.SubscriptionID
}

func (s *azureServices) Providers() monitor.ProvidersAPI {
	return s.client.ProvidersClient
}

func (s *azureServices) ManagedClusters(subscriptionID string) (monitor.ManagedClustersAPI, error) {
	return s.client.ManagedClusters(subscriptionID)
}

func (s *azureServices) LRO(apiVersion string) (lro.LROClient, error) {
	return s.client.LRO(apiVersion)
}

func (s *azureServices) ListLocations(ctx context.Context) ([]string, error) {
	return s.client.ListLocations(ctx)
}
