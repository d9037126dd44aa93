// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package monitor

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"github.com/platform-engineering-labs/azext/pkg/resourceid"
)

// ManagedClustersAPI is the subset of armcontainerservice.ManagedClustersClient used here.
type ManagedClustersAPI interface {
	Get(ctx context.Context, resourceGroupName string, resourceName string, options *armcontainerservice.ManagedClustersClientGetOptions) (armcontainerservice.ManagedClustersClientGetResponse, error)
}

var _ ManagedClustersAPI = (*armcontainerservice.ManagedClustersClient)(nil)

// SanitizeResourceID normalizes a resource ID for comparison and splitting.
func SanitizeResourceID(id string) string {
	return resourceid.Sanitize(id)
}

// MetricsEnabled reports whether the Azure Monitor metrics profile of a
// cluster is enabled. A profile that is absent at any level counts as
// disabled; only the fetch itself can fail.
func MetricsEnabled(ctx context.Context, api ManagedClustersAPI, resourceGroupName string, clusterName string) (bool, error) {
	resp, err := api.Get(ctx, resourceGroupName, clusterName, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get managed cluster %s/%s: %w", resourceGroupName, clusterName, err)
	}

	props := resp.Properties
	if props == nil || props.AzureMonitorProfile == nil || props.AzureMonitorProfile.Metrics == nil {
		return false, nil
	}
	enabled := props.AzureMonitorProfile.Metrics.Enabled
	return enabled != nil && *enabled, nil
}

// MetricsEnabledForID is MetricsEnabled for a cluster resource ID. api must
// be bound to the subscription the ID names.
func MetricsEnabledForID(ctx context.Context, api ManagedClustersAPI, clusterResourceID string) (bool, error) {
	parts := resourceid.Split(SanitizeResourceID(clusterResourceID))
	resourceGroup, name := parts["resourcegroups"], parts["managedclusters"]
	if resourceGroup == "" || name == "" {
		return false, fmt.Errorf("invalid managed cluster resource ID %q", clusterResourceID)
	}
	return MetricsEnabled(ctx, api, resourceGroup, name)
}
