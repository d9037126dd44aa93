// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package operations

import (
	"context"
	"fmt"
	"net/http"

	"github.com/platform-engineering-labs/azext/pkg/lro"
)

const (
	// DefaultComputeDiagnosticAPIVersion is the Microsoft.Compute diagnostic API version for placement scores.
	DefaultComputeDiagnosticAPIVersion = "2024-06-01-preview"

	spotPlacementScoresPath = "/subscriptions/{subscriptionId}/providers/Microsoft.Compute/locations/{location}/placementScores/spot/generate"
)

// ResourceSize is a VM size to score.
type ResourceSize struct {
	SKU *string `json:"sku,omitempty"`
}

// SpotPlacementScoresInput is the request body of SpotPlacementClient.Generate.
type SpotPlacementScoresInput struct {
	DesiredLocations  []*string       `json:"desiredLocations,omitempty"`
	DesiredSizes      []*ResourceSize `json:"desiredSizes,omitempty"`
	DesiredCount      *int32          `json:"desiredCount,omitempty"`
	AvailabilityZones *bool           `json:"availabilityZones,omitempty"`
}

// PlacementScore is the score for one size in one region, and zone when zonal.
type PlacementScore struct {
	SKU              *string `json:"sku,omitempty"`
	Region           *string `json:"region,omitempty"`
	AvailabilityZone *string `json:"availabilityZone,omitempty"`
	Score            *string `json:"score,omitempty"`
	IsQuotaAvailable *bool   `json:"isQuotaAvailable,omitempty"`
}

// SpotPlacementScoresResponse echoes the input together with the computed scores.
type SpotPlacementScoresResponse struct {
	DesiredLocations  []*string         `json:"desiredLocations,omitempty"`
	DesiredSizes      []*ResourceSize   `json:"desiredSizes,omitempty"`
	DesiredCount      *int32            `json:"desiredCount,omitempty"`
	AvailabilityZones *bool             `json:"availabilityZones,omitempty"`
	PlacementScores   []*PlacementScore `json:"placementScores,omitempty"`
}

// SpotPlacementClient generates spot VM placement scores.
type SpotPlacementClient struct {
	subscriptionID string
	apiVersion     string
	lro            lro.LROClient
}

// NewSpotPlacementClient creates a SpotPlacementClient. An empty apiVersion
// selects DefaultComputeDiagnosticAPIVersion.
func NewSpotPlacementClient(subscriptionID string, apiVersion string, client lro.LROClient) (*SpotPlacementClient, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscriptionID cannot be empty")
	}
	if client == nil {
		return nil, fmt.Errorf("operation client is required")
	}
	if apiVersion == "" {
		apiVersion = DefaultComputeDiagnosticAPIVersion
	}
	return &SpotPlacementClient{subscriptionID: subscriptionID, apiVersion: apiVersion, lro: client}, nil
}

// Generate computes placement scores for the desired sizes across the desired
// locations. location is the region the request is evaluated in.
func (c *SpotPlacementClient) Generate(ctx context.Context, location string, input SpotPlacementScoresInput) (*SpotPlacementScoresResponse, error) {
	if len(input.DesiredLocations) == 0 {
		return nil, fmt.Errorf("at least one desired location is required")
	}
	if len(input.DesiredSizes) == 0 {
		return nil, fmt.Errorf("at least one desired size is required")
	}

	req, err := lro.NewRequest(http.MethodPost, spotPlacementScoresPath, map[string]string{
		"subscriptionId": c.subscriptionID,
		"location":       location,
	}, c.apiVersion, input, lro.WithAcceptedCodes(http.StatusOK))
	if err != nil {
		return nil, err
	}

	p, err := c.lro.Submit(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	if !p.Done() {
		if p, err = c.lro.WaitForCompletion(ctx, p, 0); err != nil {
			return nil, err
		}
	}

	resp, err := lro.ResultAs[SpotPlacementScoresResponse](ctx, c.lro, p)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
