// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package operations

import (
	"context"
	"fmt"
	"net/http"

	"github.com/platform-engineering-labs/azext/pkg/logging"
	"github.com/platform-engineering-labs/azext/pkg/lro"
)

const (
	// DefaultVMwareAPIVersion is the Microsoft.ConnectedVMwarevSphere version upgradeExtensions was published in.
	DefaultVMwareAPIVersion = "2023-03-01-preview"

	upgradeExtensionsPath = "/subscriptions/{subscriptionId}/resourceGroups/{resourceGroupName}/providers/Microsoft.ConnectedVMwarevSphere/virtualMachines/{virtualMachineName}/upgradeExtensions"
)

// MachineExtensionUpgrade describes the extension upgrades to apply to a machine.
type MachineExtensionUpgrade struct {
	// ExtensionTargets maps an extension name to its target version.
	ExtensionTargets map[string]*ExtensionTargetProperties `json:"extensionTargets,omitempty"`
}

// ExtensionTargetProperties describes the target version of one extension.
type ExtensionTargetProperties struct {
	TargetVersion *string `json:"targetVersion,omitempty"`
}

// VMwareClient issues operations against Arc-enabled VMware vSphere machines.
type VMwareClient struct {
	subscriptionID string
	apiVersion     string
	lro            lro.LROClient
}

// NewVMwareClient creates a VMwareClient. An empty apiVersion selects DefaultVMwareAPIVersion.
func NewVMwareClient(subscriptionID string, apiVersion string, client lro.LROClient) (*VMwareClient, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscriptionID cannot be empty")
	}
	if client == nil {
		return nil, fmt.Errorf("operation client is required")
	}
	if apiVersion == "" {
		apiVersion = DefaultVMwareAPIVersion
	}
	return &VMwareClient{subscriptionID: subscriptionID, apiVersion: apiVersion, lro: client}, nil
}

// BeginUpgradeExtensionsOptions contains the optional parameters for VMwareClient.BeginUpgradeExtensions.
type BeginUpgradeExtensionsOptions struct {
	// ResumeToken resumes an earlier call instead of sending a new request.
	ResumeToken string
	// DisablePolling returns a completed handle built from the initial response.
	DisablePolling bool
}

// BeginUpgradeExtensions starts upgrading the extensions of a machine. The
// returned handle is driven with the LRO client's Poll or WaitForCompletion.
func (c *VMwareClient) BeginUpgradeExtensions(ctx context.Context, resourceGroupName string, virtualMachineName string, upgrade MachineExtensionUpgrade, options *BeginUpgradeExtensionsOptions) (*lro.Poller, error) {
	if options == nil {
		options = &BeginUpgradeExtensionsOptions{}
	}
	log := logging.LoggerFromContext(ctx)

	if options.ResumeToken != "" {
		log.V(1).Info("Resuming extension upgrade", "virtualMachine", virtualMachineName)
		return c.lro.Resume(options.ResumeToken)
	}

	req, err := lro.NewRequest(http.MethodPost, upgradeExtensionsPath, map[string]string{
		"subscriptionId":     c.subscriptionID,
		"resourceGroupName":  resourceGroupName,
		"virtualMachineName": virtualMachineName,
	}, c.apiVersion, upgrade,
		lro.WithAcceptedCodes(http.StatusOK, http.StatusAccepted),
		lro.WithFinalStateVia(lro.FinalStateViaLocation),
	)
	if err != nil {
		return nil, err
	}

	log.Info("Upgrading machine extensions",
		"resourceGroup", resourceGroupName,
		"virtualMachine", virtualMachineName,
		"extensions", len(upgrade.ExtensionTargets))
	return c.lro.Submit(ctx, req, &lro.SubmitOptions{DisablePolling: options.DisablePolling})
}
