// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"fmt"

	"github.com/platform-engineering-labs/azext/pkg/monitor"
	"github.com/platform-engineering-labs/azext/pkg/resourceid"
	"github.com/spf13/cobra"
)

func newMonitorCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Azure Monitor prerequisites for managed clusters",
	}
	cmd.AddCommand(newRegisterProvidersCommand(app), newMetricsEnabledCommand(app))
	return cmd
}

func newRegisterProvidersCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "register-providers",
		Short: "Register the resource providers Azure Monitor metrics depends on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			azure, err := app.azure(ctx)
			if err != nil {
				return err
			}
			registered, err := monitor.RegisterProviders(ctx, azure.Providers())
			if err != nil {
				return err
			}
			if registered == nil {
				registered = []string{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"registered": registered})
		},
	}
}

func newMetricsEnabledCommand(app *App) *cobra.Command {
	var clusterID, resourceGroup, name string
	cmd := &cobra.Command{
		Use:   "metrics-enabled",
		Short: "Report whether Azure Monitor metrics are enabled on a managed cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			azure, err := app.azure(ctx)
			if err != nil {
				return err
			}

			var enabled bool
			if clusterID != "" {
				subscriptionID := resourceid.Split(monitor.SanitizeResourceID(clusterID))["subscriptions"]
				api, err := azure.ManagedClusters(subscriptionID)
				if err != nil {
					return err
				}
				enabled, err = monitor.MetricsEnabledForID(ctx, api, clusterID)
				if err != nil {
					return err
				}
			} else {
				if resourceGroup == "" || name == "" {
					return fmt.Errorf("either --cluster-id or both --resource-group and --name are required")
				}
				api, err := azure.ManagedClusters(azure.SubscriptionID())
				if err != nil {
					return err
				}
				enabled, err = monitor.MetricsEnabled(ctx, api, resourceGroup, name)
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]bool{"metricsEnabled": enabled})
		},
	}
	cmd.Flags().StringVar(&clusterID, "cluster-id", "", "managed cluster resource ID")
	cmd.Flags().StringVarP(&resourceGroup, "resource-group", "g", "", "resource group of the cluster")
	cmd.Flags().StringVarP(&name, "name", "n", "", "cluster name")
	cmd.MarkFlagsMutuallyExclusive("cluster-id", "resource-group")
	cmd.MarkFlagsMutuallyExclusive("cluster-id", "name")
	return cmd
}
