// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/platform-engineering-labs/azext/pkg/lro"
	"github.com/platform-engineering-labs/azext/pkg/operations"
	"github.com/spf13/cobra"
)

// operationStatus is the printed form of an operation handle.
type operationStatus struct {
	ID          string          `json:"id"`
	Status      lro.Status      `json:"status"`
	Strategy    lro.Strategy    `json:"strategy"`
	PollCount   int             `json:"pollCount"`
	PollURL     string          `json:"pollUrl,omitempty"`
	NextPollAt  *time.Time      `json:"nextPollAt,omitempty"`
	ResumeToken string          `json:"resumeToken,omitempty"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

func describe(p *lro.Poller) (operationStatus, error) {
	s := operationStatus{
		ID:        p.ID(),
		Status:    p.Status(),
		Strategy:  p.Strategy(),
		PollCount: p.PollCount(),
		PollURL:   p.PollURL(),
	}
	if !p.Done() {
		next := p.NextPollAt()
		s.NextPollAt = &next
		token, err := p.ResumeToken()
		if err != nil {
			return s, err
		}
		s.ResumeToken = token
	}
	if e := p.LastError(); e != nil {
		s.Error = e.String()
	}
	return s, nil
}

// finish waits for p unless noWait is set and prints the outcome. A wait that
// times out still prints the handle so the resume token is not lost.
func finish(cmd *cobra.Command, client lro.LROClient, p *lro.Poller, noWait bool, timeout time.Duration) error {
	ctx := cmd.Context()
	if !noWait && !p.Done() {
		done, err := client.WaitForCompletion(ctx, p, timeout)
		if err != nil {
			if done != nil {
				if s, derr := describe(done); derr == nil {
					_ = printJSON(cmd.OutOrStdout(), s)
				}
			}
			return err
		}
		p = done
	}

	s, err := describe(p)
	if err != nil {
		return err
	}
	var failure error
	if p.Done() {
		result, err := client.Result(ctx, p)
		if err != nil && p.Status() == lro.StatusSucceeded {
			return err
		}
		s.Result, failure = result, err
	}
	if err := printJSON(cmd.OutOrStdout(), s); err != nil {
		return err
	}
	return failure
}

func newOperationCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operation",
		Short: "Inspect and wait on long-running operations by resume token",
	}

	resumed := func(ctx context.Context, token string) (lro.LROClient, *lro.Poller, error) {
		azure, err := app.azure(ctx)
		if err != nil {
			return nil, nil, err
		}
		client, err := azure.LRO("")
		if err != nil {
			return nil, nil, err
		}
		p, err := client.Resume(token)
		if err != nil {
			return nil, nil, err
		}
		return client, p, nil
	}

	var showToken string
	show := &cobra.Command{
		Use:   "show",
		Short: "Poll an operation once and print its state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, p, err := resumed(cmd.Context(), showToken)
			if err != nil {
				return err
			}
			if !p.Done() {
				if p, err = client.Poll(cmd.Context(), p); err != nil {
					return err
				}
			}
			return finish(cmd, client, p, true, 0)
		},
	}
	show.Flags().StringVar(&showToken, "token", "", "resume token")
	_ = show.MarkFlagRequired("token")

	var waitToken string
	var timeout time.Duration
	wait := &cobra.Command{
		Use:   "wait",
		Short: "Wait for an operation to finish and print its result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, p, err := resumed(cmd.Context(), waitToken)
			if err != nil {
				return err
			}
			return finish(cmd, client, p, false, timeout)
		},
	}
	wait.Flags().StringVar(&waitToken, "token", "", "resume token")
	wait.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits indefinitely)")
	_ = wait.MarkFlagRequired("token")

	cmd.AddCommand(show, wait)
	return cmd
}

func newVMwareCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vmware",
		Short: "Arc-enabled VMware vSphere virtual machines",
	}

	var (
		resourceGroup string
		vmName        string
		targets       []string
		noWait        bool
		timeout       time.Duration
	)
	upgrade := &cobra.Command{
		Use:   "upgrade-extensions",
		Short: "Upgrade machine extensions of a virtual machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			request, err := extensionUpgrade(targets)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			azure, err := app.azure(ctx)
			if err != nil {
				return err
			}
			apiVersion := app.cfg.APIVersions.ConnectedVMware
			client, err := azure.LRO(apiVersion)
			if err != nil {
				return err
			}
			vmware, err := operations.NewVMwareClient(azure.SubscriptionID(), apiVersion, client)
			if err != nil {
				return err
			}
			p, err := vmware.BeginUpgradeExtensions(ctx, resourceGroup, vmName, request, nil)
			if err != nil {
				return err
			}
			logger(cmd).Info("Extension upgrade started", "operationID", p.ID(), "virtualMachine", vmName)
			return finish(cmd, client, p, noWait, timeout)
		},
	}
	upgrade.Flags().StringVarP(&resourceGroup, "resource-group", "g", "", "resource group of the virtual machine")
	upgrade.Flags().StringVarP(&vmName, "name", "n", "", "virtual machine name")
	upgrade.Flags().StringArrayVar(&targets, "target", nil, "extension=version to upgrade to, repeatable")
	upgrade.Flags().BoolVar(&noWait, "no-wait", false, "print a resume token instead of waiting")
	upgrade.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting after this long (0 waits indefinitely)")
	_ = upgrade.MarkFlagRequired("resource-group")
	_ = upgrade.MarkFlagRequired("name")
	_ = upgrade.MarkFlagRequired("target")

	cmd.AddCommand(upgrade)
	return cmd
}

// extensionUpgrade parses "extension=version" items.
func extensionUpgrade(targets []string) (operations.MachineExtensionUpgrade, error) {
	upgrade := operations.MachineExtensionUpgrade{
		ExtensionTargets: make(map[string]*operations.ExtensionTargetProperties, len(targets)),
	}
	for _, t := range targets {
		name, version, ok := strings.Cut(t, "=")
		if !ok || name == "" || version == "" {
			return upgrade, fmt.Errorf("invalid --target %q: expected extension=version", t)
		}
		upgrade.ExtensionTargets[name] = &operations.ExtensionTargetProperties{TargetVersion: to.Ptr(version)}
	}
	return upgrade, nil
}

func newSpotPlacementCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spot-placement",
		Short: "Spot VM placement scores",
	}

	var (
		location          string
		desiredLocations  []string
		desiredSizes      []string
		desiredCount      int32
		availabilityZones bool
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Score spot VM sizes across regions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			azure, err := app.azure(ctx)
			if err != nil {
				return err
			}
			apiVersion := app.cfg.APIVersions.ComputeDiagnostic
			client, err := azure.LRO(apiVersion)
			if err != nil {
				return err
			}
			spot, err := operations.NewSpotPlacementClient(azure.SubscriptionID(), apiVersion, client)
			if err != nil {
				return err
			}

			input := operations.SpotPlacementScoresInput{
				DesiredLocations: to.SliceOfPtrs(desiredLocations...),
			}
			for _, size := range desiredSizes {
				input.DesiredSizes = append(input.DesiredSizes, &operations.ResourceSize{SKU: to.Ptr(size)})
			}
			if cmd.Flags().Changed("desired-count") {
				input.DesiredCount = to.Ptr(desiredCount)
			}
			if cmd.Flags().Changed("availability-zones") {
				input.AvailabilityZones = to.Ptr(availabilityZones)
			}

			resp, err := spot.Generate(ctx, location, input)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	generate.Flags().StringVarP(&location, "location", "l", "", "region the request is evaluated in")
	generate.Flags().StringSliceVar(&desiredLocations, "desired-locations", nil, "regions to score")
	generate.Flags().StringSliceVar(&desiredSizes, "desired-sizes", nil, "VM sizes to score")
	generate.Flags().Int32Var(&desiredCount, "desired-count", 1, "number of spot VMs wanted")
	generate.Flags().BoolVar(&availabilityZones, "availability-zones", false, "score per availability zone")
	_ = generate.MarkFlagRequired("location")
	_ = generate.MarkFlagRequired("desired-locations")
	_ = generate.MarkFlagRequired("desired-sizes")

	cmd.AddCommand(generate)
	return cmd
}
