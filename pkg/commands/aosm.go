// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"github.com/platform-engineering-labs/azext/pkg/imageregistry"
	"github.com/spf13/cobra"
)

func newAOSMCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aosm",
		Short: "Azure Operator Service Manager artifact helpers",
	}

	var (
		sources []string
		image   string
		version string
	)
	find := &cobra.Command{
		Use:   "find-image",
		Short: "Find the first source registry that holds an image version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts := &imageregistry.Options{}
			if needsAzureCredential(sources) {
				cred, err := app.newCredential(ctx, app.cfg)
				if err != nil {
					return err
				}
				opts.Credential = cred
			}

			handler, err := imageregistry.NewHandler(sources, opts)
			if err != nil {
				return err
			}
			r, namespace, err := handler.FindRegistryForImage(ctx, image, version)
			if err != nil {
				return err
			}
			logger(cmd).Info("Image found", "registry", r.Name(), "image", image, "version", version)

			out := map[string]string{"namespace": namespace}
			for k, v := range r.ToDict() {
				out[k] = v
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	find.Flags().StringSliceVar(&sources, "source", nil, "registry host or host/namespace to search, in order")
	find.Flags().StringVar(&image, "image", "", "image name")
	find.Flags().StringVar(&version, "version", "", "image tag")
	_ = find.MarkFlagRequired("source")
	_ = find.MarkFlagRequired("image")
	_ = find.MarkFlagRequired("version")

	cmd.AddCommand(find)
	return cmd
}

func needsAzureCredential(sources []string) bool {
	for _, source := range sources {
		host, _ := imageregistry.SplitSource(source)
		if imageregistry.IsACRHost(host) {
			return true
		}
	}
	return false
}
