// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mitchellh/go-homedir"
	"github.com/platform-engineering-labs/azext/pkg/config"
	"github.com/platform-engineering-labs/azext/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfigName = ".azext"

// App holds the state shared by the command tree of one invocation.
type App struct {
	viper         *viper.Viper
	cfgFile       string
	cfg           *config.Config
	newServices   ServicesFactory
	newCredential CredentialFactory
	services      Services
}

// Option customizes an App.
type Option func(*App)

// WithServices replaces the Azure client factory.
func WithServices(f ServicesFactory) Option {
	return func(a *App) { a.newServices = f }
}

// WithCredential replaces the credential factory used by registry lookups.
func WithCredential(f CredentialFactory) Option {
	return func(a *App) { a.newCredential = f }
}

// NewRootCommand builds the azext command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	app := &App{
		viper:         viper.New(),
		newServices:   newAzureServices,
		newCredential: newAzureCredential,
	}
	for _, opt := range opts {
		opt(app)
	}
	config.SetDefaults(app.viper)

	root := &cobra.Command{
		Use:   "azext",
		Short: "Azure extension commands",
		Long: `azext drives Azure management operations that the typed SDKs do not cover:
long-running operation polling, monitoring prerequisites, load test argument
validation and container image lookup.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.initialize,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.cfgFile, "config", "", "config file (default is $HOME/.azext.yaml)")
	flags.String("subscription", "", "Azure subscription ID")
	flags.String(config.KeyCloud, config.CloudAzurePublic, "Azure cloud: AzurePublic, AzureChina or AzureGovernment")
	flags.String(config.KeyResourceManagerEndpoint, "", "override the resource manager endpoint")
	flags.Duration(config.KeyPollInterval, config.DefaultPollInterval, "default interval between operation status polls")
	flags.BoolP(config.KeyVerbose, "v", false, "enable verbose logging")

	_ = app.viper.BindPFlag(config.KeySubscriptionID, flags.Lookup("subscription"))
	for _, key := range []string{config.KeyCloud, config.KeyResourceManagerEndpoint, config.KeyPollInterval, config.KeyVerbose} {
		_ = app.viper.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(
		newMonitorCommand(app),
		newVMwareCommand(app),
		newOperationCommand(app),
		newSpotPlacementCommand(app),
		newLoadCommand(app),
		newAOSMCommand(app),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initialize reads configuration and attaches the logger to the command context.
func (a *App) initialize(cmd *cobra.Command, _ []string) error {
	if err := a.readConfig(); err != nil {
		return err
	}
	cfg, err := config.FromViper(a.viper)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.ContextWithLogger(ctx, log.WithName("azext")))
	return nil
}

// readConfig loads the config file and AZEXT_ environment variables.
func (a *App) readConfig() error {
	v := a.viper
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", a.cfgFile, err)
		}
		return nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigType("yaml")
	v.SetConfigName(defaultConfigName)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", filepath.Join(home, defaultConfigName+".yaml"), err)
	}
	return nil
}

// azure returns the Azure services, creating them on first use.
func (a *App) azure(ctx context.Context) (Services, error) {
	if a.services != nil {
		return a.services, nil
	}
	s, err := a.newServices(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.services = s
	return s, nil
}

func logger(cmd *cobra.Command) logr.Logger {
	return logging.LoggerFromContext(cmd.Context())
}

// printJSON writes v to the command output as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
