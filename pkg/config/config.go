// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/spf13/viper"
)

// Viper keys. Environment variables use the AZEXT_ prefix with dashes
// replaced by underscores, e.g. AZEXT_SUBSCRIPTION_ID.
const (
	KeySubscriptionID          = "subscription-id"
	KeyCloud                   = "cloud"
	KeyResourceManagerEndpoint = "resource-manager-endpoint"
	KeyPollInterval            = "poll-interval"
	KeyAPIVersionVMware        = "api-versions.connected-vmware"
	KeyAPIVersionDiagnostic    = "api-versions.compute-diagnostic"
	KeyVerbose                 = "verbose"

	EnvPrefix = "AZEXT"
)

const (
	CloudAzurePublic     = "AzurePublic"
	CloudAzureChina      = "AzureChina"
	CloudAzureGovernment = "AzureGovernment"

	DefaultPollInterval = 30 * time.Second
)

// APIVersions holds the service API versions used by the raw operation
// clients. The typed SDK clients carry their own versions.
type APIVersions struct {
	ConnectedVMware   string
	ComputeDiagnostic string
}

// DefaultAPIVersions returns the versions the operation wrappers were built against.
func DefaultAPIVersions() APIVersions {
	return APIVersions{
		ConnectedVMware:   "2023-03-01-preview",
		ComputeDiagnostic: "2024-06-01-preview",
	}
}

// Config holds Azure-specific configuration for a CLI invocation. It is built
// once at startup and passed by pointer; nothing mutates it afterwards.
type Config struct {
	SubscriptionID string
	Cloud          string
	// ResourceManagerEndpoint overrides the endpoint of the selected cloud.
	ResourceManagerEndpoint string
	PollInterval            time.Duration
	APIVersions             APIVersions
	Verbose                 bool
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	defaults := DefaultAPIVersions()
	v.SetDefault(KeyCloud, CloudAzurePublic)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyAPIVersionVMware, defaults.ConnectedVMware)
	v.SetDefault(KeyAPIVersionDiagnostic, defaults.ComputeDiagnostic)
}

// FromViper extracts configuration from a populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, fmt.Errorf("viper instance is nil")
	}

	cfg := &Config{
		SubscriptionID:          strings.TrimSpace(v.GetString(KeySubscriptionID)),
		Cloud:                   v.GetString(KeyCloud),
		ResourceManagerEndpoint: strings.TrimRight(v.GetString(KeyResourceManagerEndpoint), "/"),
		PollInterval:            v.GetDuration(KeyPollInterval),
		APIVersions: APIVersions{
			ConnectedVMware:   v.GetString(KeyAPIVersionVMware),
			ComputeDiagnostic: v.GetString(KeyAPIVersionDiagnostic),
		},
		Verbose: v.GetBool(KeyVerbose),
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %s", KeyPollInterval, cfg.PollInterval)
	}
	if _, err := cfg.cloudConfiguration(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireSubscription returns an error when no subscription is configured.
func (c *Config) RequireSubscription() error {
	if c.SubscriptionID == "" {
		return fmt.Errorf("subscription is required: pass --subscription or set %s_SUBSCRIPTION_ID", EnvPrefix)
	}
	return nil
}

// Endpoint returns the resource manager endpoint without a trailing slash.
func (c *Config) Endpoint() string {
	if c.ResourceManagerEndpoint != "" {
		return c.ResourceManagerEndpoint
	}
	cc, err := c.cloudConfiguration()
	if err != nil {
		cc = cloud.AzurePublic
	}
	return strings.TrimRight(cc.Services[cloud.ResourceManager].Endpoint, "/")
}

func (c *Config) cloudConfiguration() (cloud.Configuration, error) {
	switch strings.ToLower(c.Cloud) {
	case "", strings.ToLower(CloudAzurePublic):
		return cloud.AzurePublic, nil
	case strings.ToLower(CloudAzureChina):
		return cloud.AzureChina, nil
	case strings.ToLower(CloudAzureGovernment):
		return cloud.AzureGovernment, nil
	default:
		return cloud.Configuration{}, fmt.Errorf("unknown cloud %q: expected one of %s, %s, %s",
			c.Cloud, CloudAzurePublic, CloudAzureChina, CloudAzureGovernment)
	}
}

// ClientOptions returns ARM client options targeting the configured cloud.
func (c *Config) ClientOptions() *arm.ClientOptions {
	cc, err := c.cloudConfiguration()
	if err != nil {
		cc = cloud.AzurePublic
	}
	if c.ResourceManagerEndpoint != "" {
		rm := cc.Services[cloud.ResourceManager]
		rm.Endpoint = c.ResourceManagerEndpoint
		services := make(map[cloud.ServiceName]cloud.ServiceConfiguration, len(cc.Services))
		for name, svc := range cc.Services {
			services[name] = svc
		}
		services[cloud.ResourceManager] = rm
		cc.Services = services
	}
	return &arm.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Cloud: cc,
		},
	}
}

// ToAzureCredential creates Azure credentials using the default credential chain.
// This uses DefaultAzureCredential which tries multiple authentication methods:
// - Environment variables (AZURE_CLIENT_ID, AZURE_CLIENT_SECRET, AZURE_TENANT_ID)
// - Managed Identity
// - Azure CLI
// - Azure PowerShell
// - etc.
func (c *Config) ToAzureCredential(ctx context.Context) (azcore.TokenCredential, error) {
	cc, err := c.cloudConfiguration()
	if err != nil {
		return nil, err
	}
	return azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		ClientOptions: policy.ClientOptions{Cloud: cc},
	})
}
