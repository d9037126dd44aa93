// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/platform-engineering-labs/azext/pkg/logging"
)

// RequiredProviders are the resource provider namespaces Azure Monitor
// metrics needs in the cluster's subscription, in registration order.
var RequiredProviders = []string{
	"microsoft.insights",
	"microsoft.alertsmanagement",
	"microsoft.monitor",
	"microsoft.dashboard",
}

const registeredState = "registered"

// ProvidersAPI is the subset of armresources.ProvidersClient used here.
type ProvidersAPI interface {
	NewListPager(options *armresources.ProvidersClientListOptions) *runtime.Pager[armresources.ProvidersClientListResponse]
	Register(ctx context.Context, resourceProviderNamespace string, options *armresources.ProvidersClientRegisterOptions) (armresources.ProvidersClientRegisterResponse, error)
}

var _ ProvidersAPI = (*armresources.ProvidersClient)(nil)

// RegisterProviders registers every namespace in RequiredProviders that is
// not already registered and returns the namespaces it registered. The
// provider list is read once. A list or register failure stops the pass;
// namespaces registered before the failure stay registered.
func RegisterProviders(ctx context.Context, api ProvidersAPI) ([]string, error) {
	log := logging.LoggerFromContext(ctx)

	registered, err := registeredProviders(ctx, api)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, namespace := range RequiredProviders {
		if registered[namespace] {
			log.V(1).Info("Resource provider already registered", "namespace", namespace)
			continue
		}
		log.Info("Registering resource provider", "namespace", namespace)
		if _, err := api.Register(ctx, namespace, nil); err != nil {
			return done, fmt.Errorf("failed to register resource provider %s: %w", namespace, err)
		}
		done = append(done, namespace)
	}
	return done, nil
}

// registeredProviders returns the lowercase namespaces whose registration
// state is Registered.
func registeredProviders(ctx context.Context, api ProvidersAPI) (map[string]bool, error) {
	registered := make(map[string]bool)
	pager := api.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list resource providers: %w", err)
		}
		for _, p := range page.Value {
			if p == nil || p.Namespace == nil || p.RegistrationState == nil {
				continue
			}
			if strings.EqualFold(*p.RegistrationState, registeredState) {
				registered[strings.ToLower(*p.Namespace)] = true
			}
		}
	}
	return registered, nil
}
