// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProviders struct {
	pages       [][]*armresources.Provider
	listErr     error
	registerErr map[string]error
	registered  []string
}

func (f *fakeProviders) NewListPager(*armresources.ProvidersClientListOptions) *runtime.Pager[armresources.ProvidersClientListResponse] {
	current := 0
	return runtime.NewPager(runtime.PagingHandler[armresources.ProvidersClientListResponse]{
		More: func(armresources.ProvidersClientListResponse) bool {
			return current < len(f.pages)
		},
		Fetcher: func(context.Context, *armresources.ProvidersClientListResponse) (armresources.ProvidersClientListResponse, error) {
			if f.listErr != nil {
				return armresources.ProvidersClientListResponse{}, f.listErr
			}
			page := f.pages[current]
			current++
			return armresources.ProvidersClientListResponse{
				ProviderListResult: armresources.ProviderListResult{Value: page},
			}, nil
		},
	})
}

func (f *fakeProviders) Register(_ context.Context, namespace string, _ *armresources.ProvidersClientRegisterOptions) (armresources.ProvidersClientRegisterResponse, error) {
	if err := f.registerErr[namespace]; err != nil {
		return armresources.ProvidersClientRegisterResponse{}, err
	}
	f.registered = append(f.registered, namespace)
	return armresources.ProvidersClientRegisterResponse{}, nil
}

func provider(namespace, state string) *armresources.Provider {
	return &armresources.Provider{Namespace: to.Ptr(namespace), RegistrationState: to.Ptr(state)}
}

func TestRegisterProviders_RegistersOnlyMissing(t *testing.T) {
	api := &fakeProviders{pages: [][]*armresources.Provider{
		{provider("Microsoft.Insights", "Registered"), provider("Microsoft.Compute", "Registered")},
		{provider("Microsoft.AlertsManagement", "registered"), provider("Microsoft.Monitor", "NotRegistered")},
		{provider("Microsoft.Dashboard", "Registering"), nil, {Namespace: to.Ptr("Microsoft.Broken")}},
	}}

	done, err := RegisterProviders(context.Background(), api)
	require.NoError(t, err)
	assert.Equal(t, []string{"microsoft.monitor", "microsoft.dashboard"}, done)
	assert.Equal(t, done, api.registered)
}

func TestRegisterProviders_EachNamespaceJudgedOnItsOwn(t *testing.T) {
	// alertsmanagement being registered must not make monitor or dashboard look registered
	api := &fakeProviders{pages: [][]*armresources.Provider{
		{provider("microsoft.alertsmanagement", "Registered")},
	}}

	done, err := RegisterProviders(context.Background(), api)
	require.NoError(t, err)
	assert.Equal(t, []string{"microsoft.insights", "microsoft.monitor", "microsoft.dashboard"}, done)
}

func TestRegisterProviders_AllRegistered(t *testing.T) {
	var page []*armresources.Provider
	for _, ns := range RequiredProviders {
		page = append(page, provider(ns, "Registered"))
	}
	api := &fakeProviders{pages: [][]*armresources.Provider{page}}

	done, err := RegisterProviders(context.Background(), api)
	require.NoError(t, err)
	assert.Empty(t, done)
	assert.Empty(t, api.registered)
}

func TestRegisterProviders_ListFailureAborts(t *testing.T) {
	listErr := errors.New("connection reset")
	api := &fakeProviders{pages: [][]*armresources.Provider{{}}, listErr: listErr}

	done, err := RegisterProviders(context.Background(), api)
	assert.ErrorIs(t, err, listErr)
	assert.Nil(t, done)
	assert.Empty(t, api.registered)
}

func TestRegisterProviders_RegisterFailureAborts(t *testing.T) {
	regErr := errors.New("AuthorizationFailed")
	api := &fakeProviders{
		pages:       [][]*armresources.Provider{{}},
		registerErr: map[string]error{"microsoft.alertsmanagement": regErr},
	}

	done, err := RegisterProviders(context.Background(), api)
	assert.ErrorIs(t, err, regErr)
	assert.ErrorContains(t, err, "microsoft.alertsmanagement")
	assert.Equal(t, []string{"microsoft.insights"}, done)
	assert.Equal(t, []string{"microsoft.insights"}, api.registered)
}

type fakeClusters struct {
	cluster armcontainerservice.ManagedCluster
	err     error
	gotRG   string
	gotName string
}

func (f *fakeClusters) Get(_ context.Context, resourceGroupName string, resourceName string, _ *armcontainerservice.ManagedClustersClientGetOptions) (armcontainerservice.ManagedClustersClientGetResponse, error) {
	f.gotRG, f.gotName = resourceGroupName, resourceName
	if f.err != nil {
		return armcontainerservice.ManagedClustersClientGetResponse{}, f.err
	}
	return armcontainerservice.ManagedClustersClientGetResponse{ManagedCluster: f.cluster}, nil
}

func TestMetricsEnabled(t *testing.T) {
	tests := []struct {
		name    string
		cluster armcontainerservice.ManagedCluster
		want    bool
	}{
		{name: "no properties", cluster: armcontainerservice.ManagedCluster{}},
		{name: "no monitor profile", cluster: armcontainerservice.ManagedCluster{
			Properties: &armcontainerservice.ManagedClusterProperties{},
		}},
		{name: "no metrics", cluster: armcontainerservice.ManagedCluster{
			Properties: &armcontainerservice.ManagedClusterProperties{
				AzureMonitorProfile: &armcontainerservice.ManagedClusterAzureMonitorProfile{},
			},
		}},
		{name: "enabled unset", cluster: armcontainerservice.ManagedCluster{
			Properties: &armcontainerservice.ManagedClusterProperties{
				AzureMonitorProfile: &armcontainerservice.ManagedClusterAzureMonitorProfile{
					Metrics: &armcontainerservice.ManagedClusterAzureMonitorProfileMetrics{},
				},
			},
		}},
		{name: "disabled", cluster: armcontainerservice.ManagedCluster{
			Properties: &armcontainerservice.ManagedClusterProperties{
				AzureMonitorProfile: &armcontainerservice.ManagedClusterAzureMonitorProfile{
					Metrics: &armcontainerservice.ManagedClusterAzureMonitorProfileMetrics{Enabled: to.Ptr(false)},
				},
			},
		}},
		{name: "enabled", want: true, cluster: armcontainerservice.ManagedCluster{
			Properties: &armcontainerservice.ManagedClusterProperties{
				AzureMonitorProfile: &armcontainerservice.ManagedClusterAzureMonitorProfile{
					Metrics: &armcontainerservice.ManagedClusterAzureMonitorProfileMetrics{Enabled: to.Ptr(true)},
				},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeClusters{cluster: tt.cluster}
			got, err := MetricsEnabled(context.Background(), api, "rg", "aks")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetricsEnabled_FetchError(t *testing.T) {
	fetchErr := errors.New("ResourceNotFound")
	api := &fakeClusters{err: fetchErr}

	got, err := MetricsEnabled(context.Background(), api, "rg", "aks")
	assert.ErrorIs(t, err, fetchErr)
	assert.False(t, got)
}

func TestMetricsEnabledForID(t *testing.T) {
	api := &fakeClusters{}
	_, err := MetricsEnabledForID(context.Background(), api,
		" subscriptions/SUB/resourceGroups/My-RG/providers/Microsoft.ContainerService/managedClusters/AKS-1/ ")
	require.NoError(t, err)
	assert.Equal(t, "my-rg", api.gotRG)
	assert.Equal(t, "aks-1", api.gotName)

	_, err = MetricsEnabledForID(context.Background(), api, "/subscriptions/sub/resourceGroups/rg")
	assert.Error(t, err)
}

func TestSanitizeResourceID(t *testing.T) {
	assert.Equal(t, "/subscriptions/abc/resourcegroups/rg", SanitizeResourceID("  Subscriptions/ABC/resourceGroups/RG/ "))
}
