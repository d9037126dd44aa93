// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerservice/armcontainerservice/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/google/go-containerregistry/pkg/name"
	ggcrregistry "github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/mitchellh/go-homedir"
	"github.com/platform-engineering-labs/azext/pkg/config"
	"github.com/platform-engineering-labs/azext/pkg/imageregistry"
	"github.com/platform-engineering-labs/azext/pkg/lro"
	"github.com/platform-engineering-labs/azext/pkg/monitor"
	"github.com/platform-engineering-labs/azext/pkg/operations"
	"github.com/platform-engineering-labs/azext/pkg/validators"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEndpoint     = "https://management.example.test"
	testSubscription = "00000000-0000-0000-0000-000000000001"
)

// ExecuteCommand runs root with args and returns what it printed.
func ExecuteCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err := root.ExecuteC()
	return buf.String(), err
}

// isolate keeps the user's config file and environment out of a test.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DOCKER_CONFIG", filepath.Join(home, ".docker"))
	t.Setenv("AZEXT_SUBSCRIPTION_ID", "")
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })
}

// routeTransport answers lro requests by "METHOD /path". The last response of
// a route repeats once its queue is drained.
type routeTransport struct {
	mu     sync.Mutex
	routes map[string][]*lro.Response
	bodies map[string][]byte
}

func newRouteTransport() *routeTransport {
	return &routeTransport{routes: map[string][]*lro.Response{}, bodies: map[string][]byte{}}
}

func (rt *routeTransport) on(method, path string, responses ...*lro.Response) {
	rt.routes[method+" "+path] = append(rt.routes[method+" "+path], responses...)
}

func (rt *routeTransport) Send(_ context.Context, method, rawURL string, _ http.Header, body []byte) (*lro.Response, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	key := method + " " + u.Path
	rt.bodies[key] = body
	queue := rt.routes[key]
	if len(queue) == 0 {
		return &lro.Response{StatusCode: http.StatusNotFound, Header: http.Header{}}, nil
	}
	if len(queue) > 1 {
		rt.routes[key] = queue[1:]
	}
	resp := queue[0]
	return &lro.Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: resp.Body}, nil
}

func respond(status int, body string, headers ...string) *lro.Response {
	h := http.Header{}
	for i := 0; i+1 < len(headers); i += 2 {
		h.Set(headers[i], headers[i+1])
	}
	return &lro.Response{StatusCode: status, Header: h, Body: []byte(body)}
}

type fakeProviders struct {
	providers  []*armresources.Provider
	registered []string
}

func (f *fakeProviders) NewListPager(*armresources.ProvidersClientListOptions) *runtime.Pager[armresources.ProvidersClientListResponse] {
	done := false
	return runtime.NewPager(runtime.PagingHandler[armresources.ProvidersClientListResponse]{
		More: func(armresources.ProvidersClientListResponse) bool { return !done },
		Fetcher: func(context.Context, *armresources.ProvidersClientListResponse) (armresources.ProvidersClientListResponse, error) {
			done = true
			return armresources.ProvidersClientListResponse{
				ProviderListResult: armresources.ProviderListResult{Value: f.providers},
			}, nil
		},
	})
}

func (f *fakeProviders) Register(_ context.Context, namespace string, _ *armresources.ProvidersClientRegisterOptions) (armresources.ProvidersClientRegisterResponse, error) {
	f.registered = append(f.registered, namespace)
	return armresources.ProvidersClientRegisterResponse{}, nil
}

type fakeClusters struct {
	enabled bool
	gets    []string
}

func (f *fakeClusters) Get(_ context.Context, resourceGroupName string, resourceName string, _ *armcontainerservice.ManagedClustersClientGetOptions) (armcontainerservice.ManagedClustersClientGetResponse, error) {
	f.gets = append(f.gets, resourceGroupName+"/"+resourceName)
	return armcontainerservice.ManagedClustersClientGetResponse{ManagedCluster: armcontainerservice.ManagedCluster{
		Properties: &armcontainerservice.ManagedClusterProperties{
			AzureMonitorProfile: &armcontainerservice.ManagedClusterAzureMonitorProfile{
				Metrics: &armcontainerservice.ManagedClusterAzureMonitorProfileMetrics{Enabled: to.Ptr(f.enabled)},
			},
		},
	}}, nil
}

type fakeServices struct {
	subscriptionID string
	providers      *fakeProviders
	clusters       *fakeClusters
	transport      *routeTransport
	locations      []string

	clusterSubscriptions []string
	apiVersions          []string
	locationCalls        int
}

func (f *fakeServices) SubscriptionID() string { return f.subscriptionID }

func (f *fakeServices) Providers() monitor.ProvidersAPI { return f.providers }

func (f *fakeServices) ManagedClusters(subscriptionID string) (monitor.ManagedClustersAPI, error) {
	f.clusterSubscriptions = append(f.clusterSubscriptions, subscriptionID)
	return f.clusters, nil
}

func (f *fakeServices) LRO(apiVersion string) (lro.LROClient, error) {
	f.apiVersions = append(f.apiVersions, apiVersion)
	return lro.NewClient(f.transport, &lro.Options{
		Endpoint:     testEndpoint,
		APIVersion:   apiVersion,
		PollInterval: time.Millisecond,
	})
}

func (f *fakeServices) ListLocations(context.Context) ([]string, error) {
	f.locationCalls++
	return f.locations, nil
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		subscriptionID: testSubscription,
		providers:      &fakeProviders{},
		clusters:       &fakeClusters{},
		transport:      newRouteTransport(),
	}
}

// rootWith builds a root command whose Azure services are fake. The
// configured subscription is passed through to fake.
func rootWith(fake *fakeServices) *cobra.Command {
	return NewRootCommand(WithServices(func(_ context.Context, cfg *config.Config) (Services, error) {
		if cfg.SubscriptionID != "" {
			fake.subscriptionID = cfg.SubscriptionID
		}
		return fake, nil
	}))
}

func TestRegisterProvidersCommand(t *testing.T) {
	isolate(t)
	fake := newFakeServices()
	fake.providers.providers = []*armresources.Provider{
		{Namespace: to.Ptr("Microsoft.Insights"), RegistrationState: to.Ptr("Registered")},
		{Namespace: to.Ptr("Microsoft.AlertsManagement"), RegistrationState: to.Ptr("Registered")},
		{Namespace: to.Ptr("Microsoft.Monitor"), RegistrationState: to.Ptr("Registered")},
	}

	out, err := ExecuteCommand(rootWith(fake), "monitor", "register-providers")
	require.NoError(t, err)

	var got struct {
		Registered []string `json:"registered"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"microsoft.dashboard"}, got.Registered)
	assert.Equal(t, []string{"microsoft.dashboard"}, fake.providers.registered)
}

func TestMetricsEnabledCommand_ByClusterID(t *testing.T) {
	isolate(t)
	fake := newFakeServices()
	fake.clusters.enabled = true
	id := "/subscriptions/00000000-0000-0000-0000-000000000002/resourceGroups/rg1/providers/Microsoft.ContainerService/managedClusters/aks1"

	out, err := ExecuteCommand(rootWith(fake), "monitor", "metrics-enabled", "--cluster-id", id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metricsEnabled": true}`, out)
	assert.Equal(t, []string{"00000000-0000-0000-0000-000000000002"}, fake.clusterSubscriptions)
	assert.Equal(t, []string{"rg1/aks1"}, fake.clusters.gets)
}

func TestMetricsEnabledCommand_ByName(t *testing.T) {
	isolate(t)
	fake := newFakeServices()

	out, err := ExecuteCommand(rootWith(fake), "monitor", "metrics-enabled",
		"--subscription", "00000000-0000-0000-0000-000000000003", "-g", "rg1", "-n", "aks1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"metricsEnabled": false}`, out)
	assert.Equal(t, []string{"00000000-0000-0000-0000-000000000003"}, fake.clusterSubscriptions)
}

func TestMetricsEnabledCommand_RequiresTarget(t *testing.T) {
	isolate(t)
	_, err := ExecuteCommand(rootWith(newFakeServices()), "monitor", "metrics-enabled", "-g", "rg1")
	assert.ErrorContains(t, err, "--cluster-id")
}

func TestSubscriptionFromConfigFile(t *testing.T) {
	isolate(t)
	cfgFile := filepath.Join(t.TempDir(), "azext.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("subscription-id: 00000000-0000-0000-0000-000000000004\n"), 0o600))
	fake := newFakeServices()

	_, err := ExecuteCommand(rootWith(fake), "--config", cfgFile, "monitor", "metrics-enabled", "-g", "rg1", "-n", "aks1")
	require.NoError(t, err)
	assert.Equal(t, []string{"00000000-0000-0000-0000-000000000004"}, fake.clusterSubscriptions)
}

func TestSubscriptionFromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("AZEXT_SUBSCRIPTION_ID", "00000000-0000-0000-0000-000000000005")
	fake := newFakeServices()

	_, err := ExecuteCommand(rootWith(fake), "monitor", "metrics-enabled", "-g", "rg1", "-n", "aks1")
	require.NoError(t, err)
	assert.Equal(t, []string{"00000000-0000-0000-0000-000000000005"}, fake.clusterSubscriptions)
}

func TestInvalidPollInterval(t *testing.T) {
	isolate(t)
	_, err := ExecuteCommand(rootWith(newFakeServices()), "--poll-interval", "0s", "monitor", "register-providers")
	assert.ErrorContains(t, err, "poll-interval")
}

const upgradePath = "/subscriptions/" + testSubscription + "/resourceGroups/rg1/providers/Microsoft.ConnectedVMwarevSphere/virtualMachines/vm1/upgradeExtensions"

func scriptUpgrade(rt *routeTransport) {
	rt.on(http.MethodPost, upgradePath, respond(http.StatusAccepted, "",
		"Azure-AsyncOperation", testEndpoint+"/operations/op1",
		"Location", testEndpoint+"/operationResults/op1"))
	rt.on(http.MethodGet, "/operations/op1",
		respond(http.StatusOK, `{"status":"InProgress"}`),
		respond(http.StatusOK, `{"status":"Succeeded"}`))
	rt.on(http.MethodGet, "/operationResults/op1", respond(http.StatusOK, `{"upgraded":["MDE.Linux"]}`))
}

func TestVMwareUpgradeExtensions_Waits(t *testing.T) {
	isolate(t)
	fake := newFakeServices()
	scriptUpgrade(fake.transport)

	out, err := ExecuteCommand(rootWith(fake), "vmware", "upgrade-extensions",
		"-g", "rg1", "-n", "vm1", "--target", "MDE.Linux=1.0.1")
	require.NoError(t, err)

	var got operationStatus
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, lro.StatusSucceeded, got.Status)
	assert.Equal(t, lro.StrategyAzureAsyncOp, got.Strategy)
	assert.Equal(t, 2, got.PollCount)
	assert.Empty(t, got.ResumeToken)
	assert.JSONEq(t, `{"upgraded":["MDE.Linux"]}`, string(got.Result))

	assert.JSONEq(t, `{"extensionTargets":{"MDE.Linux":{"targetVersion":"1.0.1"}}}`,
		string(fake.transport.bodies[http.MethodPost+" "+upgradePath]))
	assert.Equal(t, []string{config.DefaultAPIVersions().ConnectedVMware}, fake.apiVersions)
}

func TestVMwareUpgradeExtensions_NoWaitThenResume(t *testing.T) {
	isolate(t)
	fake := newFakeServices()
	scriptUpgrade(fake.transport)

	out, err := ExecuteCommand(rootWith(fake), "vmware", "upgrade-extensions",
		"-g", "rg1", "-n", "vm1", "--target", "MDE.Linux=1.0.1", "--no-wait")
	require.NoError(t, err)

	var started operationStatus
	require.NoError(t, json.Unmarshal([]byte(out), &started))
	assert.Equal(t, lro.StatusInProgress, started.Status)
	assert.Equal(t, testEndpoint+"/operations/op1", started.PollURL)
	require.NotEmpty(t, started.ResumeToken)
	assert.Nil(t, started.Result)

	out, err = ExecuteCommand(rootWith(fake), "operation", "wait", "--token", started.ResumeToken)
	require.NoError(t, err)

	var finished operationStatus
	require.NoError(t, json.Unmarshal([]byte(out), &finished))
	assert.Equal(t, started.ID, finished.ID)
	assert.Equal(t, lro.StatusSucceeded, finished.Status)
	assert.JSONEq(t, `{"upgraded":["MDE.Linux"]}`, string(finished.Result))
}

func TestOperationShow_PollsOnce(t *testing.T) {
	isolate(t)
	fake := newFakeServices()
	scriptUpgrade(fake.transport)

	out, err := ExecuteCommand(rootWith(fake), "vmware", "upgrade-extensions",
		"-g", "rg1", "-n", "vm1", "--target", "MDE.Linux=1.0.1", "--no-wait")
	require.NoError(t, err)
	var started operationStatus
	require.NoError(t, json.Unmarshal([]byte(out), &started))

	out, err = ExecuteCommand(rootWith(fake), "operation", "show", "--token", started.ResumeToken)
	require.NoError(t, err)
	var shown operationStatus
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, lro.StatusInProgress, shown.Status)
	assert.Equal(t, 1, shown.PollCount)
	assert.NotEmpty(t, shown.ResumeToken)
}

func TestOperationWait_FailedOperation(t *testing.T) {
	isolate(t)
	fake := newFakeServices()
	fake.transport.on(http.MethodPost, upgradePath, respond(http.StatusAccepted, "",
		"Azure-AsyncOperation", testEndpoint+"/operations/op2"))
	fake.transport.on(http.MethodGet, "/operations/op2",
		respond(http.StatusOK, `{"status":"Failed","error":{"code":"ExtensionUpgradeFailed","message":"agent offline"}}`))

	out, err := ExecuteCommand(rootWith(fake), "vmware", "upgrade-extensions",
		"-g", "rg1", "-n", "vm1", "--target", "MDE.Linux=1.0.1")

	var failed *lro.OperationFailedError
	require.ErrorAs(t, err, &failed)
	var got operationStatus
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, lro.StatusFailed, got.Status)
	assert.Equal(t, "ExtensionUpgradeFailed: agent offline", got.Error)
}

func TestVMwareUpgradeExtensions_InvalidTarget(t *testing.T) {
	isolate(t)
	fake := newFakeServices()

	_, err := ExecuteCommand(rootWith(fake), "vmware", "upgrade-extensions",
		"-g", "rg1", "-n", "vm1", "--target", "MDE.Linux")
	assert.ErrorContains(t, err, "expected extension=version")
	assert.Empty(t, fake.apiVersions)
}

func TestOperationShow_InvalidToken(t *testing.T) {
	isolate(t)
	_, err := ExecuteCommand(rootWith(newFakeServices()), "operation", "show", "--token", "not-a-token")
	assert.Error(t, err)
}

func TestSpotPlacementGenerate(t *testing.T) {
	isolate(t)
	fake := newFakeServices()
	path := "/subscriptions/" + testSubscription + "/providers/Microsoft.Compute/locations/eastus/placementScores/spot/generate"
	fake.transport.on(http.MethodPost, path, respond(http.StatusOK, `{
		"desiredLocations": ["eastus", "westus2"],
		"desiredSizes": [{"sku": "Standard_D2_v2"}],
		"desiredCount": 2,
		"placementScores": [
			{"sku": "Standard_D2_v2", "region": "eastus", "score": "High", "isQuotaAvailable": true},
			{"sku": "Standard_D2_v2", "region": "westus2", "score": "Low", "isQuotaAvailable": false}
		]
	}`))

	out, err := ExecuteCommand(rootWith(fake), "spot-placement", "generate", "-l", "eastus",
		"--desired-locations", "eastus,westus2", "--desired-sizes", "Standard_D2_v2", "--desired-count", "2")
	require.NoError(t, err)

	var got operations.SpotPlacementScoresResponse
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.PlacementScores, 2)
	assert.Equal(t, "High", *got.PlacementScores[0].Score)

	assert.JSONEq(t, `{"desiredLocations":["eastus","westus2"],"desiredSizes":[{"sku":"Standard_D2_v2"}],"desiredCount":2}`,
		string(fake.transport.bodies[http.MethodPost+" "+path]))
}

func TestLoadValidate_Normalizes(t *testing.T) {
	isolate(t)
	fake := newFakeServices()
	fake.locations = []string{"eastus", "westus2"}

	out, err := ExecuteCommand(rootWith(fake), "load", "validate",
		"--test-id", "sample-test",
		"--env", "rps=10", "--env", "region=null",
		"--secret", "token=https://myvault.vault.azure.net/secrets/token",
		"--split-csv", "yes",
		"--autostop", "disable",
		"--regionwise-engines", "EastUS=2",
		"--event", "event-id=e1 type=TestRunEnded status=DONE,FAILED",
	)
	require.NoError(t, err)

	var ns validators.Namespace
	require.NoError(t, json.Unmarshal([]byte(out), &ns))
	assert.Equal(t, "sample-test", *ns.TestID)
	assert.Equal(t, "10", *ns.EnvVars["rps"])
	assert.Contains(t, ns.EnvVars, "region")
	assert.Nil(t, ns.EnvVars["region"])
	assert.Equal(t, &validators.SecretReference{
		Type:  validators.ReferenceTypeSecretURI,
		Value: "https://myvault.vault.azure.net/secrets/token",
	}, ns.SecretRefs["token"])
	assert.True(t, *ns.SplitCSVEnabled)
	assert.False(t, *ns.AutostopEnabled)
	assert.Equal(t, []validators.RegionEngines{{Region: "eastus", EngineInstances: 2}}, ns.RegionEngines)
	require.Len(t, ns.Events, 1)
	assert.Equal(t, []string{"DONE", "FAILED"}, ns.Events[0].Status)
	assert.Equal(t, 1, fake.locationCalls)
}

func TestLoadValidate_DoesNotReachAzureWithoutRegions(t *testing.T) {
	isolate(t)
	root := NewRootCommand(WithServices(func(context.Context, *config.Config) (Services, error) {
		return nil, errors.New("azure unavailable")
	}))

	out, err := ExecuteCommand(root, "load", "validate", "--test-type", "Locust", "--interval", "PT1M")
	require.NoError(t, err)
	assert.Contains(t, out, `"testType": "Locust"`)
}

func TestLoadValidate_RejectsInvalidValue(t *testing.T) {
	isolate(t)

	_, err := ExecuteCommand(rootWith(newFakeServices()), "load", "validate",
		"--test-id", "Sample", "--env", "rps=10")
	var invalid *validators.InvalidArgumentValueError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "Invalid test-id value.", invalid.Message)
}

func TestLoadValidate_FilePaths(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	plan := filepath.Join(dir, "plan.jmx")
	require.NoError(t, os.WriteFile(plan, []byte("<jmeterTestPlan/>"), 0o600))
	download := filepath.Join(dir, "out", "results")

	out, err := ExecuteCommand(rootWith(newFakeServices()), "load", "validate",
		"--test-plan", plan, "--download-path", download, "--force")
	require.NoError(t, err)
	assert.DirExists(t, download)
	assert.Contains(t, out, `"force": true`)

	_, err = ExecuteCommand(rootWith(newFakeServices()), "load", "validate", "--test-plan", filepath.Join(dir, "missing.jmx"))
	var invalid *validators.InvalidArgumentValueError
	assert.ErrorAs(t, err, &invalid)
}

// startRegistry runs an in-memory OCI registry holding the given
// repository:tag images and returns its host.
func startRegistry(t *testing.T, refs ...string) string {
	t.Helper()
	srv := httptest.NewServer(ggcrregistry.New())
	t.Cleanup(srv.Close)
	host := strings.TrimPrefix(srv.URL, "http://")

	for _, r := range refs {
		img, err := random.Image(256, 1)
		require.NoError(t, err)
		ref, err := name.ParseReference(host + "/" + r)
		require.NoError(t, err)
		require.NoError(t, remote.Write(ref, img))
	}
	return host
}

func TestAOSMFindImage(t *testing.T) {
	isolate(t)
	empty := startRegistry(t)
	holder := startRegistry(t, "nf/samples/nginx:1.25.0")
	credentialCalls := 0
	root := NewRootCommand(WithCredential(func(context.Context, *config.Config) (azcore.TokenCredential, error) {
		credentialCalls++
		return nil, errors.New("unexpected credential request")
	}))

	out, err := ExecuteCommand(root, "aosm", "find-image",
		"--source", empty+"/nf", "--source", holder+"/nf/samples",
		"--image", "nginx", "--version", "1.25.0")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]string{
		"type":          "UniversalRegistry",
		"registry_name": holder,
		"namespace":     "nf/samples",
	}, got)
	assert.Zero(t, credentialCalls)
}

func TestAOSMFindImage_NotFound(t *testing.T) {
	isolate(t)
	host := startRegistry(t, "nginx:1.25.0")

	_, err := ExecuteCommand(NewRootCommand(), "aosm", "find-image",
		"--source", host, "--image", "nginx", "--version", "2.0.0")
	assert.ErrorIs(t, err, imageregistry.ErrImageNotFound)
}

func TestAOSMFindImage_ACRSourceUsesAzureCredential(t *testing.T) {
	isolate(t)
	root := NewRootCommand(WithCredential(func(context.Context, *config.Config) (azcore.TokenCredential, error) {
		return nil, errors.New("no azure credential")
	}))

	_, err := ExecuteCommand(root, "aosm", "find-image",
		"--source", "myregistry.azurecr.io/nf", "--image", "nginx", "--version", "1.25.0")
	assert.ErrorContains(t, err, "no azure credential")
}
