// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package imageregistry

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/containers/azcontainerregistry"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Dictionary keys used by ToDict and FromDict.
const (
	KeyType         = "type"
	KeyRegistryName = "registry_name"
)

// Registry is a container registry that artifacts can be pulled from.
type Registry interface {
	// Type is the name the registry kind is registered under.
	Type() string
	// Name is the registry host, e.g. myregistry.azurecr.io.
	Name() string
	// Namespaces lists the repository prefixes searched by FindImage. The
	// empty string is the registry root.
	Namespaces() []string
	AddNamespace(namespace string)
	// FindImage reports whether image:version exists under one of the
	// namespaces, and which one. A missing image is not an error.
	FindImage(ctx context.Context, image, version string) (found bool, namespace string, err error)
	ToDict() map[string]string
}

// Options carries what registry implementations need to reach a registry.
type Options struct {
	// Credential authenticates ACR requests. Nil uses anonymous access.
	Credential azcore.TokenCredential
	// ACRClientOptions is passed to azcontainerregistry.NewClient.
	ACRClientOptions *azcontainerregistry.ClientOptions
	// RemoteOptions is passed to go-containerregistry for other registries.
	RemoteOptions []remote.Option
}

// Factory is a function that creates a Registry for a host name.
type Factory func(name string, opts *Options) Registry

// registry stores factories for each registry type.
var registry = make(map[string]Factory)

// Register registers a registry factory for a registry type.
func Register(registryType string, factory Factory) {
	registry[registryType] = factory
}

// HasType returns true if a factory is registered for the given registry type.
func HasType(registryType string) bool {
	_, ok := registry[registryType]
	return ok
}

// Types returns the registered registry types in sorted order.
func Types() []string {
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New returns a Registry of the given type.
func New(registryType, name string, opts *Options) (Registry, error) {
	factory, ok := registry[registryType]
	if !ok {
		return nil, fmt.Errorf("unknown registry type %q: expected one of %v", registryType, Types())
	}
	if opts == nil {
		opts = &Options{}
	}
	return factory(name, opts), nil
}

// FromDict rebuilds a registry from the output of ToDict. Both the type and
// the registry name are required.
func FromDict(dict map[string]string, opts *Options) (Registry, error) {
	registryType, ok := dict[KeyType]
	if !ok || registryType == "" {
		return nil, fmt.Errorf("registry dictionary is missing %q", KeyType)
	}
	name, ok := dict[KeyRegistryName]
	if !ok || name == "" {
		return nil, fmt.Errorf("registry dictionary is missing %q", KeyRegistryName)
	}
	return New(registryType, name, opts)
}

// base holds the state shared by all registry kinds.
type base struct {
	registryType string
	name         string
	namespaces   []string
}

func (b *base) Type() string {
	return b.registryType
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Namespaces() []string {
	return slices.Clone(b.namespaces)
}

// AddNamespace adds namespace to the search list unless it is already there.
func (b *base) AddNamespace(namespace string) {
	if !slices.Contains(b.namespaces, namespace) {
		b.namespaces = append(b.namespaces, namespace)
	}
}

func (b *base) ToDict() map[string]string {
	return map[string]string{
		KeyType:         b.registryType,
		KeyRegistryName: b.name,
	}
}

// searchNamespaces returns the namespaces to look in. A registry without
// namespaces is searched at its root.
func (b *base) searchNamespaces() []string {
	if len(b.namespaces) == 0 {
		return []string{""}
	}
	return b.namespaces
}

// repository joins a namespace and an image name.
func repository(namespace, image string) string {
	if namespace == "" {
		return image
	}
	return namespace + "/" + image
}
