// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package imageregistry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platform-engineering-labs/azext/pkg/logging"
)

// ErrImageNotFound is returned when no registry holds the requested image.
var ErrImageNotFound = errors.New("image not found in any registry")

// Handler searches a fixed list of registries for images.
type Handler struct {
	sources    []string
	registries []Registry
}

// NewHandler builds one registry per distinct host named in sources. Each
// source is "host" or "host/namespace"; namespaces of the same host are
// merged into one registry. Hosts ending in .azurecr.io become Azure
// Container Registries, all others universal registries.
func NewHandler(sources []string, opts *Options) (*Handler, error) {
	h := &Handler{sources: sources}
	byHost := make(map[string]Registry)
	for _, source := range sources {
		host, namespace := SplitSource(source)
		if host == "" {
			return nil, fmt.Errorf("invalid image source %q: missing registry host", source)
		}
		r, ok := byHost[host]
		if !ok {
			registryType := TypeUniversalRegistry
			if IsACRHost(host) {
				registryType = TypeAzureContainerRegistry
			}
			var err error
			r, err = New(registryType, host, opts)
			if err != nil {
				return nil, err
			}
			byHost[host] = r
			h.registries = append(h.registries, r)
		}
		r.AddNamespace(namespace)
	}
	return h, nil
}

// SplitSource splits an image source "host/namespace" on the first slash.
func SplitSource(source string) (host, namespace string) {
	source = strings.Trim(strings.TrimSpace(source), "/")
	host, namespace, _ = strings.Cut(source, "/")
	return host, namespace
}

// Sources returns the image sources the handler was built from.
func (h *Handler) Sources() []string {
	return h.sources
}

// Registries returns the registries in the order their hosts first appeared.
func (h *Handler) Registries() []Registry {
	return h.registries
}

// FindRegistryForImage returns the first registry holding image:version and
// the namespace it was found under. Registries that fail to answer are
// logged and skipped.
func (h *Handler) FindRegistryForImage(ctx context.Context, image, version string) (Registry, string, error) {
	log := logging.LoggerFromContext(ctx)
	for _, r := range h.registries {
		found, namespace, err := r.FindImage(ctx, image, version)
		if err != nil {
			log.Info("Image lookup failed, trying next registry", "registry", r.Name(), "image", image, "version", version, "error", err.Error())
			continue
		}
		if found {
			return r, namespace, nil
		}
	}
	return nil, "", fmt.Errorf("%s:%s: %w", image, version, ErrImageNotFound)
}
