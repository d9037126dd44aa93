// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package validators

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/platform-engineering-labs/azext/pkg/logging"
)

// Key Vault object kinds accepted in a vault URL.
const (
	VaultSecrets      = "secrets"
	VaultCertificates = "certificates"
	VaultKeys         = "keys"
	VaultStorage      = "storage"
)

// Reference types written into normalized secrets and certificates.
const (
	ReferenceTypeSecretURI      = "AKV_SECRET_URI"
	ReferenceTypeCertificateURI = "AKV_CERT_URI"
)

var vaultURLPatterns = map[string]*regexp.Regexp{}

func init() {
	kinds := []string{VaultSecrets, VaultCertificates, VaultKeys, VaultStorage}
	for _, kind := range kinds {
		vaultURLPatterns[kind] = vaultURLPattern(kind)
	}
	vaultURLPatterns[""] = vaultURLPattern(strings.Join(kinds, "|"))
}

func vaultURLPattern(kinds string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^https://[a-zA-Z0-9_-]+\.(?:vault|vault-int)\.(?:azure|azure-int|usgovcloudapi|microsoftazure)\.(?:net|cn|de)/(?:` +
		kinds + `)/[a-zA-Z0-9_-]+(?:/[a-zA-Z0-9_-]+)?$`)
}

// IsKeyVaultURL reports whether s is a Key Vault object URL of the given kind
// (VaultSecrets, VaultCertificates, ...). An empty kind accepts any of them.
func IsKeyVaultURL(s, kind string) bool {
	re, ok := vaultURLPatterns[kind]
	if !ok {
		return false
	}
	return re.MatchString(s)
}

// splitPair splits "key=value" on the first '='. ok is false when there is no '='.
func splitPair(s string) (key, value string, ok bool) {
	return strings.Cut(s, "=")
}

// EnvVars turns "KEY=value" items into EnvVars. An empty or "null" value
// maps the key to nil so the variable is removed from the test.
func EnvVars(_ context.Context, ns *Namespace) error {
	if ns.Env == nil {
		return nil
	}
	vars := make(map[string]*string, len(ns.Env))
	for _, item := range ns.Env {
		if item == "" {
			continue
		}
		key, value, ok := splitPair(item)
		if !ok {
			return invalidf("Invalid env argument: %s", item)
		}
		if value == "" || value == "null" {
			vars[key] = nil
			continue
		}
		vars[key] = &value
	}
	ns.EnvVars = vars
	return nil
}

// Secrets turns "NAME=<vault secret url>" items into SecretRefs. An empty
// or "null" URL maps the name to nil.
func Secrets(_ context.Context, ns *Namespace) error {
	if ns.Secrets == nil {
		return nil
	}
	refs := make(map[string]*SecretReference, len(ns.Secrets))
	for _, item := range ns.Secrets {
		if item == "" {
			continue
		}
		key, value, ok := splitPair(item)
		if !ok {
			return invalidf("Invalid secret argument: %s", item)
		}
		switch {
		case value == "" || value == "null":
			refs[key] = nil
		case !IsKeyVaultURL(value, VaultSecrets):
			return invalidf("Invalid Azure Key Vault Secret URL: %s", value)
		default:
			refs[key] = &SecretReference{Type: ReferenceTypeSecretURI, Value: value}
		}
	}
	ns.SecretRefs = refs
	return nil
}

// Certificate accepts a single "NAME=<vault certificate url>" item. An empty
// or "null" URL sets CertificateCleared.
func Certificate(_ context.Context, ns *Namespace) error {
	if ns.Certificate == nil {
		return nil
	}
	if len(ns.Certificate) > 1 {
		return invalidf("Only one certificate is supported")
	}
	if len(ns.Certificate) == 0 {
		return invalidf("Invalid certificate argument: no value given")
	}
	item := ns.Certificate[0]
	name, value, ok := splitPair(item)
	if !ok {
		return invalidf("Invalid certificate argument: %s", item)
	}
	if value == "" || value == "null" {
		ns.CertificateRef = nil
		ns.CertificateCleared = true
		return nil
	}
	if !IsKeyVaultURL(value, VaultCertificates) {
		return invalidf("Invalid Azure Key Vault Certificate URL: %s", value)
	}
	ns.CertificateRef = &CertificateReference{Name: name, Type: ReferenceTypeCertificateURI, Value: value}
	ns.CertificateCleared = false
	return nil
}

// Dimensions groups "name[=value]" items into DimensionFilters. Values for
// a repeated name are collected in input order; a missing value is "".
func Dimensions(_ context.Context, ns *Namespace) error {
	if ns.Dimensions == nil {
		return nil
	}
	var filters []DimensionFilter
	index := make(map[string]int)
	for _, item := range ns.Dimensions {
		if item == "" {
			continue
		}
		name, value, _ := splitPair(item)
		i, seen := index[name]
		if !seen {
			i = len(filters)
			index[name] = i
			filters = append(filters, DimensionFilter{Name: name})
		}
		filters[i].Values = append(filters[i].Values, value)
	}
	ns.DimensionFilters = filters
	return nil
}

// LocationLister lists the location names available to a subscription.
// *client.Client satisfies it.
type LocationLister interface {
	ListLocations(ctx context.Context) ([]string, error)
}

// RegionwiseEngines returns a validator that turns "region=count" items into
// RegionEngines. Regions are lowercased and must be available to the
// subscription; counts must be integers. Locations are only listed when the
// argument is present.
func RegionwiseEngines(locations LocationLister) Validator {
	return func(ctx context.Context, ns *Namespace) error {
		if ns.RegionwiseEngines == nil {
			return nil
		}
		names, err := locations.ListLocations(ctx)
		if err != nil {
			return err
		}
		available := make(map[string]bool, len(names))
		for _, n := range names {
			available[strings.ToLower(n)] = true
		}
		logging.LoggerFromContext(ctx).V(1).Info("Validating regionwise engines",
			"items", len(ns.RegionwiseEngines), "locations", len(available))

		engines := make([]RegionEngines, 0, len(ns.RegionwiseEngines))
		for _, item := range ns.RegionwiseEngines {
			key, value, ok := splitPair(item)
			if !ok {
				return invalidf("Invalid regionwise-engines item: %s. Expected region=engineCount", item)
			}
			if key == "" || value == "" {
				return invalidf("Invalid regionwise-engines item: %s. Region or engine count cannot be empty", item)
			}
			region := strings.ToLower(strings.TrimSpace(key))
			if !available[region] {
				return invalidf("Invalid regionwise-engines item key: %s. Expected Azure region", key)
			}
			count, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return invalidf("Invalid regionwise-engines item value: %s. Expected integer", value)
			}
			engines = append(engines, RegionEngines{Region: region, EngineInstances: count})
		}
		ns.RegionEngines = engines
		return nil
	}
}
