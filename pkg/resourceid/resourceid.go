// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package resourceid

import (
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
)

// Split splits an Azure resource ID into its component parts.
// Example: /subscriptions/xxx/resourceGroups/yyy returns map["subscriptions"]="xxx", map["resourcegroups"]="yyy"
// For nested resources: /subscriptions/xxx/resourceGroups/yyy/providers/Microsoft.ContainerService/managedClusters/zzz
// returns map["subscriptions"]="xxx", map["resourcegroups"]="yyy", map["managedclusters"]="zzz"
// Note: Keys are lowercased for case-insensitive matching since Azure returns inconsistent casing.
func Split(resourceID string) map[string]string {
	parts := make(map[string]string)

	segments := []string{}
	for _, seg := range strings.Split(resourceID, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	for i := 0; i < len(segments)-1; i += 2 {
		parts[strings.ToLower(segments[i])] = segments[i+1]
	}

	return parts
}

// Sanitize trims whitespace, guarantees a single leading slash, drops
// trailing slashes and lowercases the ID.
func Sanitize(resourceID string) string {
	resourceID = strings.TrimSpace(resourceID)
	if !strings.HasPrefix(resourceID, "/") {
		resourceID = "/" + resourceID
	}
	resourceID = strings.TrimRight(resourceID, "/")
	return strings.ToLower(resourceID)
}

// IsValid reports whether id parses as an ARM resource ID scoped to a subscription.
func IsValid(id string) bool {
	parsed, err := arm.ParseResourceID(id)
	if err != nil {
		return false
	}
	return parsed.SubscriptionID != ""
}

// ProviderType returns "<namespace>/<type>" taken from the segments after
// "providers", lowercased. For IDs without a provider segment it returns "".
func ProviderType(id string) string {
	segments := strings.Split(id, "/")
	// ["", "subscriptions", sub, "resourceGroups", rg, "providers", ns, type, ...]
	if len(segments) < 8 {
		return ""
	}
	return strings.ToLower(strings.Join(segments[6:8], "/"))
}
