// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package validators

import (
	"context"
	"regexp"
	"strings"

	"github.com/platform-engineering-labs/azext/pkg/resourceid"
)

// Engine identity types.
const (
	EngineIdentityNone           = "None"
	EngineIdentitySystemAssigned = "SystemAssigned"
	EngineIdentityUserAssigned   = "UserAssigned"
)

var idPattern = regexp.MustCompile(`^[a-z0-9_-]*$`)

func validateID(value *string, argName string) error {
	if value == nil {
		return invalidf("%s is required.", argName)
	}
	if !idPattern.MatchString(*value) {
		return invalidf("Invalid %s value.", argName)
	}
	return nil
}

// TestID requires a lowercase test identifier.
func TestID(_ context.Context, ns *Namespace) error {
	return validateID(ns.TestID, "test-id")
}

// TestRunID requires a lowercase test run identifier.
func TestRunID(_ context.Context, ns *Namespace) error {
	return validateID(ns.TestRunID, "test-run-id")
}

// TriggerID requires a lowercase schedule trigger identifier.
func TriggerID(_ context.Context, ns *Namespace) error {
	return validateID(ns.TriggerID, "trigger-id")
}

// NotificationRuleID requires a lowercase notification rule identifier.
func NotificationRuleID(_ context.Context, ns *Namespace) error {
	return validateID(ns.NotificationRuleID, "notification-rule-id")
}

// isNullSentinel reports whether v clears a previously set value.
func isNullSentinel(v string) bool {
	return v == "" || strings.EqualFold(v, "null")
}

// SubnetID accepts a subnet resource ID, or "null"/"" which normalizes to
// "null" and removes the subnet from the test.
func SubnetID(_ context.Context, ns *Namespace) error {
	if ns.SubnetID == nil {
		return nil
	}
	if *ns.SubnetID == "" || *ns.SubnetID == "null" {
		cleared := "null"
		ns.SubnetID = &cleared
		return nil
	}
	if !resourceid.IsValid(*ns.SubnetID) {
		return invalidf("%s is not a valid Azure subnet resource ID.", *ns.SubnetID)
	}
	return nil
}

// AppComponentID requires a valid resource ID.
func AppComponentID(_ context.Context, ns *Namespace) error {
	if ns.AppComponentID == nil {
		return invalidf("Invalid app-component-id type: expected a resource ID")
	}
	if !resourceid.IsValid(*ns.AppComponentID) {
		return invalidf("app-component-id is not a valid Azure Resource ID: %s", *ns.AppComponentID)
	}
	return nil
}

// AppComponentType requires the declared component type to match the
// provider namespace and type of the component ID.
func AppComponentType(_ context.Context, ns *Namespace) error {
	if ns.AppComponentID == nil || ns.AppComponentType == nil {
		return invalidf("app-component-id and app-component-type are both required")
	}
	providerType := resourceid.ProviderType(*ns.AppComponentID)
	if providerType != strings.ToLower(*ns.AppComponentType) {
		return invalidf("Type of app-component-id and app-component-type mismatch: %s vs %s",
			providerType, *ns.AppComponentType)
	}
	return nil
}

// MetricID requires a resource ID that names a metrics resource.
func MetricID(_ context.Context, ns *Namespace) error {
	if ns.MetricID == nil {
		return invalidf("Invalid metric-id type: expected a resource ID")
	}
	id := *ns.MetricID
	if !resourceid.IsValid(id) {
		return invalidf("metric-id is not a valid Azure Resource ID: %s", id)
	}
	if !strings.Contains(strings.ToLower(id), "metric") {
		return invalidf("Provided Azure Resource ID is not a valid server metrics resource: %s", id)
	}
	return nil
}

// EngineRefIDs requires every engine identity to be a resource ID.
func EngineRefIDs(_ context.Context, ns *Namespace) error {
	for _, id := range ns.EngineRefIDs {
		if !resourceid.IsValid(id) {
			return invalidf("Invalid engine-ref-ids value: %s", id)
		}
	}
	return nil
}

// KeyVaultReferenceIdentity accepts a managed identity resource ID or a null
// sentinel.
func KeyVaultReferenceIdentity(_ context.Context, ns *Namespace) error {
	return validateIdentityRef(ns.KeyVaultReferenceIdentity, "keyvault-ref-id")
}

// MetricsReferenceIdentity accepts a managed identity resource ID or a null
// sentinel.
func MetricsReferenceIdentity(_ context.Context, ns *Namespace) error {
	return validateIdentityRef(ns.MetricsReferenceIdentity, "metrics-ref-id")
}

func validateIdentityRef(value *string, argName string) error {
	if value == nil || isNullSentinel(*value) {
		return nil
	}
	if !resourceid.IsValid(*value) {
		return invalidf("Invalid %s value: %s", argName, *value)
	}
	return nil
}

// EngineRefIDsAndType checks that engine identities are given exactly when
// the engine identity type is UserAssigned. existing is the type already
// stored on the test and applies when incoming is empty.
func EngineRefIDsAndType(incoming string, ids []string, existing string) error {
	identityType := incoming
	if identityType == "" {
		identityType = existing
	}
	if identityType != EngineIdentityUserAssigned && len(ids) > 0 {
		return invalidf("engine-ref-ids should not be provided when engine-ref-id-type is None or SystemAssigned")
	}
	if incoming == EngineIdentityUserAssigned && ids == nil {
		return invalidf("Atleast one engine-ref-ids should be provided when engine-ref-id-type is UserAssigned")
	}
	return nil
}

// EngineRefIDType runs EngineRefIDsAndType against the namespace.
func EngineRefIDType(_ context.Context, ns *Namespace) error {
	var incoming, existing string
	if ns.EngineRefIDType != nil {
		incoming = *ns.EngineRefIDType
	}
	if ns.ExistingEngineRefIDType != nil {
		existing = *ns.ExistingEngineRefIDType
	}
	return EngineRefIDsAndType(incoming, ns.EngineRefIDs, existing)
}
