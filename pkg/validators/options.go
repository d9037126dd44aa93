// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package validators

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Test types.
const (
	TestTypeJMX    = "JMX"
	TestTypeURL    = "URL"
	TestTypeLocust = "Locust"
)

// File types accepted by the file upload commands.
const (
	FileTypeAdditionalArtifacts = "ADDITIONAL_ARTIFACTS"
	FileTypeJMX                 = "JMX_FILE"
	FileTypeUserProperties      = "USER_PROPERTIES"
	FileTypeZippedArtifacts     = "ZIPPED_ARTIFACTS"
	FileTypeURLTestConfig       = "URL_TEST_CONFIG"
	FileTypeTestScript          = "TEST_SCRIPT"
)

var (
	allowedTestTypes = []string{TestTypeJMX, TestTypeURL, TestTypeLocust}
	allowedFileTypes = []string{
		FileTypeAdditionalArtifacts, FileTypeJMX, FileTypeUserProperties,
		FileTypeZippedArtifacts, FileTypeURLTestConfig, FileTypeTestScript,
	}
	allowedIntervals        = []string{"PT5S", "PT10S", "PT1M", "PT5M", "PT1H"}
	allowedMetricNamespaces = []string{"LoadTestRunMetrics", "EngineHealthMetrics"}
)

// TestType restricts the test type to JMX, URL or Locust.
func TestType(_ context.Context, ns *Namespace) error {
	if ns.TestType == nil {
		return nil
	}
	return oneOf(*ns.TestType, allowedTestTypes, "test-type")
}

// FileType restricts the uploaded file type.
func FileType(_ context.Context, ns *Namespace) error {
	if ns.FileType == nil {
		return nil
	}
	return oneOf(*ns.FileType, allowedFileTypes, "file-type")
}

// Interval restricts the metrics aggregation interval.
func Interval(_ context.Context, ns *Namespace) error {
	if ns.Interval == nil {
		return nil
	}
	return oneOf(*ns.Interval, allowedIntervals, "interval")
}

// MetricNamespace requires one of the load test metric namespaces.
func MetricNamespace(_ context.Context, ns *Namespace) error {
	if ns.MetricNamespace == nil {
		return invalidf("Invalid metric-namespace type: a metric namespace is required")
	}
	return oneOf(*ns.MetricNamespace, allowedMetricNamespaces, "metric-namespace")
}

func oneOf(value string, allowed []string, argName string) error {
	if !slices.Contains(allowed, value) {
		return invalidf("Invalid %s value: %s. Allowed values: %s", argName, value, strings.Join(allowed, ", "))
	}
	return nil
}

// Timestamps are UTC with an optional fraction of up to six digits.
var isoTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{1,6})?Z$`)

// ValidateISOTime accepts "2006-01-02T15:04:05Z" and
// "2006-01-02T15:04:05.000000Z" style timestamps.
func ValidateISOTime(s string) error {
	if isoTimePattern.MatchString(s) {
		if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return nil
		}
	}
	return invalidf("Invalid time format: '%s'. Expected ISO 8601 format.", s)
}

// StartTime checks the optional start time.
func StartTime(_ context.Context, ns *Namespace) error {
	if ns.StartTime == nil {
		return nil
	}
	return ValidateISOTime(*ns.StartTime)
}

// EndTime checks the optional end time.
func EndTime(_ context.Context, ns *Namespace) error {
	if ns.EndTime == nil {
		return nil
	}
	return ValidateISOTime(*ns.EndTime)
}

// parseFlag matches value case-insensitively against the truthy and falsy
// spellings.
func parseFlag(value string, truthy, falsy []string) (bool, bool) {
	v := strings.ToLower(value)
	switch {
	case slices.Contains(truthy, v):
		return true, true
	case slices.Contains(falsy, v):
		return false, true
	}
	return false, false
}

// SplitCSV normalizes the split-csv flag from true/false/yes/no/y/n.
func SplitCSV(_ context.Context, ns *Namespace) error {
	if ns.SplitCSV == nil {
		return nil
	}
	enabled, ok := parseFlag(*ns.SplitCSV, []string{"true", "yes", "y"}, []string{"false", "no", "n"})
	if !ok {
		return invalidf("Invalid split-csv value: %s. Allowed values: true, false, yes, no, y, n", *ns.SplitCSV)
	}
	ns.SplitCSVEnabled = &enabled
	return nil
}

// DisablePublicIP normalizes the disable-public-ip flag from true/false.
func DisablePublicIP(_ context.Context, ns *Namespace) error {
	if ns.DisablePublicIP == nil {
		return nil
	}
	disabled, ok := parseFlag(*ns.DisablePublicIP, []string{"true"}, []string{"false"})
	if !ok {
		return invalidf("Invalid disable-public-ip value: %s. Allowed values: true, false", *ns.DisablePublicIP)
	}
	ns.PublicIPDisabled = &disabled
	return nil
}

// Autostop normalizes the autostop switch from enable/disable.
func Autostop(_ context.Context, ns *Namespace) error {
	if ns.Autostop == nil {
		return nil
	}
	enabled, ok := parseFlag(*ns.Autostop, []string{"enable"}, []string{"disable"})
	if !ok {
		return invalidf("Invalid autostop value: %s. Allowed values: enable, disable", *ns.Autostop)
	}
	ns.AutostopEnabled = &enabled
	return nil
}

// AutostopErrorRateTimeWindow requires a non-negative window in seconds.
func AutostopErrorRateTimeWindow(_ context.Context, ns *Namespace) error {
	if ns.AutostopErrorRateTimeWindow != nil && *ns.AutostopErrorRateTimeWindow < 0 {
		return invalidf("Autostop error rate time window should be greater than or equal to 0")
	}
	return nil
}

// AutostopErrorRate requires a percentage in [0, 100].
func AutostopErrorRate(_ context.Context, ns *Namespace) error {
	if ns.AutostopErrorRate == nil {
		return nil
	}
	if rate := *ns.AutostopErrorRate; rate < 0 || rate > 100 {
		return invalidf("Autostop error rate should be in range of [0.0,100.0]")
	}
	return nil
}

// AutostopMaxVUsPerEngine requires a positive user count.
func AutostopMaxVUsPerEngine(_ context.Context, ns *Namespace) error {
	if ns.AutostopMaxVUsPerEngine != nil && *ns.AutostopMaxVUsPerEngine <= 0 {
		return invalidf("Autostop maximum users per engine should be greater than 0")
	}
	return nil
}

// AutostopConfig checks the autoStop value of a load test config file. It is
// either the string "disable" or a mapping with errorPercentage, timeWindow
// and maximumVirtualUsersPerEngine, each optional.
func AutostopConfig(value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if !strings.EqualFold(v, "disable") {
			return invalidf("Invalid value for autoStop. Valid values are 'disable' or an object with errorPercentage, timeWindow " +
				"and/or maximumVirtualUsersPerEngine")
		}
		return nil
	case map[string]any:
		return autostopCriteria(v["errorPercentage"], v["timeWindow"], v["maximumVirtualUsersPerEngine"])
	default:
		return invalidf("Invalid value for autoStop: %v", value)
	}
}

func autostopCriteria(errorRate, timeWindow, maxVUs any) error {
	if errorRate != nil {
		rate, ok := asFloat(errorRate)
		if !ok || rate < 0 || rate > 100 {
			return invalidf("Invalid value for errorPercentage. Value should be a number between 0.0 and 100.0")
		}
	}
	if timeWindow != nil {
		window, ok := timeWindow.(int)
		if !ok || window < 0 {
			return invalidf("Invalid value for timeWindow. Value should be an integer greater than or equal to 0")
		}
	}
	if maxVUs != nil {
		users, ok := maxVUs.(int)
		if !ok || users <= 0 {
			return invalidf("Invalid value for maximumVirtualUsersPerEngine. Value should be an integer greater than 0")
		}
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
