// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package validators

import (
	"context"
)

// Namespace is the parsed argument record of a load testing command.
//
// Raw fields hold what the user typed. Validators check them and, where the
// command needs a structured form, fill in the matching normalized field
// (Env -> EnvVars, Secrets -> SecretRefs and so on). A nil pointer or nil
// slice means the argument was not given.
type Namespace struct {
	TestID             *string `json:"testId,omitempty"`
	TestRunID          *string `json:"testRunId,omitempty"`
	TriggerID          *string `json:"triggerId,omitempty"`
	NotificationRuleID *string `json:"notificationRuleId,omitempty"`

	Env         []string `json:"-"`
	Secrets     []string `json:"-"`
	Certificate []string `json:"-"`

	SubnetID         *string `json:"subnetId,omitempty"`
	AppComponentID   *string `json:"appComponentId,omitempty"`
	AppComponentType *string `json:"appComponentType,omitempty"`
	MetricID         *string `json:"metricId,omitempty"`

	Path               *string `json:"path,omitempty"`
	Force              bool    `json:"force,omitempty"`
	LoadTestConfigFile *string `json:"loadTestConfigFile,omitempty"`
	TestPlan           *string `json:"testPlan,omitempty"`
	TestType           *string `json:"testType,omitempty"`
	FileType           *string `json:"fileType,omitempty"`

	StartTime       *string  `json:"startTime,omitempty"`
	EndTime         *string  `json:"endTime,omitempty"`
	Interval        *string  `json:"interval,omitempty"`
	MetricNamespace *string  `json:"metricNamespace,omitempty"`
	Dimensions      []string `json:"-"`

	SplitCSV        *string `json:"-"`
	DisablePublicIP *string `json:"-"`

	Autostop                    *string  `json:"-"`
	AutostopErrorRate           *float64 `json:"autostopErrorRate,omitempty"`
	AutostopErrorRateTimeWindow *int     `json:"autostopErrorRateTimeWindow,omitempty"`
	AutostopMaxVUsPerEngine     *int     `json:"autostopMaxVUsPerEngine,omitempty"`

	RegionwiseEngines         []string `json:"-"`
	EngineRefIDType           *string  `json:"engineRefIdType,omitempty"`
	ExistingEngineRefIDType   *string  `json:"-"`
	EngineRefIDs              []string `json:"engineRefIds,omitempty"`
	KeyVaultReferenceIdentity *string  `json:"keyVaultReferenceIdentity,omitempty"`
	MetricsReferenceIdentity  *string  `json:"metricsReferenceIdentity,omitempty"`

	RecurrenceDatesInMonth []int      `json:"recurrenceDatesInMonth,omitempty"`
	TestIDs                []string   `json:"testIds,omitempty"`
	Event                  [][]string `json:"-"`
	AddEvent               [][]string `json:"-"`
	RemoveEvent            [][]string `json:"-"`

	// Normalized values.
	EnvVars            map[string]*string          `json:"env,omitempty"`
	SecretRefs         map[string]*SecretReference `json:"secrets,omitempty"`
	CertificateRef     *CertificateReference       `json:"certificate,omitempty"`
	CertificateCleared bool                        `json:"certificateCleared,omitempty"`
	DimensionFilters   []DimensionFilter           `json:"dimensionFilters,omitempty"`
	SplitCSVEnabled    *bool                       `json:"splitCsv,omitempty"`
	PublicIPDisabled   *bool                       `json:"disablePublicIp,omitempty"`
	AutostopEnabled    *bool                       `json:"autostop,omitempty"`
	RegionEngines      []RegionEngines             `json:"regionwiseEngines,omitempty"`
	Events             []NotificationEvent         `json:"events,omitempty"`
	AddEvents          []NotificationEvent         `json:"addEvents,omitempty"`
	RemoveEvents       []map[string]string         `json:"removeEvents,omitempty"`
}

// SecretReference points a load test secret at a Key Vault secret URL.
type SecretReference struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// CertificateReference points the load test client certificate at a Key
// Vault certificate URL.
type CertificateReference struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// DimensionFilter selects metric series by dimension name and values.
type DimensionFilter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// RegionEngines is the engine count requested for one region.
type RegionEngines struct {
	Region          string `json:"region"`
	EngineInstances int    `json:"engineInstances"`
}

// NotificationEvent is one parsed --event value. Status and Result are only
// set for TestRunEnded events.
type NotificationEvent struct {
	EventID string   `json:"eventId"`
	Type    string   `json:"type"`
	Status  []string `json:"status,omitempty"`
	Result  []string `json:"result,omitempty"`
}

// Validator checks, and possibly normalizes, fields of ns.
//
// Validators assign new values to fields. They never write through a
// pointer or into a slice they did not allocate, so a shallow copy of the
// namespace is enough to roll back a failed run.
type Validator func(ctx context.Context, ns *Namespace) error

// Run applies validators in order and stops at the first failure. ns is
// only updated when every validator passes.
func Run(ctx context.Context, ns *Namespace, validators ...Validator) error {
	work := *ns
	for _, v := range validators {
		if err := v(ctx, &work); err != nil {
			return err
		}
	}
	*ns = work
	return nil
}
