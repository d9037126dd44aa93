// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package commands

import (
	"context"
	"strings"

	"github.com/platform-engineering-labs/azext/pkg/validators"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// loadArg binds one flag of `load validate` to a namespace field. set runs
// only when the flag was given, and so do its validators.
type loadArg struct {
	flag       string
	define     func(fs *pflag.FlagSet)
	set        func(fs *pflag.FlagSet, ns *validators.Namespace) error
	validators []validators.Validator
}

func stringArg(flag, usage string, field func(*validators.Namespace) **string, vs ...validators.Validator) loadArg {
	return loadArg{
		flag:   flag,
		define: func(fs *pflag.FlagSet) { fs.String(flag, "", usage) },
		set: func(fs *pflag.FlagSet, ns *validators.Namespace) error {
			v, err := fs.GetString(flag)
			*field(ns) = &v
			return err
		},
		validators: vs,
	}
}

func stringArrayArg(flag, usage string, field func(*validators.Namespace) *[]string, vs ...validators.Validator) loadArg {
	return loadArg{
		flag:   flag,
		define: func(fs *pflag.FlagSet) { fs.StringArray(flag, nil, usage) },
		set: func(fs *pflag.FlagSet, ns *validators.Namespace) error {
			v, err := fs.GetStringArray(flag)
			if v == nil {
				v = []string{}
			}
			*field(ns) = v
			return err
		},
		validators: vs,
	}
}

func intArg(flag, usage string, field func(*validators.Namespace) **int, vs ...validators.Validator) loadArg {
	return loadArg{
		flag:   flag,
		define: func(fs *pflag.FlagSet) { fs.Int(flag, 0, usage) },
		set: func(fs *pflag.FlagSet, ns *validators.Namespace) error {
			v, err := fs.GetInt(flag)
			*field(ns) = &v
			return err
		},
		validators: vs,
	}
}

// groupArg reads each occurrence of a repeatable flag as one group of
// space separated words.
func groupArg(flag, usage string, field func(*validators.Namespace) *[][]string, vs ...validators.Validator) loadArg {
	return loadArg{
		flag:   flag,
		define: func(fs *pflag.FlagSet) { fs.StringArray(flag, nil, usage) },
		set: func(fs *pflag.FlagSet, ns *validators.Namespace) error {
			values, err := fs.GetStringArray(flag)
			groups := make([][]string, 0, len(values))
			for _, v := range values {
				groups = append(groups, strings.Fields(v))
			}
			*field(ns) = groups
			return err
		},
		validators: vs,
	}
}

// loadArgs lists the flags of `load validate` in the order their validators
// run. locations is consulted only when --regionwise-engines is given.
func loadArgs(locations validators.LocationLister) []loadArg {
	return []loadArg{
		stringArg("test-id", "load test ID", func(ns *validators.Namespace) **string { return &ns.TestID }, validators.TestID),
		stringArg("test-run-id", "load test run ID", func(ns *validators.Namespace) **string { return &ns.TestRunID }, validators.TestRunID),
		stringArg("trigger-id", "schedule trigger ID", func(ns *validators.Namespace) **string { return &ns.TriggerID }, validators.TriggerID),
		stringArg("notification-rule-id", "notification rule ID", func(ns *validators.Namespace) **string { return &ns.NotificationRuleID }, validators.NotificationRuleID),

		stringArrayArg("env", "environment variable name=value, repeatable", func(ns *validators.Namespace) *[]string { return &ns.Env }, validators.EnvVars),
		stringArrayArg("secret", "secret name=Key Vault secret URL, repeatable", func(ns *validators.Namespace) *[]string { return &ns.Secrets }, validators.Secrets),
		stringArrayArg("certificate", "certificate name=Key Vault certificate URL", func(ns *validators.Namespace) *[]string { return &ns.Certificate }, validators.Certificate),

		stringArg("subnet-id", "subnet resource ID, or null to remove it", func(ns *validators.Namespace) **string { return &ns.SubnetID }, validators.SubnetID),
		stringArg("app-component-id", "app component resource ID", func(ns *validators.Namespace) **string { return &ns.AppComponentID }, validators.AppComponentID),
		stringArg("app-component-type", "app component resource type", func(ns *validators.Namespace) **string { return &ns.AppComponentType }, validators.AppComponentType),
		stringArg("metric-id", "server metric resource ID", func(ns *validators.Namespace) **string { return &ns.MetricID }, validators.MetricID),

		stringArg("file-type", "type of the uploaded file", func(ns *validators.Namespace) **string { return &ns.FileType }, validators.FileType),
		stringArg("path", "file to upload", func(ns *validators.Namespace) **string { return &ns.Path }, validators.UploadFile),
		stringArg("download-path", "directory to download files to", func(ns *validators.Namespace) **string { return &ns.Path }, validators.Download),
		stringArg("load-test-config-file", "YAML load test configuration", func(ns *validators.Namespace) **string { return &ns.LoadTestConfigFile }, validators.LoadTestConfigFile),
		stringArg("test-plan", "test plan file", func(ns *validators.Namespace) **string { return &ns.TestPlan }, validators.TestPlanPath),
		stringArg("test-type", "JMX, URL or Locust", func(ns *validators.Namespace) **string { return &ns.TestType }, validators.TestType),

		stringArg("start-time", "metrics start time, ISO 8601 UTC", func(ns *validators.Namespace) **string { return &ns.StartTime }, validators.StartTime),
		stringArg("end-time", "metrics end time, ISO 8601 UTC", func(ns *validators.Namespace) **string { return &ns.EndTime }, validators.EndTime),
		stringArg("interval", "metrics aggregation interval", func(ns *validators.Namespace) **string { return &ns.Interval }, validators.Interval),
		stringArg("metric-namespace", "metric namespace", func(ns *validators.Namespace) **string { return &ns.MetricNamespace }, validators.MetricNamespace),
		stringArrayArg("dimension", "dimension name=value filter, repeatable", func(ns *validators.Namespace) *[]string { return &ns.Dimensions }, validators.Dimensions),

		stringArg("split-csv", "split CSV files across engines", func(ns *validators.Namespace) **string { return &ns.SplitCSV }, validators.SplitCSV),
		stringArg("disable-public-ip", "disable public IP for engines", func(ns *validators.Namespace) **string { return &ns.DisablePublicIP }, validators.DisablePublicIP),
		stringArg("autostop", "enable or disable", func(ns *validators.Namespace) **string { return &ns.Autostop }, validators.Autostop),
		{
			flag:   "autostop-error-rate",
			define: func(fs *pflag.FlagSet) { fs.Float64("autostop-error-rate", 0, "error percentage that stops the test") },
			set: func(fs *pflag.FlagSet, ns *validators.Namespace) error {
				v, err := fs.GetFloat64("autostop-error-rate")
				ns.AutostopErrorRate = &v
				return err
			},
			validators: []validators.Validator{validators.AutostopErrorRate},
		},
		intArg("autostop-time-window", "seconds the error rate is measured over", func(ns *validators.Namespace) **int { return &ns.AutostopErrorRateTimeWindow }, validators.AutostopErrorRateTimeWindow),
		intArg("autostop-maximum-virtual-users-per-engine", "virtual users per engine that stops the test", func(ns *validators.Namespace) **int { return &ns.AutostopMaxVUsPerEngine }, validators.AutostopMaxVUsPerEngine),

		stringArrayArg("regionwise-engines", "region=engine count, repeatable", func(ns *validators.Namespace) *[]string { return &ns.RegionwiseEngines }, validators.RegionwiseEngines(locations)),
		stringArg("existing-engine-ref-id-type", "engine identity type already on the test", func(ns *validators.Namespace) **string { return &ns.ExistingEngineRefIDType }),
		stringArrayArg("engine-ref-ids", "engine managed identity resource IDs", func(ns *validators.Namespace) *[]string { return &ns.EngineRefIDs }, validators.EngineRefIDs),
		stringArg("engine-ref-id-type", "None, SystemAssigned or UserAssigned", func(ns *validators.Namespace) **string { return &ns.EngineRefIDType }, validators.EngineRefIDType),
		stringArg("keyvault-reference-id", "identity used to access Key Vault", func(ns *validators.Namespace) **string { return &ns.KeyVaultReferenceIdentity }, validators.KeyVaultReferenceIdentity),
		stringArg("metrics-reference-id", "identity used to access metrics", func(ns *validators.Namespace) **string { return &ns.MetricsReferenceIdentity }, validators.MetricsReferenceIdentity),

		{
			flag:   "recurrence-dates-in-month",
			define: func(fs *pflag.FlagSet) { fs.IntSlice("recurrence-dates-in-month", nil, "days of the month a schedule runs on") },
			set: func(fs *pflag.FlagSet, ns *validators.Namespace) error {
				v, err := fs.GetIntSlice("recurrence-dates-in-month")
				ns.RecurrenceDatesInMonth = v
				return err
			},
			validators: []validators.Validator{validators.RecurrenceDatesInMonth},
		},
		{
			flag:   "test-ids",
			define: func(fs *pflag.FlagSet) { fs.StringSlice("test-ids", nil, "test IDs of a schedule or notification rule") },
			set: func(fs *pflag.FlagSet, ns *validators.Namespace) error {
				v, err := fs.GetStringSlice("test-ids")
				ns.TestIDs = v
				return err
			},
			validators: []validators.Validator{testIDsValidator},
		},
		groupArg("event", "notification event as space separated key=value words, repeatable", func(ns *validators.Namespace) *[][]string { return &ns.Event }, validators.Events),
		groupArg("add-event", "notification event to add, repeatable", func(ns *validators.Namespace) *[][]string { return &ns.AddEvent }, validators.AddEvents),
		groupArg("remove-event", "event-id=<id> to remove, repeatable", func(ns *validators.Namespace) *[][]string { return &ns.RemoveEvent }, validators.RemoveEvents),
	}
}

// testIDsValidator applies the schedule rule when a trigger is named and the
// notification rule otherwise.
func testIDsValidator(ctx context.Context, ns *validators.Namespace) error {
	if ns.TriggerID != nil {
		return validators.ScheduleTestIDs(ctx, ns)
	}
	return validators.NotificationRuleTestIDs(ctx, ns)
}

// lazyLocations defers creating Azure services until a location list is
// actually needed.
type lazyLocations struct {
	app *App
}

func (l lazyLocations) ListLocations(ctx context.Context) ([]string, error) {
	azure, err := l.app.azure(ctx)
	if err != nil {
		return nil, err
	}
	return azure.ListLocations(ctx)
}

func newLoadCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Azure Load Testing argument checks",
	}

	args := loadArgs(lazyLocations{app: app})
	var force bool
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate load testing arguments and print their normalized form",
		Long: `validate runs the checks the load testing commands apply to their
arguments. Only the flags that are given are checked. On success the
normalized arguments are printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			ns := &validators.Namespace{Force: force}
			var chain []validators.Validator
			for _, a := range args {
				if !fs.Changed(a.flag) {
					continue
				}
				if err := a.set(fs, ns); err != nil {
					return err
				}
				chain = append(chain, a.validators...)
			}
			if len(chain) == 0 {
				logger(cmd).Info("No load testing arguments given")
			}
			if err := validators.Run(cmd.Context(), ns, chain...); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ns)
		},
	}
	for _, a := range args {
		a.define(validate.Flags())
	}
	validate.Flags().BoolVar(&force, "force", false, "create the download directory when missing")
	validate.MarkFlagsMutuallyExclusive("path", "download-path")

	cmd.AddCommand(validate)
	return cmd
}
